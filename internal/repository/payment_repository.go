package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/rent-ledger/internal/domain"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

const paymentColumns = `id, obligation_id, tenant_id, amount, applied_amount, method, status, external_reference,
	needs_review, review_reason, created_at, updated_at, completed_at, refunded_at`

// eventColumns are written on insert. seq is assigned by the database in arrival order.
const eventColumns = `id, payment_id, external_reference, provider_event_id, kind, amount, outcome, detail, received_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error) {
	return getPayment(ctx, r.db, `SELECT `+paymentColumns+` FROM payment_attempts WHERE id = ?`, id)
}

func (r *paymentRepository) GetByReference(ctx context.Context, ref string) (*domain.PaymentAttempt, error) {
	return getPayment(ctx, r.db, `SELECT `+paymentColumns+` FROM payment_attempts WHERE external_reference = ?`, ref)
}

func (r *paymentRepository) ListByObligation(ctx context.Context, obligationID uuid.UUID) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_attempts
		WHERE obligation_id = ?
		ORDER BY created_at, id
	`
	return selectPayments(ctx, r.db, query, obligationID)
}

func (r *paymentRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_attempts
		WHERE status = ? AND created_at < ?
		ORDER BY created_at, id
	`
	return selectPayments(ctx, r.db, query, domain.PaymentStatusPending, cutoff.UTC())
}

func (r *paymentRepository) ListNeedsReview(ctx context.Context) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_attempts
		WHERE needs_review = ?
		ORDER BY created_at, id
	`
	return selectPayments(ctx, r.db, query, true)
}

func (r *paymentRepository) ListEvents(ctx context.Context, ref string) ([]*domain.PaymentEventRecord, error) {
	query := r.db.Rebind(`
		SELECT seq, ` + eventColumns + `
		FROM payment_events
		WHERE external_reference = ?
		ORDER BY seq
	`)

	events := []*domain.PaymentEventRecord{}
	if err := r.db.SelectContext(ctx, &events, query, ref); err != nil {
		return nil, err
	}
	for _, e := range events {
		e.ReceivedAt = e.ReceivedAt.UTC()
	}
	return events, nil
}

func getPayment(ctx context.Context, q querier, query string, args ...interface{}) (*domain.PaymentAttempt, error) {
	var p domain.PaymentAttempt
	if err := sqlx.GetContext(ctx, q, &p, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("payment", idArg(args))
		}
		return nil, err
	}
	normalizePayment(&p)
	return &p, nil
}

func selectPayments(ctx context.Context, q querier, query string, args ...interface{}) ([]*domain.PaymentAttempt, error) {
	payments := []*domain.PaymentAttempt{}
	if err := sqlx.SelectContext(ctx, q, &payments, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, p := range payments {
		normalizePayment(p)
	}
	return payments, nil
}

func normalizePayment(p *domain.PaymentAttempt) {
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.CompletedAt != nil {
		t := p.CompletedAt.UTC()
		p.CompletedAt = &t
	}
	if p.RefundedAt != nil {
		t := p.RefundedAt.UTC()
		p.RefundedAt = &t
	}
}
