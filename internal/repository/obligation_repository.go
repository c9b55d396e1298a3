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
	"github.com/segyhp/rent-ledger/pkg/utils"
)

const obligationColumns = `id, lease_id, tenant_id, property_id, unit_id, period_start, period_end, due_date,
	base_amount, late_fee, total_amount, amount_paid, amount_outstanding, status, late_fee_applied,
	policy_late_fee, policy_grace_days, paid_at, reminders_sent, last_reminder_at, created_at, updated_at`

type obligationRepository struct {
	db *sqlx.DB
}

func NewObligationRepository(db *sqlx.DB) ObligationRepository {
	return &obligationRepository{db: db}
}

func (r *obligationRepository) InsertMissing(ctx context.Context, obligations []*domain.RentObligation) ([]*domain.RentObligation, error) {
	query := r.db.Rebind(`
		INSERT INTO rent_obligations (` + obligationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (lease_id, due_date) DO NOTHING
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created := make([]*domain.RentObligation, 0, len(obligations))
	for _, o := range obligations {
		if err := o.CheckInvariants(); err != nil {
			return nil, err
		}

		res, err := tx.ExecContext(ctx, query, obligationArgs(o)...)
		if err != nil {
			return nil, err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			created = append(created, o)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *obligationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RentObligation, error) {
	return getObligation(ctx, r.db, `SELECT `+obligationColumns+` FROM rent_obligations WHERE id = ?`, id)
}

func (r *obligationRepository) ListByLease(ctx context.Context, leaseID uuid.UUID) ([]*domain.RentObligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM rent_obligations
		WHERE lease_id = ?
		ORDER BY due_date
	`
	return selectObligations(ctx, r.db, query, leaseID)
}

func (r *obligationRepository) ListLateFeeCandidates(ctx context.Context, asOf time.Time) ([]*domain.RentObligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM rent_obligations
		WHERE status IN ('unpaid', 'partial')
		  AND late_fee_applied = ?
		  AND due_date < ?
		ORDER BY due_date, id
	`
	return selectObligations(ctx, r.db, query, false, utils.DateOnly(asOf))
}

func (r *obligationRepository) ListUnsettled(ctx context.Context, asOf time.Time, propertyID *uuid.UUID) ([]*domain.RentObligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM rent_obligations
		WHERE status <> 'paid'
		  AND due_date < ?`
	args := []interface{}{utils.DateOnly(asOf)}
	if propertyID != nil {
		query += ` AND property_id = ?`
		args = append(args, *propertyID)
	}
	query += ` ORDER BY due_date, id`

	return selectObligations(ctx, r.db, query, args...)
}

func (r *obligationRepository) ListByDueRange(ctx context.Context, from, to time.Time, propertyID *uuid.UUID) ([]*domain.RentObligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM rent_obligations
		WHERE due_date >= ? AND due_date < ?`
	args := []interface{}{utils.DateOnly(from), utils.DateOnly(to)}
	if propertyID != nil {
		query += ` AND property_id = ?`
		args = append(args, *propertyID)
	}
	query += ` ORDER BY due_date, id`

	return selectObligations(ctx, r.db, query, args...)
}

func (r *obligationRepository) RecordReminder(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := r.db.Rebind(`
		UPDATE rent_obligations
		SET reminders_sent = reminders_sent + 1, last_reminder_at = ?
		WHERE id = ?
	`)

	res, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.WrapNotFound("obligation", id.String())
	}
	return nil
}

// querier is what both *sqlx.DB and *sqlx.Tx offer
type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
	DriverName() string
}

func getObligation(ctx context.Context, q querier, query string, args ...interface{}) (*domain.RentObligation, error) {
	var o domain.RentObligation
	if err := sqlx.GetContext(ctx, q, &o, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("obligation", idArg(args))
		}
		return nil, err
	}
	normalizeObligation(&o)
	return &o, nil
}

func selectObligations(ctx context.Context, q querier, query string, args ...interface{}) ([]*domain.RentObligation, error) {
	obligations := []*domain.RentObligation{}
	if err := sqlx.SelectContext(ctx, q, &obligations, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, o := range obligations {
		normalizeObligation(o)
	}
	return obligations, nil
}

func obligationArgs(o *domain.RentObligation) []interface{} {
	return []interface{}{
		o.ID,
		o.LeaseID,
		o.TenantID,
		o.PropertyID,
		o.UnitID,
		utils.DateOnly(o.PeriodStart),
		utils.DateOnly(o.PeriodEnd),
		utils.DateOnly(o.DueDate),
		o.BaseAmount,
		o.LateFee,
		o.TotalAmount,
		o.AmountPaid,
		o.AmountOutstanding,
		o.Status,
		o.LateFeeApplied,
		o.PolicyLateFee,
		o.PolicyGraceDays,
		timeOrNil(o.PaidAt),
		o.RemindersSent,
		timeOrNil(o.LastReminderAt),
		o.CreatedAt.UTC(),
		o.UpdatedAt.UTC(),
	}
}

// normalizeObligation drops driver-specific locations from scanned times
func normalizeObligation(o *domain.RentObligation) {
	o.PeriodStart = o.PeriodStart.UTC()
	o.PeriodEnd = o.PeriodEnd.UTC()
	o.DueDate = o.DueDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	if o.PaidAt != nil {
		t := o.PaidAt.UTC()
		o.PaidAt = &t
	}
	if o.LastReminderAt != nil {
		t := o.LastReminderAt.UTC()
		o.LastReminderAt = &t
	}
}

func idArg(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	if id, ok := args[0].(uuid.UUID); ok {
		return id.String()
	}
	if s, ok := args[0].(string); ok {
		return s
	}
	return ""
}
