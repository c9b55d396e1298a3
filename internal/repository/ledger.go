package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/rent-ledger/internal/database"
	"github.com/segyhp/rent-ledger/internal/domain"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

type ledger struct {
	db *sqlx.DB
}

// NewLedger returns the transactional ledger store over db
func NewLedger(db *sqlx.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (l *ledger) ApplyLateFee(ctx context.Context, obligationID uuid.UUID, asOf time.Time) (*domain.RentObligation, error) {
	var updated *domain.RentObligation
	err := l.WithinTx(ctx, func(tx LedgerTx) error {
		o, err := tx.LockObligation(ctx, obligationID)
		if err != nil {
			return err
		}
		if err := o.ApplyLateFee(o.PolicyLateFee, asOf); err != nil {
			return err
		}
		updated = o
		return tx.SaveObligation(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) forUpdate() string {
	return database.ForUpdate(t.tx.DriverName())
}

func (t *ledgerTx) LockObligation(ctx context.Context, id uuid.UUID) (*domain.RentObligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM rent_obligations WHERE id = ?` + t.forUpdate()
	o, err := getObligation(ctx, t.tx, query, id)
	if err != nil {
		return nil, err
	}
	// balances are re-derived from what is stored, never trusted blindly
	if err := o.CheckInvariants(); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *ledgerTx) SaveObligation(ctx context.Context, o *domain.RentObligation) error {
	if err := o.CheckInvariants(); err != nil {
		return err
	}

	query := t.tx.Rebind(`
		UPDATE rent_obligations
		SET late_fee = ?, total_amount = ?, amount_paid = ?, amount_outstanding = ?, status = ?,
		    late_fee_applied = ?, paid_at = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := t.tx.ExecContext(ctx, query,
		o.LateFee,
		o.TotalAmount,
		o.AmountPaid,
		o.AmountOutstanding,
		o.Status,
		o.LateFeeApplied,
		timeOrNil(o.PaidAt),
		o.UpdatedAt.UTC(),
		o.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.WrapNotFound("obligation", o.ID.String())
	}
	return nil
}

func (t *ledgerTx) LockPayment(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_attempts WHERE id = ?` + t.forUpdate()
	return getPayment(ctx, t.tx, query, id)
}

func (t *ledgerTx) LockPaymentByReference(ctx context.Context, ref string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_attempts WHERE external_reference = ?` + t.forUpdate()
	return getPayment(ctx, t.tx, query, ref)
}

func (t *ledgerTx) InsertPayment(ctx context.Context, p *domain.PaymentAttempt) error {
	query := t.tx.Rebind(`
		INSERT INTO payment_attempts (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := t.tx.ExecContext(ctx, query,
		p.ID,
		p.ObligationID,
		p.TenantID,
		p.Amount,
		p.AppliedAmount,
		p.Method,
		p.Status,
		p.ExternalReference,
		p.NeedsReview,
		p.ReviewReason,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
		timeOrNil(p.CompletedAt),
		timeOrNil(p.RefundedAt),
	)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

func (t *ledgerTx) SavePayment(ctx context.Context, p *domain.PaymentAttempt) error {
	query := t.tx.Rebind(`
		UPDATE payment_attempts
		SET status = ?, applied_amount = ?, external_reference = ?, needs_review = ?, review_reason = ?,
		    updated_at = ?, completed_at = ?, refunded_at = ?
		WHERE id = ?
	`)

	res, err := t.tx.ExecContext(ctx, query,
		p.Status,
		p.AppliedAmount,
		p.ExternalReference,
		p.NeedsReview,
		p.ReviewReason,
		p.UpdatedAt.UTC(),
		timeOrNil(p.CompletedAt),
		timeOrNil(p.RefundedAt),
		p.ID,
	)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateReference
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.WrapNotFound("payment", p.ID.String())
	}
	return nil
}

func (t *ledgerTx) InsertEvent(ctx context.Context, e *domain.PaymentEventRecord) error {
	query := t.tx.Rebind(`
		INSERT INTO payment_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := t.tx.ExecContext(ctx, query,
		e.ID,
		e.PaymentID,
		e.ExternalReference,
		e.ProviderEventID,
		e.Kind,
		e.Amount,
		e.Outcome,
		e.Detail,
		e.ReceivedAt.UTC(),
	)
	return err
}

func (t *ledgerTx) ApplyPayment(ctx context.Context, obligationID uuid.UUID, amount decimal.Decimal, at time.Time) (*domain.RentObligation, decimal.Decimal, error) {
	o, err := t.LockObligation(ctx, obligationID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	applied, err := o.ApplyPayment(amount, at)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if err := t.SaveObligation(ctx, o); err != nil {
		return nil, decimal.Zero, err
	}
	return o, applied, nil
}

func (t *ledgerTx) ApplyRefund(ctx context.Context, obligationID uuid.UUID, amount decimal.Decimal, at time.Time) (*domain.RentObligation, error) {
	o, err := t.LockObligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}

	if err := o.ApplyRefund(amount, at); err != nil {
		return nil, err
	}
	if err := t.SaveObligation(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}
