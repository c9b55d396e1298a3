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

const leaseColumns = `id, property_id, unit_id, primary_tenant_id, start_date, end_date, termination_date,
	monthly_rent, payment_due_day, late_fee_amount, late_fee_grace_days, status, created_at, updated_at`

type leaseRepository struct {
	db *sqlx.DB
}

func NewLeaseRepository(db *sqlx.DB) LeaseRepository {
	return &leaseRepository{db: db}
}

func (r *leaseRepository) Create(ctx context.Context, lease *domain.Lease) error {
	if err := lease.Validate(); err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO leases (` + leaseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		lease.ID,
		lease.PropertyID,
		lease.UnitID,
		lease.PrimaryTenantID,
		utils.DateOnly(lease.StartDate),
		utils.DateOnly(lease.EndDate),
		dateOrNil(lease.TerminationDate),
		lease.MonthlyRent,
		lease.PaymentDueDay,
		lease.LateFeeAmount,
		lease.LateFeeGraceDays,
		lease.Status,
		lease.CreatedAt.UTC(),
		lease.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	tenants := lease.TenantIDs
	if len(tenants) == 0 {
		tenants = []uuid.UUID{lease.PrimaryTenantID}
	}
	tenantQuery := r.db.Rebind(`INSERT INTO lease_tenants (lease_id, tenant_id) VALUES (?, ?)`)
	for _, tenantID := range tenants {
		if _, err := tx.ExecContext(ctx, tenantQuery, lease.ID, tenantID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *leaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lease, error) {
	query := r.db.Rebind(`SELECT ` + leaseColumns + ` FROM leases WHERE id = ?`)

	var lease domain.Lease
	if err := r.db.GetContext(ctx, &lease, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("lease", id.String())
		}
		return nil, err
	}

	tenantQuery := r.db.Rebind(`SELECT tenant_id FROM lease_tenants WHERE lease_id = ? ORDER BY tenant_id`)
	if err := r.db.SelectContext(ctx, &lease.TenantIDs, tenantQuery, id); err != nil {
		return nil, err
	}

	normalizeLease(&lease)
	return &lease, nil
}

func (r *leaseRepository) ListBillable(ctx context.Context, asOf time.Time) ([]*domain.Lease, error) {
	query := r.db.Rebind(`
		SELECT ` + leaseColumns + `
		FROM leases
		WHERE status IN ('active', 'terminated')
		  AND end_date >= ?
		  AND (termination_date IS NULL OR termination_date >= ?)
		ORDER BY start_date, id
	`)

	// a lease ending mid-month still owes that month's obligation
	from := utils.MonthStart(asOf)
	var leases []*domain.Lease
	if err := r.db.SelectContext(ctx, &leases, query, from, from); err != nil {
		return nil, err
	}
	for _, l := range leases {
		normalizeLease(l)
	}
	return leases, nil
}

func (r *leaseRepository) Terminate(ctx context.Context, id uuid.UUID, terminationDate time.Time) error {
	query := r.db.Rebind(`
		UPDATE leases
		SET status = ?, termination_date = ?, updated_at = ?
		WHERE id = ? AND status IN ('active', 'terminated')
	`)

	res, err := r.db.ExecContext(ctx, query,
		domain.LeaseStatusTerminated,
		utils.DateOnly(terminationDate),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.WrapNotFound("active lease", id.String())
	}
	return nil
}

func normalizeLease(l *domain.Lease) {
	l.StartDate = l.StartDate.UTC()
	l.EndDate = l.EndDate.UTC()
	if l.TerminationDate != nil {
		t := l.TerminationDate.UTC()
		l.TerminationDate = &t
	}
}

func dateOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return utils.DateOnly(*t)
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
