package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/rent-ledger/internal/domain"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Upsert(ctx context.Context, contact *domain.TenantContact) error {
	query := r.db.Rebind(`
		INSERT INTO tenant_contacts (tenant_id, name, email)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET name = excluded.name, email = excluded.email
	`)

	_, err := r.db.ExecContext(ctx, query, contact.TenantID, contact.Name, contact.Email)
	return err
}

func (r *contactRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.TenantContact, error) {
	query := r.db.Rebind(`SELECT tenant_id, name, email FROM tenant_contacts WHERE tenant_id = ?`)

	var contact domain.TenantContact
	if err := r.db.GetContext(ctx, &contact, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("tenant contact", tenantID.String())
		}
		return nil, err
	}
	return &contact, nil
}
