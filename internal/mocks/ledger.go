package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/repository"
)

type MockLedger struct {
	mock.Mock
}

// WithinTx hands fn the transaction registered with Return, if any
func (m *MockLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	args := m.Called(ctx, fn)
	if tx, ok := args.Get(0).(repository.LedgerTx); ok {
		return fn(tx)
	}
	return args.Error(1)
}

func (m *MockLedger) ApplyLateFee(ctx context.Context, obligationID uuid.UUID, asOf time.Time) (*domain.RentObligation, error) {
	args := m.Called(ctx, obligationID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentObligation), args.Error(1)
}
