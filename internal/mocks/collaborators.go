package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/rent-ledger/internal/processor"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, tenantID uuid.UUID, template string, params map[string]string) error {
	args := m.Called(ctx, tenantID, template, params)
	return args.Error(0)
}

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Alert(ctx context.Context, subject string, err error, fields logrus.Fields) {
	m.Called(ctx, subject, err, fields)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req processor.IntentRequest) (*processor.Intent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.Intent), args.Error(1)
}

func (m *MockGateway) Name() string {
	return "mock"
}
