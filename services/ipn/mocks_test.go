package ipn

import (
	// Go Internal Packages
	"context"

	// Local Packages
	events "sslpay/events"
	models "sslpay/models"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type StoreMock struct {
	mock.Mock
	TransactionStore
}

func (m *StoreMock) Get(ctx context.Context, tranID string) (*models.Transaction, error) {
	args := m.Called(ctx, tranID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *StoreMock) MarkValidated(ctx context.Context, tranID string, gatewayAmount decimal.Decimal, valID, bankTranID string, ipn map[string]string) (*models.Transaction, bool, error) {
	args := m.Called(ctx, tranID, gatewayAmount, valID, bankTranID, ipn)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Transaction), args.Bool(1), args.Error(2)
}

func (m *StoreMock) MarkFailed(ctx context.Context, tranID, reason string, ipn map[string]string) (*models.Transaction, bool, error) {
	args := m.Called(ctx, tranID, reason, ipn)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Transaction), args.Bool(1), args.Error(2)
}

func (m *StoreMock) MarkCancelled(ctx context.Context, tranID, reason string, ipn map[string]string) (*models.Transaction, bool, error) {
	args := m.Called(ctx, tranID, reason, ipn)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Transaction), args.Bool(1), args.Error(2)
}

func (m *StoreMock) RecordValidationAttempt(ctx context.Context, tranID string) error {
	args := m.Called(ctx, tranID)
	return args.Error(0)
}

type GatewayMock struct {
	mock.Mock
	GatewayClient
}

func (m *GatewayMock) ValidateTransaction(ctx context.Context, valID string, expectedAmount decimal.Decimal) (*models.ValidationResult, error) {
	args := m.Called(ctx, valID, expectedAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ValidationResult), args.Error(1)
}

// BusRecorder captures published events in order.
type BusRecorder struct {
	Events []events.Event
}

func (b *BusRecorder) Publish(ctx context.Context, evt events.Event) {
	b.Events = append(b.Events, evt)
}

func (b *BusRecorder) Outcomes() []events.Event {
	var out []events.Event
	for _, evt := range b.Events {
		if evt.Name() != (events.IPNReceived{}).Name() {
			out = append(out, evt)
		}
	}
	return out
}

// DLQRecorder captures rejected notifications.
type DLQRecorder struct {
	Rejected []models.RejectedNotification
}

func (d *DLQRecorder) Send(ctx context.Context, rejected models.RejectedNotification) {
	d.Rejected = append(d.Rejected, rejected)
}
