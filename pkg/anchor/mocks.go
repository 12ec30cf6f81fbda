package anchor

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRails struct {
	mock.Mock
}

func (m *MockRails) PollPendingDeposits(ctx context.Context, candidates []Deposit) ([]Deposit, error) {
	args := m.Called(ctx, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Deposit), args.Error(1)
}

var _ Rails = (*MockRails)(nil)

type MockCustody struct {
	mock.Mock
}

func (m *MockCustody) GetDistributionAccount(ctx context.Context, asset Asset) (string, error) {
	args := m.Called(ctx, asset)
	return args.String(0), args.Error(1)
}

func (m *MockCustody) CreateDestinationAccount(ctx context.Context, deposit Deposit) (string, error) {
	args := m.Called(ctx, deposit)
	return args.String(0), args.Error(1)
}

func (m *MockCustody) SubmitDepositTransaction(ctx context.Context, deposit Deposit, hasTrustline bool) (string, error) {
	args := m.Called(ctx, deposit, hasTrustline)
	return args.String(0), args.Error(1)
}

func (m *MockCustody) AccountCreationSupported() bool {
	return m.Called().Bool(0)
}

func (m *MockCustody) ClaimableBalancesSupported() bool {
	return m.Called().Bool(0)
}

var _ Custody = (*MockCustody)(nil)

type MockDepositHandler struct {
	mock.Mock
}

func (m *MockDepositHandler) AfterDeposit(ctx context.Context, deposit Deposit) error {
	return m.Called(ctx, deposit).Error(0)
}

var _ DepositHandler = (*MockDepositHandler)(nil)
