package mocks

import (
	"context"

	"mentalgoals/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) LoadChallenges(ctx context.Context, owner string) ([]*model.Challenge, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) SaveChallenges(ctx context.Context, owner string, challenges []*model.Challenge) error {
	args := m.Called(ctx, owner, challenges)
	return args.Error(0)
}

func (m *MockChallengeRepository) Owners(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, owner, message string, kind model.NotificationKind) {
	m.Called(ctx, owner, message, kind)
}
