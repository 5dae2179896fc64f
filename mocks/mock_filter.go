package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockFilter struct {
	mock.Mock
}

func (m *MockFilter) Filter(ctx context.Context, filename string) (bool, error) {
	args := m.Called(ctx, filename)
	return args.Bool(0), args.Error(1)
}
