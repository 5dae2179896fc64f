package mocks

import (
	"context"

	"github.com/spiretechnology/go-watchdir/v3"
	"github.com/stretchr/testify/mock"
)

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) WatchEvent(ctx context.Context, event watchdir.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
