// Package mocks provides test doubles for the anthropic client.
package mocks

import (
	"context"

	anthropic "github.com/sells-group/dashboard-api/pkg/anthropic"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// StreamMessage provides a mock function with given fields: ctx, req, onText
func (_m *MockClient) StreamMessage(ctx context.Context, req anthropic.MessageRequest, onText func(string) error) (*anthropic.MessageResponse, error) {
	ret := _m.Called(ctx, req, onText)

	if len(ret) == 0 {
		panic("no return value specified for StreamMessage")
	}

	var r0 *anthropic.MessageResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, anthropic.MessageRequest, func(string) error) (*anthropic.MessageResponse, error)); ok {
		return rf(ctx, req, onText)
	}
	if rf, ok := ret.Get(0).(func(context.Context, anthropic.MessageRequest, func(string) error) *anthropic.MessageResponse); ok {
		r0 = rf(ctx, req, onText)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*anthropic.MessageResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, anthropic.MessageRequest, func(string) error) error); ok {
		r1 = rf(ctx, req, onText)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
