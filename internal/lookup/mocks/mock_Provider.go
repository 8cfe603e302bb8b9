// Package mocks provides test doubles for lookup providers.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	"github.com/sells-group/contact-finder/internal/model"
)

// MockProvider is a mock type for the Provider interface.
type MockProvider struct {
	mock.Mock
}

// Find provides a mock function with given fields: ctx, domain, role
func (_m *MockProvider) Find(ctx context.Context, domain string, role string) (*model.ProfileRef, error) {
	ret := _m.Called(ctx, domain, role)

	if len(ret) == 0 {
		panic("no return value specified for Find")
	}

	var r0 *model.ProfileRef
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*model.ProfileRef, error)); ok {
		return rf(ctx, domain, role)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ProfileRef)
	}
	r1 = ret.Error(1)

	return r0, r1
}
