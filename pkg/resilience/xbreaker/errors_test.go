package xbreaker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omeyang/evplanner/pkg/resilience/xretry"
)

func TestWrapBreakerError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantState State
		wrapped   bool
	}{
		{"打开状态", ErrOpenState, StateOpen, true},
		{"请求过多", ErrTooManyRequests, StateHalfOpen, true},
		{"普通错误", errTest, StateClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapBreakerError(tt.err, "cb")
			var be *BreakerError
			assert.Equal(t, tt.wrapped, errors.As(got, &be))
			if tt.wrapped {
				assert.Equal(t, tt.wantState, be.State)
				assert.Equal(t, "breaker cb: "+tt.err.Error(), be.Error())
				assert.True(t, IsBreakerError(got))
				assert.False(t, xretry.IsRetryable(got))
			}
		})
	}

	assert.NoError(t, wrapBreakerError(nil, "cb"))

	// 已包装的错误不重复包装
	once := wrapBreakerError(ErrOpenState, "inner")
	twice := wrapBreakerError(fmt.Errorf("outer: %w", once), "outer")
	var be *BreakerError
	assert.ErrorAs(t, twice, &be)
	assert.Equal(t, "inner", be.Name)
}

func TestBreakerError_NoName(t *testing.T) {
	be := &BreakerError{Err: ErrOpenState}
	assert.Equal(t, ErrOpenState.Error(), be.Error())
	assert.ErrorIs(t, be, ErrOpenState)
	assert.True(t, IsOpen(be))
	assert.False(t, IsTooManyRequests(be))
}
