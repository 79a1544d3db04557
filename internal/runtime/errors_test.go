package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"value error", domain.NewValueError("x"), "ValueError"},
		{"wrapped value error", fmt.Errorf("parse: %w", domain.NewValueError("x")), "ValueError"},
		{"panic", &runtime.PanicError{Value: "x"}, "Panic"},
		{"deadline", context.DeadlineExceeded, "TimeoutError"},
		{"canceled", fmt.Errorf("wait: %w", context.Canceled), "CancelledError"},
		{"exported type", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, "PathError"},
		{"plain", errors.New("x"), "Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, runtime.ErrorKind(tc.err))
		})
	}
}

func TestFormatStepError(t *testing.T) {
	got := runtime.FormatStepError(domain.StepGoodness, domain.NewValueError("risk out of range"))
	assert.Equal(t, "GOODNESS failed: ValueError: risk out of range", got)
}
