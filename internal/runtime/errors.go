package runtime

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// PanicError wraps a value recovered from a panicking node.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprint(e.Value) }

// Kind implements the error classification used in state errors.
func (e *PanicError) Kind() string { return "Panic" }

type kinded interface {
	Kind() string
}

// ErrorKind classifies err for the "<STEP> failed: <Kind>: <message>" record.
func ErrorKind(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "CancelledError"
	}

	name := strings.TrimLeft(reflect.TypeOf(err).String(), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	// Unexported types (errors.errorString, fmt.wrapError) say nothing useful.
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		return "Error"
	}
	return name
}

// FormatStepError renders the error recorded when a node fails.
func FormatStepError(step domain.Step, err error) string {
	return fmt.Sprintf("%s failed: %s: %s", step, ErrorKind(err), err.Error())
}
