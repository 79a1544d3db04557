package guard

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize bounds the text and command fields, in bytes.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "AFO_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Limits bounds each free-text field of a request, in bytes.
type Limits struct {
	Text    int
	Command int
	// Arg applies to every string value in args on its own.
	Arg int
}

// LimitsFor derives the per-field limits from the overall input size.
// An arg value gets a quarter of it. A size <= 0 uses MaxInputSize.
func LimitsFor(size int) Limits {
	if size <= 0 {
		size = MaxInputSize()
	}
	return Limits{Text: size, Command: size, Arg: max(size/4, 1)}
}

// Request holds the sanitized free text of a request.
type Request struct {
	Text    string
	Command string
	Args    map[string]any
	// Changed lists the fields whose value was altered, args as "args.<key>".
	Changed []string
}

// SanitizeRequest cleans the text, command and string args of input.
// Oversized or badly encoded fields are rejected rather than truncated so the
// recorded state stays deterministic.
func SanitizeRequest(input map[string]any, limits Limits) (Request, error) {
	var req Request
	var err error

	raw, _ := input["text"].(string)
	if req.Text, err = sanitizeField("text", raw, limits.Text, false); err != nil {
		return Request{}, err
	}
	if req.Text != raw {
		req.Changed = append(req.Changed, "text")
	}

	raw, _ = input["command"].(string)
	if req.Command, err = sanitizeField("command", raw, limits.Command, true); err != nil {
		return Request{}, err
	}
	if req.Command != raw {
		req.Changed = append(req.Changed, "command")
	}

	args, _ := input["args"].(map[string]any)
	if args == nil {
		return req, nil
	}
	req.Args = maps.Clone(args)
	for _, key := range slices.Sorted(maps.Keys(args)) {
		raw, ok := args[key].(string)
		if !ok {
			continue
		}
		name := "args." + key
		clean, err := sanitizeField(name, raw, limits.Arg, true)
		if err != nil {
			return Request{}, err
		}
		if clean != raw {
			req.Args[key] = clean
			req.Changed = append(req.Changed, name)
		}
	}
	return req, nil
}

// sanitizeField drops control and invisible format characters. Free text
// keeps newlines and tabs; single-line fields have them turned into spaces.
func sanitizeField(name, value string, limit int, singleLine bool) (string, error) {
	if limit > 0 && len(value) > limit {
		return "", fmt.Errorf("%w: %s size=%d limit=%d", ErrInputTooLarge, name, len(value), limit)
	}
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("%w: %s", ErrInvalidUTF8, name)
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			if singleLine {
				return ' '
			}
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, value), nil
}

// MaxInputSize returns the limit from EnvMaxInputSize, or the default.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
