package nodes

import (
	"context"
	"strings"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/guard"
)

// Cmd accepts the raw request. It needs a non-empty "text" or "command" and
// records the sanitized text, command and args.
func Cmd(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		req, err := guard.SanitizeRequest(s.Input, guard.LimitsFor(deps.MaxInputSize))
		if err != nil {
			return domain.NewValueError(err.Error())
		}

		field, text := "text", strings.TrimSpace(req.Text)
		if text == "" {
			field, text = "command", strings.TrimSpace(req.Command)
		}
		if text == "" {
			return domain.NewValueError("input requires a non-empty text or command")
		}

		changed := req.Changed
		if changed == nil {
			changed = []string{}
		}
		out := map[string]any{
			"field":            field,
			"text":             text,
			"command":          strings.TrimSpace(req.Command),
			"length":           len(text),
			"sanitized":        len(changed) > 0,
			"sanitized_fields": changed,
		}
		if req.Args != nil {
			out["args"] = req.Args
		}
		s.SetOutput(string(domain.StepCmd), out)
		return nil
	}
}
