package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DecodeRequest decodes a request payload into an ActionRequest.
// Scalars are coerced ("true" -> true) so HTTP and CLI payloads decode alike.
func DecodeRequest(input map[string]any) (domain.ActionRequest, error) {
	var req domain.ActionRequest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return req, err
	}
	if err := decoder.Decode(input); err != nil {
		return req, err
	}
	return req, nil
}

// Parse turns the input into a plan. The action defaults to the first word of
// the command or text.
func Parse(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		req, err := DecodeRequest(s.Input)
		if err != nil {
			return domain.NewValueError(fmt.Sprintf("malformed request: %v", err))
		}

		text, command, args := req.Text, req.Command, req.Args
		if cmd, ok := s.Output(string(domain.StepCmd)); ok {
			text = stringField(cmd, "text")
			command = stringField(cmd, "command")
			if clean, ok := cmd["args"].(map[string]any); ok {
				args = clean
			}
		}
		if command == "" {
			command = text
		}

		action := strings.ToLower(strings.TrimSpace(req.Action))
		words := strings.Fields(command)
		if action == "" && len(words) > 0 {
			action = strings.ToLower(words[0])
		}
		if action == "" {
			return domain.NewValueError("no action could be derived from the request")
		}
		target := req.Target
		if target == "" && req.Action == "" && len(words) > 1 {
			target = words[1]
		}

		if args == nil {
			args = map[string]any{}
		}

		s.Plan = map[string]any{
			"action":  action,
			"target":  target,
			"command": command,
			"text":    text,
			"source":  req.Source,
			"actor":   req.Actor,
			"dry_run": req.DryRun,
			"tags":    req.Tags,
			"args":    args,
		}
		s.SetOutput(string(domain.StepParse), map[string]any{
			"action":  action,
			"target":  target,
			"dry_run": req.DryRun,
		})
		return nil
	}
}
