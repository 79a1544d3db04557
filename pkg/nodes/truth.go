package nodes

import (
	"context"
	"regexp"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

var actionName = regexp.MustCompile(`^[a-z][a-z0-9_.:-]*$`)

// Truth checks the plan is well-formed. A sound plan earns
// VERIFICATION_SUCCESS, a malformed one TYPE_CHECK_FAILURE.
func Truth(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		var issues []string

		action := stringField(s.Plan, "action")
		if !actionName.MatchString(action) {
			issues = append(issues, "action must be a lowercase identifier")
		}
		if _, ok := s.Plan["args"].(map[string]any); !ok {
			issues = append(issues, "args must be an object")
		}
		if stringField(s.Plan, "command") == "" {
			issues = append(issues, "command is empty")
		}

		trigger := trinity.VerificationSuccess
		if len(issues) > 0 {
			trigger = trinity.TypeCheckFailure
		}
		if issues == nil {
			issues = []string{}
		}

		s.SetOutput(string(domain.StepTruth), map[string]any{
			"valid":    len(issues) == 0,
			"issues":   issues,
			"triggers": []string{string(trigger)},
		})
		return nil
	}
}
