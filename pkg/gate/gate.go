// Package gate implements the validation gate a candidate artifact must pass
// before it may replace the deployed version. Three checks run
// unconditionally and independently, so a single rejection reports every
// violated check: syntax (tree-sitter parse), structural guard (verbatim
// required-signature allow-list), and size sanity (length band relative to
// the current artifact).
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sovereignlab/sovereign/pkg/domain"
)

// Rules configures the gate for one artifact.
type Rules struct {
	// RequiredSignatures is the fixed allow-list of critical entry-point and
	// interface signatures that must survive every rewrite verbatim.
	RequiredSignatures []string `yaml:"required_signatures"`
	Size               SizeBand `yaml:"size"`
}

// Validator runs the gate checks.
type Validator struct {
	rules Rules
}

func NewValidator(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// Validate checks the candidate against the current artifact. It returns nil
// on acceptance and a *domain.ValidationError aggregating every violation on
// rejection. All three checks always run; none short-circuits another.
func (v *Validator) Validate(ctx context.Context, artifactPath string, candidate, current []byte) error {
	var violations []domain.Violation

	issues, err := checkSyntax(ctx, artifactPath, candidate)
	if err != nil {
		// A parser failure means the candidate could not be proven valid.
		violations = append(violations, domain.Violation{
			Reason: domain.SyntaxInvalid,
			Detail: err.Error(),
		})
	} else if len(issues) > 0 {
		details := make([]string, 0, len(issues))
		for _, issue := range issues {
			details = append(details, issue.String())
		}
		violations = append(violations, domain.Violation{
			Reason: domain.SyntaxInvalid,
			Detail: strings.Join(details, "; "),
		})
	}

	if missing := missingSignatures(candidate, v.rules.RequiredSignatures); len(missing) > 0 {
		violations = append(violations, domain.Violation{
			Reason: domain.StructuralRegression,
			Detail: fmt.Sprintf("missing required signatures: %s", strings.Join(missing, ", ")),
		})
	}

	if detail := checkSize(len(candidate), len(current), v.rules.Size); detail != "" {
		violations = append(violations, domain.Violation{
			Reason: domain.SizeAnomaly,
			Detail: detail,
		})
	}

	if len(violations) > 0 {
		return &domain.ValidationError{
			ArtifactPath: artifactPath,
			Violations:   violations,
		}
	}
	return nil
}
