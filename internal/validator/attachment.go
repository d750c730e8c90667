package validator

import (
	"fmt"
	"strings"

	"permitflow/internal/domain"
)

// attachmentValidator checks that a mandatory document slot is satisfied by a file, an ID, or either.
type attachmentValidator struct {
	req domain.AttachmentRequirement
}

func (v *attachmentValidator) RuleKey() string    { return "att." + v.req.Key }
func (v *attachmentValidator) RuleName() string   { return "Attachment: " + v.req.Label }
func (v *attachmentValidator) RuleType() RuleType { return RuleAttachment }

func (v *attachmentValidator) Check(in *Input) []Finding {
	hasFile := v.req.AcceptsFile() && in.Form.HasFile(v.req.Key)
	id := ""
	if v.req.AcceptsID() {
		id = strings.TrimSpace(in.Form.Value(v.req.IDField))
	}

	if hasFile {
		return []Finding{{Passed: true, FieldKey: v.req.Key}}
	}
	if id == "" {
		if !v.req.Mandatory {
			return nil
		}
		return []Finding{{
			FieldKey: v.req.Key,
			Missing:  true,
			Label:    v.missingLabel(),
			Message:  fmt.Sprintf("%s is required", v.missingLabel()),
		}}
	}

	// Satisfied by ID alone.
	needsVerification := v.req.RequireVerified || in.Options.Mode == VerifiedOnly
	if needsVerification && v.req.VerifyKind != "" && !in.isVerified(v.req.VerifyKind, id) {
		return []Finding{{
			FieldKey: v.req.IDField,
			Label:    v.req.IDLabel,
			Message:  fmt.Sprintf("%s %s must be verified before continuing.", v.req.IDLabel, id),
		}}
	}
	return []Finding{{Passed: true, FieldKey: v.req.Key}}
}

func (v *attachmentValidator) missingLabel() string {
	switch v.req.SatisfiedBy {
	case domain.SatisfiedByEither:
		return fmt.Sprintf("%s (upload a file or enter the %s)", v.req.Label, v.req.IDLabel)
	case domain.SatisfiedByID:
		return v.req.IDLabel
	default:
		return v.req.Label
	}
}
