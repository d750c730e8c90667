// Package validator decides whether a wizard step is complete. Validation is pure: it reads the
// form and the session's verified IDs and never performs I/O.
package validator

import (
	"permitflow/internal/domain"
	"permitflow/internal/formdef"
)

// RuleType groups rules for reporting.
type RuleType string

const (
	RuleRequired    RuleType = "required"
	RuleFormat      RuleType = "format"
	RuleAttachment  RuleType = "attachment"
	RuleCrossField  RuleType = "cross_field"
	RuleDeclaration RuleType = "declaration"
)

// Mode selects how "file or ID" attachment slots are judged.
type Mode string

const (
	// PresenceOnly accepts a slot when a file is attached or its ID field is non-empty.
	PresenceOnly Mode = "presence"
	// VerifiedOnly additionally requires an ID-only slot to have passed remote verification.
	VerifiedOnly Mode = "verified"
)

// FormReader is the read-only view of a form that rules need.
type FormReader interface {
	Value(key string) string
	Flag(key string) bool
	HasFile(key string) bool
	HasSignature(key string) bool
}

// VerifiedIDs reports whether an ID has passed remote verification in this session.
type VerifiedIDs interface {
	IsVerified(kind domain.VerifyKind, id string) bool
}

// Options carries ancillary session state into validation.
type Options struct {
	Mode     Mode
	Verified VerifiedIDs
}

// Input is everything a rule may look at.
type Input struct {
	Def     *formdef.Definition
	Step    *formdef.Step
	Form    FormReader
	Options Options
}

func (in *Input) isVerified(kind domain.VerifyKind, id string) bool {
	if in.Options.Verified == nil {
		return false
	}
	return in.Options.Verified.IsVerified(kind, id)
}

// Finding is the outcome of one rule against one field.
type Finding struct {
	Passed   bool
	FieldKey string
	// Missing marks a presence failure; its Label joins the combined missing-fields message.
	Missing bool
	Label   string
	Message string
}

// Rule is a single check bound to one step.
type Rule interface {
	Check(in *Input) []Finding
	RuleKey() string
	RuleName() string
	RuleType() RuleType
}
