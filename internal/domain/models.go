package domain

// AttachmentRequirement describes a document slot on a form.
type AttachmentRequirement struct {
	Key             string       `yaml:"key" json:"key"`
	Label           string       `yaml:"label" json:"label"`
	Mandatory       bool         `yaml:"mandatory" json:"mandatory"`
	SatisfiedBy     SatisfiedBy  `yaml:"satisfied_by" json:"satisfied_by"`
	IDField         string       `yaml:"id_field,omitempty" json:"id_field,omitempty"`
	IDLabel         string       `yaml:"id_label,omitempty" json:"id_label,omitempty"`
	VerifyKind      VerifyKind   `yaml:"verify_kind,omitempty" json:"verify_kind,omitempty"`
	RequireVerified bool         `yaml:"require_verified,omitempty" json:"require_verified,omitempty"`
	DocumentKind    DocumentKind `yaml:"document_kind,omitempty" json:"document_kind,omitempty"`
	// CrossRefField receives the related id found on a verified record.
	CrossRefField string `yaml:"cross_ref_field,omitempty" json:"cross_ref_field,omitempty"`
}

// AcceptsFile reports whether an uploaded file can satisfy the slot.
func (a *AttachmentRequirement) AcceptsFile() bool {
	return a.SatisfiedBy == SatisfiedByFile || a.SatisfiedBy == SatisfiedByEither
}

// AcceptsID reports whether a reference ID can satisfy the slot.
func (a *AttachmentRequirement) AcceptsID() bool {
	return (a.SatisfiedBy == SatisfiedByID || a.SatisfiedBy == SatisfiedByEither) && a.IDField != ""
}

// VerificationResult is the outcome of one remote status check.
type VerificationResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Record  map[string]any `json:"record,omitempty"`
	// CrossRefID is a related identifier found on the record (e.g. the applicant id of a clearance).
	CrossRefID string `json:"cross_ref_id,omitempty"`
	Cached     bool   `json:"cached"`
}

// DocumentState is the per-attachment text-extraction state.
type DocumentState struct {
	Verifying     bool   `json:"is_verifying"`
	Verified      bool   `json:"is_verified"`
	IsValid       bool   `json:"is_valid"`
	Message       string `json:"message,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
	Error         string `json:"error,omitempty"`
	Progress      int    `json:"progress"`
}

// IDVerificationState tracks the remote verification badge for an attachment's ID field.
type IDVerificationState struct {
	Verifying bool   `json:"is_verifying"`
	Verified  bool   `json:"is_verified"`
	ID        string `json:"id,omitempty"`
	Message   string `json:"message,omitempty"`
}
