package domain

// FormType identifies which permit wizard a session runs.
type FormType string

const (
	FormTypeRenewal FormType = "renewal"
	FormTypeSpecial FormType = "special"
)

// FieldKind describes how a form field is captured and serialized.
type FieldKind string

const (
	FieldKindText      FieldKind = "text"
	FieldKindNumber    FieldKind = "number"
	FieldKindChoice    FieldKind = "choice"
	FieldKindFlag      FieldKind = "flag"
	FieldKindSignature FieldKind = "signature"
)

// SatisfiedBy describes what fulfils an attachment slot.
type SatisfiedBy string

const (
	SatisfiedByFile   SatisfiedBy = "file"
	SatisfiedByID     SatisfiedBy = "id"
	SatisfiedByEither SatisfiedBy = "either"
)

// VerifyKind names a remote status check.
type VerifyKind string

const (
	VerifyKindClearance VerifyKind = "clearance"
	VerifyKindTax       VerifyKind = "tax"
)

// DocumentKind selects the keyword set used to classify extracted text.
type DocumentKind string

const (
	DocumentKindClearance   DocumentKind = "clearance"
	DocumentKindTaxReceipt  DocumentKind = "tax_receipt"
	DocumentKindFireCert    DocumentKind = "fire_certificate"
	DocumentKindIdentity    DocumentKind = "identity"
	DocumentKindUnspecified DocumentKind = ""
)

// AttemptState is the lifecycle of one submission attempt.
type AttemptState string

const (
	AttemptIdle       AttemptState = "idle"
	AttemptValidating AttemptState = "validating"
	AttemptAborted    AttemptState = "aborted"
	AttemptSending    AttemptState = "sending"
	AttemptSuccess    AttemptState = "success"
	AttemptFailed     AttemptState = "failed"
)

// AllowedContentTypes maps accepted upload MIME types to a short file type.
var AllowedContentTypes = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/png":       "png",
}
