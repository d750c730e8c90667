package validator

import (
	"fmt"
	"strings"

	"permitflow/internal/formdef"
)

// declarationValidator requires a signature and an explicit agreement.
type declarationValidator struct {
	decl           formdef.Declaration
	signatureLabel string
	agreementLabel string
}

func (v *declarationValidator) RuleKey() string    { return "decl.signed" }
func (v *declarationValidator) RuleName() string   { return "Declaration" }
func (v *declarationValidator) RuleType() RuleType { return RuleDeclaration }

func (v *declarationValidator) Check(in *Input) []Finding {
	signed := in.Form.HasSignature(v.decl.SignatureField)
	sigMsg := fieldMessage(signed, v.signatureLabel)
	if !signed && (strings.TrimSpace(in.Form.Value(v.decl.SignatureField)) != "" || in.Form.HasFile(v.decl.SignatureField)) {
		sigMsg = fmt.Sprintf("%s must be drawn or uploaded as an image", v.signatureLabel)
	}
	agreed := in.Form.Flag(v.decl.AgreementField)
	return []Finding{
		{
			Passed:   signed,
			FieldKey: v.decl.SignatureField,
			Missing:  !signed,
			Label:    v.signatureLabel,
			Message:  sigMsg,
		},
		{
			Passed:   agreed,
			FieldKey: v.decl.AgreementField,
			Missing:  !agreed,
			Label:    v.agreementLabel,
			Message:  fieldMessage(agreed, v.agreementLabel),
		},
	}
}

func newDeclarationValidator(def *formdef.Definition, decl formdef.Declaration) *declarationValidator {
	v := &declarationValidator{decl: decl, signatureLabel: "Signature", agreementLabel: "Declaration Agreement"}
	if f, ok := def.Field(decl.SignatureField); ok {
		v.signatureLabel = f.Label
	}
	if f, ok := def.Field(decl.AgreementField); ok {
		v.agreementLabel = f.Label
	}
	return v
}
