package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"permitflow/internal/domain"
	"permitflow/internal/preview"
	"permitflow/internal/service"
	"permitflow/internal/storage/memory"
	"permitflow/mocks"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func writeAnswers(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "answers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAnswers(t *testing.T) {
	path := writeAnswers(t, `
form: renewal
fields:
  business_name: Acme Bakery
flags:
  agreed_declaration: true
files:
  valid_id: id.png
ids:
  barangay_clearance: BC-2024-0001
`)
	a, err := loadAnswers(path)
	require.NoError(t, err)
	assert.Equal(t, domain.FormTypeRenewal, a.Form)
	assert.Equal(t, "Acme Bakery", a.Fields["business_name"])
	assert.True(t, a.Flags["agreed_declaration"])
	assert.Equal(t, "id.png", a.Files["valid_id"])
	assert.Equal(t, "BC-2024-0001", a.IDs["barangay_clearance"])
	assert.Equal(t, filepath.Dir(path), a.dir)
}

func TestLoadAnswers_RequiresForm(t *testing.T) {
	_, err := loadAnswers(writeAnswers(t, "fields: {business_name: x}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form is required")
}

func TestAnswersOpen_FillsSession(t *testing.T) {
	log = zap.NewNop()
	path := writeAnswers(t, `
form: renewal
fields:
  business_name: Acme Bakery
  barangay: Tala
files:
  valid_id: id.png
`)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "id.png"), pngBytes, 0o600))
	a, err := loadAnswers(path)
	require.NoError(t, err)

	svc := service.NewWizardService(service.WizardDeps{
		Previews: preview.NewManager(memory.NewStore("memory://previews"), "previews", 60, nil),
	}, service.WizardConfig{})
	defer svc.Close()

	view, err := a.open(context.Background(), svc, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "Acme Bakery", view.Form.Values["business_name"])
	assert.Equal(t, "id.png", view.Form.Files["valid_id"].Name)
	assert.Equal(t, 1, view.Wizard.CurrentStep)
}

func TestAnswersOpen_VerifiesIDs(t *testing.T) {
	log = zap.NewNop()
	a, err := loadAnswers(writeAnswers(t, `
form: renewal
ids:
  barangay_clearance: BC-1
  business_tax_receipt: BT-9
`))
	require.NoError(t, err)

	verifier := new(mocks.MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything, domain.VerifyKindClearance, "BC-1").
		Return(domain.VerificationResult{Success: true, Message: "ok", CrossRefID: "APP-7"})
	verifier.On("Verify", mock.Anything, mock.Anything, domain.VerifyKindTax, "BT-9").
		Return(domain.VerificationResult{Message: "not paid"})

	svc := service.NewWizardService(service.WizardDeps{
		Verifier: verifier,
		Previews: preview.NewManager(memory.NewStore("memory://previews"), "previews", 60, nil),
	}, service.WizardConfig{})
	defer svc.Close()

	view, err := a.open(context.Background(), svc, 1<<20)
	require.NoError(t, err)
	assert.True(t, view.IDVerifications["barangay_clearance"].Verified)
	assert.False(t, view.IDVerifications["business_tax_receipt"].Verified)
	assert.Equal(t, "APP-7", view.Form.Values["applicant_id"])
	verifier.AssertExpectations(t)
}

func TestAnswersOpen_MissingFile(t *testing.T) {
	log = zap.NewNop()
	a, err := loadAnswers(writeAnswers(t, "form: renewal\nfiles: {valid_id: nowhere.png}\n"))
	require.NoError(t, err)

	svc := service.NewWizardService(service.WizardDeps{
		Previews: preview.NewManager(memory.NewStore("memory://previews"), "previews", 60, nil),
	}, service.WizardConfig{})
	defer svc.Close()

	_, err = a.open(context.Background(), svc, 1<<20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid_id")
}

func TestRunForms(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runForms(cmd, nil))
	assert.Contains(t, buf.String(), "renewal")
	assert.Contains(t, buf.String(), "special")

	buf.Reset()
	require.NoError(t, runForms(cmd, []string{"special"}))
	assert.Contains(t, buf.String(), "type: special")

	assert.Error(t, runForms(cmd, []string{"zoning"}))
}
