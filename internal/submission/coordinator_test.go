package submission_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/config"
	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/formdef"
	"permitflow/internal/metrics"
	"permitflow/internal/submission"
	"permitflow/internal/validator"
)

var sigPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func renewalValidator(t *testing.T) *validator.StepValidator {
	t.Helper()
	def, err := formdef.Get(domain.FormTypeRenewal)
	require.NoError(t, err)
	sv, err := validator.NewStepValidator(def)
	require.NoError(t, err)
	return sv
}

func completeRenewal() *form.Form {
	f := form.New()
	for k, v := range map[string]string{
		"business_name":          "Aling Nena Store",
		"previous_permit_number": "BP-2024-0012",
		"permit_expiry":          "2025-12-31",
		"first_name":             "Nena",
		"last_name":              "Reyes",
		"nationality":            "Filipino",
		"contact_number":         "09171234567",
		"email":                  "nena@example.com",
		"home_address":           "12 Mabini St",
		"business_address":       "14 Mabini St",
		"barangay":               "Camarin",
		"line_of_business":       "Retail",
		"gross_sales":            "250,000",
		"total_employees":        "7",
		"male_employees":         "3",
		"female_employees":       "4",
	} {
		f.Set(k, v)
	}
	f.SetFile("barangay_clearance", &form.File{Name: "c.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 clearance")})
	f.SetFile("business_tax_receipt", &form.File{Name: "t.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 tax")})
	f.SetFile("fire_safety_certificate", &form.File{Name: "f.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 fire")})
	f.SetFile("valid_id", &form.File{Name: "id.png", ContentType: "image/png", Data: sigPNG})
	f.Set("signature", "data:image/png;base64,"+base64.StdEncoding.EncodeToString(sigPNG))
	f.SetFlag("agreed_declaration", true)
	return f
}

type capture struct {
	calls  atomic.Int32
	values map[string][]string
	files  map[string]struct {
		name, contentType string
		data              []byte
	}
}

func permitOffice(t *testing.T, status int, body string) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			c.values = r.MultipartForm.Value
			c.files = make(map[string]struct {
				name, contentType string
				data              []byte
			})
			for k, hs := range r.MultipartForm.File {
				fh, _ := hs[0].Open()
				data, _ := io.ReadAll(fh)
				_ = fh.Close()
				c.files[k] = struct {
					name, contentType string
					data              []byte
				}{hs[0].Filename, hs[0].Header.Get("Content-Type"), data}
			}
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newCoordinator(url string, m *metrics.Metrics) *submission.Coordinator {
	return submission.NewCoordinator(config.EndpointsConfig{
		RenewalSubmit: url,
		SpecialSubmit: url,
		TrackingURL:   "/user/permittracker",
	}, config.SubmissionConfig{TimeoutSecs: 5}, m, nil)
}

func submissionErr(t *testing.T, err error) *domain.SubmissionError {
	t.Helper()
	var se *domain.SubmissionError
	require.True(t, errors.As(err, &se), "expected *domain.SubmissionError, got %v", err)
	return se
}

func TestSubmit_ValidationAbortsWithoutNetwork(t *testing.T) {
	srv, c := permitOffice(t, http.StatusOK, `{"success":true}`)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := completeRenewal()
	f.Set("male_employees", "3")
	f.Set("female_employees", "3")

	_, err := newCoordinator(srv.URL, m).Submit(context.Background(), renewalValidator(t), f, validator.Options{})

	se := submissionErr(t, err)
	assert.Equal(t, domain.AttemptAborted, se.State)
	assert.Equal(t, 3, se.Step)
	assert.True(t, submission.IsAborted(err))
	assert.Zero(t, c.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionOutcome.WithLabelValues("renewal", "aborted")))
}

func TestSubmit_Success(t *testing.T) {
	srv, c := permitOffice(t, http.StatusOK, `{"success":true,"message":"Application BP-2025-0101 received."}`)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	res, err := newCoordinator(srv.URL, m).Submit(context.Background(), renewalValidator(t), completeRenewal(), validator.Options{})

	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSuccess, res.State)
	assert.Equal(t, "Application BP-2025-0101 received.", res.Message)
	assert.Equal(t, "/user/permittracker", res.RedirectURL)
	assert.Equal(t, 3*time.Second, res.RedirectAfter)
	assert.EqualValues(t, 3000, res.RedirectMS)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionOutcome.WithLabelValues("renewal", "success")))

	assert.Equal(t, []string{"renewal_submit"}, c.values["action"])
	assert.Equal(t, []string{"Aling Nena Store"}, c.values["business_name"])
	assert.Equal(t, []string{"250,000"}, c.values["gross_sales"])
	assert.Equal(t, []string{"1"}, c.values["agreed_declaration"])
	assert.NotContains(t, c.values, "signature", "signature must never be sent as text")

	sig, ok := c.files["signature"]
	require.True(t, ok)
	assert.Equal(t, "signature.png", sig.name)
	assert.Equal(t, "image/png", sig.contentType)
	assert.Equal(t, sigPNG, sig.data)

	clearance, ok := c.files["barangay_clearance"]
	require.True(t, ok)
	assert.Equal(t, "c.pdf", clearance.name)
	assert.Equal(t, "application/pdf", clearance.contentType)
}

func TestSubmit_UnsetFlagSentAsZero(t *testing.T) {
	srv, c := permitOffice(t, http.StatusOK, `{"success":1}`)
	f := completeRenewal()
	f.SetFlag("newsletter", false)

	res, err := newCoordinator(srv.URL, nil).Submit(context.Background(), renewalValidator(t), f, validator.Options{})

	require.NoError(t, err)
	assert.Equal(t, "Your application has been submitted successfully.", res.Message)
	assert.Equal(t, []string{"0"}, c.values["newsletter"])
}

func TestSubmit_PHPFatalErrorOn200(t *testing.T) {
	srv, _ := permitOffice(t, http.StatusOK, "<?php Fatal error: Uncaught mysqli_sql_exception in renewal_permit.php:42")

	_, err := newCoordinator(srv.URL, nil).Submit(context.Background(), renewalValidator(t), completeRenewal(), validator.Options{})

	se := submissionErr(t, err)
	assert.Equal(t, domain.AttemptFailed, se.State)
	assert.Equal(t, http.StatusOK, se.StatusCode)
	assert.Contains(t, se.Message, "script error")
	assert.NotContains(t, se.Message, "JSON")
}

func TestSubmit_ApplicationFailureOn200(t *testing.T) {
	srv, _ := permitOffice(t, http.StatusOK, `{"success":false,"error":"Duplicate application for BP-2024-0012"}`)

	_, err := newCoordinator(srv.URL, nil).Submit(context.Background(), renewalValidator(t), completeRenewal(), validator.Options{})

	se := submissionErr(t, err)
	assert.Equal(t, domain.AttemptFailed, se.State)
	assert.Equal(t, "Duplicate application for BP-2024-0012", se.Message)
}

func TestSubmit_MissingSuccessIsFailure(t *testing.T) {
	srv, _ := permitOffice(t, http.StatusOK, `{"message":"saved"}`)

	_, err := newCoordinator(srv.URL, nil).Submit(context.Background(), renewalValidator(t), completeRenewal(), validator.Options{})

	se := submissionErr(t, err)
	assert.Equal(t, domain.AttemptFailed, se.State)
	assert.Equal(t, "saved", se.Message)
}

func TestSubmit_Non2xx(t *testing.T) {
	srv, _ := permitOffice(t, http.StatusInternalServerError, `{"success":false,"error":"database unavailable"}`)

	_, err := newCoordinator(srv.URL, nil).Submit(context.Background(), renewalValidator(t), completeRenewal(), validator.Options{})

	se := submissionErr(t, err)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "The server returned an error (HTTP 500). database unavailable", se.Message)
}

func TestSubmit_NetworkFailureDiagnostic(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newCoordinator(url, nil).Submit(context.Background(), renewalValidator(t), completeRenewal(), validator.Options{})

	se := submissionErr(t, err)
	assert.Equal(t, domain.AttemptFailed, se.State)
	assert.Contains(t, se.Message, "Unable to reach the permit server")
	assert.Contains(t, se.Message, url)
	assert.Contains(t, se.Message, "cross-origin")
	assert.Error(t, se.Err)
}

func TestSubmit_TypedSignatureAbortsAtDeclaration(t *testing.T) {
	srv, c := permitOffice(t, http.StatusOK, `{"success":true}`)
	f := completeRenewal()
	f.Set("signature", "Nena Reyes")

	_, err := newCoordinator(srv.URL, nil).Submit(context.Background(), renewalValidator(t), f, validator.Options{})

	se := submissionErr(t, err)
	assert.Equal(t, domain.AttemptAborted, se.State)
	assert.Equal(t, 5, se.Step)
	assert.Zero(t, c.calls.Load())
}

func TestSubmit_SignatureFileSentAsIs(t *testing.T) {
	srv, c := permitOffice(t, http.StatusOK, `{"success":"true"}`)
	f := completeRenewal()
	f.Set("signature", "")
	f.SetFile("signature", &form.File{Name: "sig.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}})

	_, err := newCoordinator(srv.URL, nil).Submit(context.Background(), renewalValidator(t), f, validator.Options{})

	require.NoError(t, err)
	assert.Equal(t, "sig.jpg", c.files["signature"].name)
	assert.Equal(t, "image/jpeg", c.files["signature"].contentType)
}
