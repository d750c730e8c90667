package ses

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/port"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSendSubmissionAcknowledgment(t *testing.T) {
	client := &fakeSES{}
	s := newSender(client, "noreply@bplo.local", "BPLO", "https://portal.example")

	err := s.SendSubmissionAcknowledgment(context.Background(), port.Acknowledgment{
		ToEmail:     "nena@example.com",
		ToName:      "Nena <script>",
		FormTitle:   "Business Permit Renewal",
		BusinessRef: "Aling Nena Store",
		Message:     "Application received.",
		TrackingURL: "/user/permittracker",
	})

	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "BPLO <noreply@bplo.local>", *client.input.FromEmailAddress)
	assert.Equal(t, []string{"nena@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "We received your Business Permit Renewal application", *client.input.Content.Simple.Subject.Data)

	htmlBody := *client.input.Content.Simple.Body.Html.Data
	assert.Contains(t, htmlBody, "Nena &lt;script&gt;")
	assert.NotContains(t, htmlBody, "<script>")
	assert.Contains(t, htmlBody, "https://portal.example/user/permittracker")

	text := *client.input.Content.Simple.Body.Text.Data
	assert.Contains(t, text, "for Aling Nena Store")
}

func TestSendSubmissionAcknowledgment_Error(t *testing.T) {
	s := newSender(&fakeSES{err: errors.New("throttled")}, "a@b", "A", "")
	err := s.SendSubmissionAcknowledgment(context.Background(), port.Acknowledgment{ToEmail: "x@y"})
	assert.ErrorContains(t, err, "SES SendEmail: throttled")
}
