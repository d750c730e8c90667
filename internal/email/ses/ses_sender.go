package ses

import (
	"context"
	"fmt"
	"html"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"permitflow/internal/port"
)

// sesAPI is the subset of the SES client used for sending.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesSender struct {
	client      sesAPI
	fromAddress string
	fromName    string
	portalURL   string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName, portalURL string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return newSender(sesv2.NewFromConfig(cfg), fromAddress, fromName, portalURL), nil
}

func newSender(client sesAPI, fromAddress, fromName, portalURL string) *sesSender {
	return &sesSender{client: client, fromAddress: fromAddress, fromName: fromName, portalURL: portalURL}
}

func (s *sesSender) SendSubmissionAcknowledgment(ctx context.Context, ack port.Acknowledgment) error {
	trackURL := s.portalURL + ack.TrackingURL
	subject := fmt.Sprintf("We received your %s application", ack.FormTitle)
	htmlBody := buildAcknowledgmentHTML(ack, trackURL)
	textBody := buildAcknowledgmentText(ack, trackURL)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{ack.ToEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildAcknowledgmentText(ack port.Acknowledgment, trackURL string) string {
	ref := ""
	if ack.BusinessRef != "" {
		ref = fmt.Sprintf(" for %s", ack.BusinessRef)
	}
	return fmt.Sprintf("Hi %s,\n\nYour %s application%s has been received.\n%s\n\nYou can follow its progress at:\n%s\n\nBusiness Permits and Licensing Office",
		ack.ToName, ack.FormTitle, ref, ack.Message, trackURL)
}

func buildAcknowledgmentHTML(ack port.Acknowledgment, trackURL string) string {
	esc := html.EscapeString
	ref := ""
	if ack.BusinessRef != "" {
		ref = " for <strong>" + esc(ack.BusinessRef) + "</strong>"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Application received</h2>
  <p>Hi %s,</p>
  <p>Your %s application%s has been received.</p>
  <p>%s</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #1D4ED8; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Track Application</a>
  </p>
  <p style="word-break: break-all; color: #666;">%s</p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Business Permits and Licensing Office</p>
</body>
</html>`, esc(ack.ToName), esc(ack.FormTitle), ref, esc(ack.Message), esc(trackURL), esc(trackURL))
}
