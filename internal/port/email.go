package port

import "context"

// Acknowledgment describes the confirmation sent to an applicant after a successful submission.
type Acknowledgment struct {
	ToEmail     string
	ToName      string
	FormTitle   string
	BusinessRef string
	Message     string
	TrackingURL string
}

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	SendSubmissionAcknowledgment(ctx context.Context, ack Acknowledgment) error
}
