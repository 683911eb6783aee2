package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/clinware/labguard/internal/models"
)

// SESAlertService emails operators when an IP block trips or a suspicious
// session is registered. Sends are best-effort: a mail failure is logged
// and never propagated into the login flow.
type SESAlertService struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewSESAlertService creates an SES-backed alert notifier.
func NewSESAlertService(region, fromAddress, toAddress string, logger *slog.Logger) (*SESAlertService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESAlertService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// NotifyBlockTripped emails the operator that an IP crossed the failure
// threshold.
func (s *SESAlertService) NotifyBlockTripped(ctx context.Context, attempt *models.FailedAttempt) {
	subject := fmt.Sprintf("[labguard] IP %s temporarily blocked", attempt.SourceIP)
	body := fmt.Sprintf(`An IP address has been temporarily blocked after repeated failed logins.

Source IP:           %s
Last username tried: %s
Consecutive failures: %d
Last failure reason: %s
Occurred at:         %s

The block lifts automatically once attempts cease for a full window.
`,
		attempt.SourceIP,
		attempt.Username,
		attempt.ConsecutiveCount,
		attempt.FailureReason,
		attempt.OccurredAt.UTC().Format(time.RFC3339),
	)

	s.send(ctx, subject, body)
}

// NotifySuspiciousSession emails the operator that a login was flagged.
func (s *SESAlertService) NotifySuspiciousSession(ctx context.Context, session *models.Session, reason string) {
	subject := fmt.Sprintf("[labguard] suspicious session for user %s", session.UserID)
	body := fmt.Sprintf(`A login was flagged as suspicious.

User ID:    %s
Session ID: %s
Source IP:  %s
User-Agent: %s
Login time: %s
Reason:     %s

Review the session and mark or close it from the security console if needed.
`,
		session.UserID,
		session.ID,
		session.SourceIP,
		session.UserAgent,
		session.LoginTime.UTC().Format(time.RFC3339),
		reason,
	)

	s.send(ctx, subject, body)
}

func (s *SESAlertService) send(ctx context.Context, subject, body string) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send security alert email",
			slog.String("subject", subject),
			slog.Any("error", err))
	}
}
