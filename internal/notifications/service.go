package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/postpilot/reddit-affiliate-bot/internal/config"
	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// Service sends notifications via a Teams webhook and/or SMTP email.
// Channels that are not configured are skipped silently.
type Service struct {
	config *config.Config
	client *resty.Client
}

var _ Notifier = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendPostFailureAlert notifies operators that a publish attempt failed
// and needs an explicit reschedule.
func (s *Service) SendPostFailureAlert(post models.ScheduledPost, reason string) error {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   "Post publish failed",
		Text:    fmt.Sprintf("Post %d to r/%s failed and will not be retried automatically.", post.ID, post.Subreddit),
		Sections: []TeamsSection{{
			ActivityTitle: post.Title,
			Facts: []TeamsFact{
				{Name: "Post ID", Value: fmt.Sprintf("%d", post.ID)},
				{Name: "Subreddit", Value: "r/" + post.Subreddit},
				{Name: "Reason", Value: reason},
			},
			Markdown: true,
		}},
	}

	body := fmt.Sprintf("Post %d (%s) to r/%s failed: %s\n\nReschedule it from the dashboard to retry.",
		post.ID, post.Title, post.Subreddit, reason)

	return s.send(message, "Post publish failed", body)
}

// SendScanReport summarizes a completed keyword scan.
func (s *Service) SendScanReport(keywordsScanned, threadsSeen, newOpportunities int) error {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   "Keyword scan complete",
		Text:    fmt.Sprintf("Found %d new opportunities", newOpportunities),
		Sections: []TeamsSection{{
			ActivityTitle: "Scan summary",
			Facts: []TeamsFact{
				{Name: "Keywords scanned", Value: fmt.Sprintf("%d", keywordsScanned)},
				{Name: "Threads seen", Value: fmt.Sprintf("%d", threadsSeen)},
				{Name: "New opportunities", Value: fmt.Sprintf("%d", newOpportunities)},
				{Name: "Generated", Value: time.Now().Format("2006-01-02 15:04:05 UTC")},
			},
			Markdown: true,
		}},
	}

	body := fmt.Sprintf("Keyword scan complete.\n\nKeywords scanned: %d\nThreads seen: %d\nNew opportunities: %d\n",
		keywordsScanned, threadsSeen, newOpportunities)

	return s.send(message, "Keyword scan complete", body)
}

func (s *Service) send(teamsMessage *TeamsMessage, subject, emailBody string) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(teamsMessage); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(subject, emailBody); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) sendToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (s *Service) sendEmail(subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
