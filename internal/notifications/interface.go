package notifications

import "github.com/postpilot/reddit-affiliate-bot/internal/models"

// Notifier delivers operator-facing alerts and summaries.
type Notifier interface {
	SendPostFailureAlert(post models.ScheduledPost, reason string) error
	SendScanReport(keywordsScanned, threadsSeen, newOpportunities int) error
}
