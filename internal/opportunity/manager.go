package opportunity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/schedule"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

// Manager enforces the opportunity state machine: new -> queued ->
// processed, with rejected/ignored/completed as terminal states.
type Manager struct {
	store     store.Store
	batchSize int
	now       func() time.Time
}

// ProcessResult summarizes one processing pass over queued opportunities.
type ProcessResult struct {
	Processed int `json:"processed"`
	Rejected  int `json:"rejected"`
}

// NewManager creates a queue manager promoting at most batchSize
// opportunities per pass.
func NewManager(st store.Store, batchSize int) *Manager {
	return &Manager{store: st, batchSize: batchSize, now: time.Now}
}

// NewManagerWithClock is NewManager with an injectable clock for tests.
func NewManagerWithClock(st store.Store, batchSize int, now func() time.Time) *Manager {
	return &Manager{store: st, batchSize: batchSize, now: now}
}

// Promote moves the top-scored new opportunities to queued. Re-running
// without new data is a no-op since promoted records leave the new state.
func (m *Manager) Promote(ctx context.Context) (int, error) {
	opportunities, err := m.store.ListOpportunitiesByStatus(ctx, models.OpportunityNew)
	if err != nil {
		return 0, fmt.Errorf("failed to list new opportunities: %w", err)
	}

	promoted := 0
	for _, opp := range opportunities {
		if promoted >= m.batchSize {
			break
		}

		if err := m.store.UpdateOpportunityStatus(ctx, opp.ID, models.OpportunityQueued); err != nil {
			logrus.Errorf("Failed to queue opportunity %d: %v", opp.ID, err)
			continue
		}
		m.logActivity(ctx, nil, models.ActivityOpportunityQueued,
			fmt.Sprintf("Queued opportunity '%s' (score %d)", opp.Title, opp.Score),
			map[string]any{"opportunity_id": opp.ID, "score": opp.Score})
		promoted++
	}

	if promoted > 0 {
		logrus.Infof("Promoted %d of %d new opportunities", promoted, len(opportunities))
	}
	return promoted, nil
}

// Process matches queued opportunities against active campaigns. A match
// creates a content queue entry scheduled into the campaign's next slot;
// no match rejects the opportunity. Store failures on a single item are
// logged and processing continues.
func (m *Manager) Process(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult

	queued, err := m.store.ListOpportunitiesByStatus(ctx, models.OpportunityQueued)
	if err != nil {
		return result, fmt.Errorf("failed to list queued opportunities: %w", err)
	}
	if len(queued) == 0 {
		return result, nil
	}

	campaigns, err := m.store.ListActiveCampaigns(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list campaigns: %w", err)
	}

	for _, opp := range queued {
		outcome, err := m.processOne(ctx, opp, campaigns)
		if err != nil {
			logrus.Errorf("Failed to process opportunity %d: %v", opp.ID, err)
			continue
		}
		switch outcome {
		case models.OpportunityProcessed:
			result.Processed++
		case models.OpportunityRejected:
			result.Rejected++
		}
	}

	logrus.Infof("Processing pass complete: %d processed, %d rejected", result.Processed, result.Rejected)
	return result, nil
}

func (m *Manager) processOne(ctx context.Context, opp models.Opportunity, campaigns []models.Campaign) (string, error) {
	campaign := matchCampaign(opp.Subreddit, campaigns)
	if campaign == nil {
		if err := m.store.UpdateOpportunityStatus(ctx, opp.ID, models.OpportunityRejected); err != nil {
			return "", err
		}
		m.logActivity(ctx, nil, models.ActivityOpportunityRejected,
			fmt.Sprintf("Rejected opportunity '%s': no active campaign targets r/%s", opp.Title, opp.Subreddit),
			map[string]any{"opportunity_id": opp.ID, "subreddit": opp.Subreddit})
		return models.OpportunityRejected, nil
	}

	cfg, err := schedule.Parse(campaign.ScheduleConfig)
	if err != nil {
		return "", fmt.Errorf("campaign %d schedule: %w", campaign.ID, err)
	}
	scheduledFor, err := cfg.NextSlot(m.now())
	if err != nil {
		return "", fmt.Errorf("campaign %d slot: %w", campaign.ID, err)
	}

	item := models.ContentQueueItem{
		OpportunityID: opp.ID,
		CampaignID:    campaign.ID,
		Subreddit:     opp.Subreddit,
		ScheduledFor:  scheduledFor,
		Status:        models.ContentPending,
	}
	if err := m.store.InsertContentItem(ctx, item); err != nil {
		return "", fmt.Errorf("failed to create content queue item: %w", err)
	}

	if err := m.store.UpdateOpportunityStatus(ctx, opp.ID, models.OpportunityProcessed); err != nil {
		return "", err
	}

	m.logActivity(ctx, &campaign.ID, models.ActivityOpportunityProcessed,
		fmt.Sprintf("Matched opportunity '%s' to campaign '%s', content due %s",
			opp.Title, campaign.Name, scheduledFor.Format(time.RFC3339)),
		map[string]any{"opportunity_id": opp.ID, "campaign_id": campaign.ID, "scheduled_for": scheduledFor})
	return models.OpportunityProcessed, nil
}

// Ignore marks an opportunity ignored by explicit user action. Only new
// and queued opportunities can be ignored.
func (m *Manager) Ignore(ctx context.Context, id int64) error {
	opp, err := m.store.GetOpportunity(ctx, id)
	if err != nil {
		return err
	}
	if opp.Status != models.OpportunityNew && opp.Status != models.OpportunityQueued {
		return fmt.Errorf("cannot ignore opportunity in state %q", opp.Status)
	}
	return m.store.UpdateOpportunityStatus(ctx, id, models.OpportunityIgnored)
}

// Complete marks a processed opportunity as done end to end.
func (m *Manager) Complete(ctx context.Context, id int64) error {
	opp, err := m.store.GetOpportunity(ctx, id)
	if err != nil {
		return err
	}
	if opp.Status != models.OpportunityProcessed {
		return fmt.Errorf("cannot complete opportunity in state %q", opp.Status)
	}
	return m.store.UpdateOpportunityStatus(ctx, id, models.OpportunityCompleted)
}

// matchCampaign returns the first active campaign whose target list
// contains the subreddit, or nil.
func matchCampaign(subreddit string, campaigns []models.Campaign) *models.Campaign {
	for i := range campaigns {
		for _, target := range campaigns[i].TargetSubreddits {
			if strings.EqualFold(target, subreddit) {
				return &campaigns[i]
			}
		}
	}
	return nil
}

func (m *Manager) logActivity(ctx context.Context, campaignID *int64, activityType, message string, details map[string]any) {
	data, _ := json.Marshal(details)
	if err := m.store.AppendActivity(ctx, models.Activity{
		CampaignID: campaignID,
		Type:       activityType,
		Message:    message,
		Details:    data,
	}); err != nil {
		logrus.Errorf("Failed to append activity: %v", err)
	}
}
