package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/postpilot/reddit-affiliate-bot/internal/discovery"
	"github.com/postpilot/reddit-affiliate-bot/internal/generator"
	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/notifications"
	"github.com/postpilot/reddit-affiliate-bot/internal/opportunity"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

// PostScheduler is the single scheduler operation the pipeline needs.
type PostScheduler interface {
	SchedulePost(ctx context.Context, postID int64, at time.Time) error
}

// Service composes the pipeline stages and exposes the manual triggers
// the HTTP API surfaces.
type Service struct {
	store     store.Store
	discovery *discovery.Service
	manager   *opportunity.Manager
	generator generator.Generator
	scheduler PostScheduler
	notifier  notifications.Notifier
	scanLimit int
}

// NewService wires the pipeline. The generator and notifier may be nil
// when not configured; content then stays pending until one is.
func NewService(st store.Store, disc *discovery.Service, mgr *opportunity.Manager,
	gen generator.Generator, sched PostScheduler, notifier notifications.Notifier, scanLimit int) *Service {
	return &Service{
		store:     st,
		discovery: disc,
		manager:   mgr,
		generator: gen,
		scheduler: sched,
		notifier:  notifier,
		scanLimit: scanLimit,
	}
}

// TriggerKeywordScan runs discovery for up to limit keywords (0 uses the
// configured default).
func (s *Service) TriggerKeywordScan(ctx context.Context, limit int) (discovery.ScanResult, error) {
	if limit <= 0 {
		limit = s.scanLimit
	}
	result, err := s.discovery.ScanKeywords(ctx, limit)
	if err != nil {
		return result, err
	}

	if s.notifier != nil {
		if err := s.notifier.SendScanReport(result.KeywordsScanned, result.ThreadsSeen, result.NewOpportunities); err != nil {
			logrus.Errorf("Failed to send scan report: %v", err)
		}
	}
	return result, nil
}

// TriggerOpportunityScoring promotes the top-scored new opportunities.
func (s *Service) TriggerOpportunityScoring(ctx context.Context) (int, error) {
	return s.manager.Promote(ctx)
}

// TriggerOpportunityProcessing matches queued opportunities to campaigns.
func (s *Service) TriggerOpportunityProcessing(ctx context.Context) (opportunity.ProcessResult, error) {
	return s.manager.Process(ctx)
}

// GeneratePendingContent drains the pending content queue: each item gets
// an AI draft, becomes a post and is scheduled into its slot. Items whose
// generation fails stay pending for the next pass.
func (s *Service) GeneratePendingContent(ctx context.Context) (int, error) {
	if s.generator == nil {
		return 0, nil
	}

	items, err := s.store.ListContentItemsByStatus(ctx, models.ContentPending)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending content: %w", err)
	}

	generated := 0
	for _, item := range items {
		if err := s.generateOne(ctx, item); err != nil {
			logrus.Errorf("Failed to generate content for item %s: %v", item.ID, err)
			continue
		}
		generated++
	}

	if generated > 0 {
		logrus.Infof("Generated and scheduled %d of %d pending content items", generated, len(items))
	}
	return generated, nil
}

func (s *Service) generateOne(ctx context.Context, item models.ContentQueueItem) error {
	opp, err := s.store.GetOpportunity(ctx, item.OpportunityID)
	if err != nil {
		return fmt.Errorf("opportunity %d: %w", item.OpportunityID, err)
	}

	var program *models.AffiliateProgram
	if opp.ProgramID != nil {
		if p, err := s.store.GetProgram(ctx, *opp.ProgramID); err == nil {
			program = &p
		}
	}

	draft, err := s.generator.GenerateContent(ctx, opp, program, opp.Action)
	if err != nil {
		return err
	}

	if err := s.store.UpdateContentItem(ctx, item.ID, draft.Title, draft.Content, models.ContentGenerated); err != nil {
		return err
	}

	postID, err := s.store.CreatePost(ctx, models.ScheduledPost{
		Subreddit: item.Subreddit,
		Title:     draft.Title,
		Content:   draft.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	scheduledFor := item.ScheduledFor
	if !scheduledFor.After(time.Now()) {
		// The slot passed while the item sat in the queue; push it out a
		// few minutes instead of firing immediately.
		scheduledFor = time.Now().Add(5 * time.Minute)
	}

	if err := s.scheduler.SchedulePost(ctx, postID, scheduledFor); err != nil {
		// Put the item back in the queue so the next pass retries it;
		// otherwise it would sit in generated forever.
		if revertErr := s.store.UpdateContentItem(ctx, item.ID, draft.Title, draft.Content, models.ContentPending); revertErr != nil {
			logrus.Errorf("Failed to revert content item %s to pending: %v", item.ID, revertErr)
		}
		return fmt.Errorf("failed to schedule post %d: %w", postID, err)
	}

	return s.store.UpdateContentItem(ctx, item.ID, draft.Title, draft.Content, models.ContentScheduled)
}

// RunDaily is the scheduled end-to-end pass: scan, promote, process,
// generate. Stage failures are logged; later stages still run on
// whatever earlier data exists.
func (s *Service) RunDaily(ctx context.Context) {
	logrus.Info("Starting daily pipeline run")
	start := time.Now()

	if _, err := s.TriggerKeywordScan(ctx, 0); err != nil {
		logrus.Errorf("Daily scan failed: %v", err)
	}
	if _, err := s.TriggerOpportunityScoring(ctx); err != nil {
		logrus.Errorf("Daily scoring pass failed: %v", err)
	}
	if _, err := s.TriggerOpportunityProcessing(ctx); err != nil {
		logrus.Errorf("Daily processing pass failed: %v", err)
	}
	if _, err := s.GeneratePendingContent(ctx); err != nil {
		logrus.Errorf("Daily content generation failed: %v", err)
	}

	logrus.Infof("Daily pipeline run completed in %v", time.Since(start))
}
