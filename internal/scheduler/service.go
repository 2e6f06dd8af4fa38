package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/notifications"
	"github.com/postpilot/reddit-affiliate-bot/internal/platform"
	"github.com/postpilot/reddit-affiliate-bot/internal/ratelimit"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

const publishTimeout = 30 * time.Second

// Service owns the mapping from scheduled posts to pending timers and the
// rate limiter gating outbound publishes. The job table lives only in
// memory; the recovery sweep replays posts whose timer was lost to a
// restart.
type Service struct {
	store     store.Store
	publisher platform.Publisher
	limiter   *ratelimit.Bucket
	notifier  notifications.Notifier
	cron      *cron.Cron

	mu   sync.Mutex
	jobs map[int64]*time.Timer

	dailyJob func()
}

// NewService creates a post scheduler.
func NewService(st store.Store, publisher platform.Publisher, limiter *ratelimit.Bucket, notifier notifications.Notifier) *Service {
	return &Service{
		store:     st,
		publisher: publisher,
		limiter:   limiter,
		notifier:  notifier,
		cron:      cron.New(cron.WithSeconds()),
		jobs:      make(map[int64]*time.Timer),
	}
}

// SetDailyJob registers the daily pipeline run fired at 06:00 UTC. Must
// be called before Start.
func (s *Service) SetDailyJob(job func()) {
	s.dailyJob = job
}

// Start arms the recovery sweep (every 5 minutes) and the hourly
// engagement stats refresh, then runs one immediate sweep to pick up
// posts that came due while the process was down.
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc("0 */5 * * * *", func() {
		s.RunRecoverySweep(context.Background())
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("0 0 * * * *", func() {
		s.RefreshEngagementStats(context.Background())
	}); err != nil {
		return err
	}

	if s.dailyJob != nil {
		if _, err := s.cron.AddFunc("0 0 6 * * *", s.dailyJob); err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Info("Post scheduler started (recovery sweep every 5m, stats refresh hourly)")

	go s.RunRecoverySweep(context.Background())
	return nil
}

// Stop stops the cron and cancels all pending timers.
func (s *Service) Stop() {
	s.cron.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.jobs {
		timer.Stop()
		delete(s.jobs, id)
	}
	logrus.Info("Post scheduler stopped")
}

// SchedulePost arms a timer publishing the post at the given time. At
// most one job exists per post: scheduling again cancels the previous
// timer first. Returns store.ErrNotFound if the post does not exist.
func (s *Service) SchedulePost(ctx context.Context, postID int64, at time.Time) error {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	if err := s.store.MarkPostScheduled(ctx, postID, at); err != nil {
		return err
	}

	s.mu.Lock()
	if existing, ok := s.jobs[postID]; ok {
		existing.Stop()
	}
	s.jobs[postID] = time.AfterFunc(time.Until(at), func() {
		s.fire(postID)
	})
	s.mu.Unlock()

	s.logActivity(ctx, models.ActivityPostScheduled,
		fmt.Sprintf("Post %d scheduled for %s", postID, at.Format(time.RFC3339)),
		map[string]any{"post_id": postID, "scheduled_time": at, "subreddit": post.Subreddit})

	logrus.Infof("Post %d scheduled for %s", postID, at.Format(time.RFC3339))
	return nil
}

// CancelScheduledPost cancels the pending job if one exists and resets
// the post to draft with its schedule time cleared. Returns false when
// there is no job to cancel; cancelling after the timer fired is a no-op.
func (s *Service) CancelScheduledPost(ctx context.Context, postID int64) bool {
	s.mu.Lock()
	timer, ok := s.jobs[postID]
	if ok {
		timer.Stop()
		delete(s.jobs, postID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	if err := s.store.ResetPostToDraft(ctx, postID); err != nil {
		logrus.Errorf("Failed to reset post %d to draft: %v", postID, err)
		return true
	}

	s.logActivity(ctx, models.ActivityPostUnscheduled,
		fmt.Sprintf("Post %d unscheduled", postID),
		map[string]any{"post_id": postID})

	logrus.Infof("Post %d unscheduled", postID)
	return true
}

// ReschedulePost is cancel-then-schedule.
func (s *Service) ReschedulePost(ctx context.Context, postID int64, at time.Time) error {
	s.CancelScheduledPost(ctx, postID)
	return s.SchedulePost(ctx, postID, at)
}

// ScheduledPosts returns posts awaiting publication, earliest first.
func (s *Service) ScheduledPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.store.ListScheduledPosts(ctx)
}

// RateLimitStatus reports the shared publish bucket.
func (s *Service) RateLimitStatus() models.RateLimitStatus {
	return s.limiter.Status()
}

// HasJob reports whether a timer is armed for the post.
func (s *Service) HasJob(postID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[postID]
	return ok
}

// fire runs when a timer goes off. The job is removed first so a
// concurrent cancel sees the post as already fired.
func (s *Service) fire(postID int64) {
	s.mu.Lock()
	delete(s.jobs, postID)
	s.mu.Unlock()

	ctx := context.Background()
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		logrus.Errorf("Timer fired for missing post %d: %v", postID, err)
		return
	}
	if post.Status != models.PostScheduled {
		logrus.Debugf("Timer fired for post %d in state %s, skipping", postID, post.Status)
		return
	}

	s.executePublish(ctx, post)
}

// RunRecoverySweep publishes scheduled posts whose due time has passed,
// earliest first. Posts with an armed timer are left to their timer so
// the sweep never races a live job into a double publish.
func (s *Service) RunRecoverySweep(ctx context.Context) {
	overdue, err := s.store.ListOverdueScheduledPosts(ctx, time.Now())
	if err != nil {
		logrus.Errorf("Recovery sweep failed to list overdue posts: %v", err)
		return
	}
	if len(overdue) == 0 {
		return
	}

	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].ScheduledTime.Before(*overdue[j].ScheduledTime)
	})

	recovered := 0
	for _, post := range overdue {
		if s.HasJob(post.ID) {
			continue
		}
		logrus.Infof("Recovery sweep publishing overdue post %d (due %s)",
			post.ID, post.ScheduledTime.Format(time.RFC3339))
		s.executePublish(ctx, post)
		recovered++
	}

	if recovered > 0 {
		logrus.Infof("Recovery sweep published %d overdue posts", recovered)
	}
}

// executePublish is the single publish path shared by timer fires and the
// recovery sweep. A rate-limited or failed attempt marks the post failed;
// retrying requires an explicit reschedule.
func (s *Service) executePublish(ctx context.Context, post models.ScheduledPost) {
	if !s.limiter.TryAcquire() {
		s.markFailed(ctx, post, "rate limit exceeded")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	externalID, err := s.publisher.SubmitPost(callCtx, post.Subreddit, post.Title, post.Content)
	if err != nil {
		s.markFailed(ctx, post, err.Error())
		return
	}

	now := time.Now()
	if err := s.store.MarkPostPublished(ctx, post.ID, externalID, now); err != nil {
		logrus.Errorf("Post %d published as %s but status update failed: %v", post.ID, externalID, err)
		return
	}

	s.logActivity(ctx, models.ActivityPostPublished,
		fmt.Sprintf("Post %d published to r/%s as %s", post.ID, post.Subreddit, externalID),
		map[string]any{"post_id": post.ID, "external_id": externalID})

	logrus.Infof("Post %d published to r/%s as %s", post.ID, post.Subreddit, externalID)
}

func (s *Service) markFailed(ctx context.Context, post models.ScheduledPost, reason string) {
	if err := s.store.MarkPostFailed(ctx, post.ID); err != nil {
		logrus.Errorf("Failed to mark post %d failed: %v", post.ID, err)
	}

	s.logActivity(ctx, models.ActivityPostFailed,
		fmt.Sprintf("Post %d to r/%s failed: %s", post.ID, post.Subreddit, reason),
		map[string]any{"post_id": post.ID, "reason": reason})

	logrus.Errorf("Post %d to r/%s failed: %s", post.ID, post.Subreddit, reason)

	if s.notifier != nil {
		if err := s.notifier.SendPostFailureAlert(post, reason); err != nil {
			logrus.Errorf("Failed to send failure alert for post %d: %v", post.ID, err)
		}
	}
}

// RefreshEngagementStats updates vote and comment counters for every
// published post. Failures are isolated per post.
func (s *Service) RefreshEngagementStats(ctx context.Context) {
	posts, err := s.store.ListPostedPosts(ctx)
	if err != nil {
		logrus.Errorf("Stats refresh failed to list posted posts: %v", err)
		return
	}

	refreshed := 0
	for _, post := range posts {
		callCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		engagement, err := s.publisher.FetchEngagement(callCtx, post.ExternalID)
		cancel()
		if err != nil {
			logrus.Errorf("Failed to fetch engagement for post %d (%s): %v", post.ID, post.ExternalID, err)
			continue
		}

		if err := s.store.UpdatePostEngagement(ctx, post.ID, engagement); err != nil {
			logrus.Errorf("Failed to store engagement for post %d: %v", post.ID, err)
			continue
		}
		refreshed++
	}

	if len(posts) > 0 {
		logrus.Infof("Refreshed engagement stats for %d of %d posts", refreshed, len(posts))
	}
}

func (s *Service) logActivity(ctx context.Context, activityType, message string, details map[string]any) {
	data, _ := json.Marshal(details)
	if err := s.store.AppendActivity(ctx, models.Activity{
		Type:    activityType,
		Message: message,
		Details: data,
	}); err != nil {
		logrus.Errorf("Failed to append activity: %v", err)
	}
}
