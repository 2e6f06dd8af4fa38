package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/reddit-affiliate-bot/internal/generator"
	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/opportunity"
	"github.com/postpilot/reddit-affiliate-bot/internal/ratelimit"
	"github.com/postpilot/reddit-affiliate-bot/internal/scheduler"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

type fakeGenerator struct {
	draft generator.Draft
	err   error
	calls int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, opp models.Opportunity, program *models.AffiliateProgram, action models.ActionType) (generator.Draft, error) {
	f.calls++
	if f.err != nil {
		return generator.Draft{}, f.err
	}
	return f.draft, nil
}

type failingScheduler struct {
	err error
}

func (f failingScheduler) SchedulePost(ctx context.Context, postID int64, at time.Time) error {
	return f.err
}

type stubPublisher struct{}

func (stubPublisher) SubmitPost(ctx context.Context, subreddit, title, content string) (string, error) {
	return "t3_stub", nil
}

func (stubPublisher) FetchEngagement(ctx context.Context, externalID string) (models.Engagement, error) {
	return models.Engagement{}, nil
}

type fixture struct {
	store     *store.SQLiteStore
	scheduler *scheduler.Service
	service   *Service
}

func newFixture(t *testing.T, gen generator.Generator) fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SeedSampleData(context.Background()))

	sched := scheduler.NewService(st, stubPublisher{}, ratelimit.New(10, time.Hour), nil)
	t.Cleanup(sched.Stop)

	mgr := opportunity.NewManager(st, 10)
	svc := NewService(st, nil, mgr, gen, sched, nil, 25)
	return fixture{store: st, scheduler: sched, service: svc}
}

// addPendingItem stores a processed opportunity plus its pending content
// queue item and returns the item.
func addPendingItem(t *testing.T, st *store.SQLiteStore, scheduledFor time.Time) models.ContentQueueItem {
	t.Helper()
	ctx := context.Background()

	programID := int64(2)
	oppID, created, err := st.InsertOpportunity(ctx, models.Opportunity{
		URL:       "https://reddit.com/r/GamingMouse/comments/pending",
		Title:     "What's the best gaming mouse under $50?",
		Snippet:   "Looking for recommendations",
		Subreddit: "GamingMouse",
		Rank:      1,
		Intent:    models.IntentDiscovery,
		Score:     85,
		Action:    models.ActionComment,
		KeywordID: 1,
		ProgramID: &programID,
	})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, st.UpdateOpportunityStatus(ctx, oppID, models.OpportunityProcessed))

	item := models.ContentQueueItem{
		ID:            "item-1",
		OpportunityID: oppID,
		CampaignID:    1,
		Subreddit:     "GamingMouse",
		ScheduledFor:  scheduledFor,
		Status:        models.ContentPending,
	}
	require.NoError(t, st.InsertContentItem(ctx, item))
	return item
}

func TestGeneratePendingContent_SchedulesPost(t *testing.T) {
	gen := &fakeGenerator{draft: generator.Draft{
		Title:   "Five budget mice worth a look",
		Content: "Here is what I would pick under $50.",
	}}
	f := newFixture(t, gen)
	ctx := context.Background()

	slot := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	addPendingItem(t, f.store, slot)

	count, err := f.service.GeneratePendingContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, gen.calls)

	items, err := f.store.ListContentItemsByStatus(ctx, models.ContentScheduled)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Five budget mice worth a look", items[0].Title)

	posts, err := f.scheduler.ScheduledPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].ScheduledTime)
	assert.WithinDuration(t, slot, *posts[0].ScheduledTime, time.Second)
	assert.True(t, f.scheduler.HasJob(posts[0].ID), "timer is armed for the future slot")
}

func TestGeneratePendingContent_PastSlotPushedForward(t *testing.T) {
	gen := &fakeGenerator{draft: generator.Draft{Title: "t", Content: "c"}}
	f := newFixture(t, gen)
	ctx := context.Background()

	addPendingItem(t, f.store, time.Now().Add(-3*time.Hour))

	count, err := f.service.GeneratePendingContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	posts, err := f.scheduler.ScheduledPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].ScheduledTime)
	assert.True(t, posts[0].ScheduledTime.After(time.Now()),
		"a slot that passed in the queue is pushed forward, not fired immediately")
}

func TestGeneratePendingContent_FailureLeavesItemPending(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	f := newFixture(t, gen)
	ctx := context.Background()

	addPendingItem(t, f.store, time.Now().Add(time.Hour))

	count, err := f.service.GeneratePendingContent(ctx)
	require.NoError(t, err, "a failing item never aborts the pass")
	assert.Equal(t, 0, count)

	items, err := f.store.ListContentItemsByStatus(ctx, models.ContentPending)
	require.NoError(t, err)
	assert.Len(t, items, 1, "failed items stay pending for the next pass")
}

func TestGeneratePendingContent_ScheduleFailureRevertsToPending(t *testing.T) {
	gen := &fakeGenerator{draft: generator.Draft{Title: "t", Content: "c"}}
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SeedSampleData(ctx))

	mgr := opportunity.NewManager(st, 10)
	svc := NewService(st, nil, mgr, gen, failingScheduler{err: errors.New("timer table unavailable")}, nil, 25)

	addPendingItem(t, st, time.Now().Add(time.Hour))

	count, err := svc.GeneratePendingContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	pending, err := st.ListContentItemsByStatus(ctx, models.ContentPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "item goes back to pending for the next pass")

	generated, err := st.ListContentItemsByStatus(ctx, models.ContentGenerated)
	require.NoError(t, err)
	assert.Empty(t, generated, "nothing is stranded in generated")
}

func TestGeneratePendingContent_NoGeneratorConfigured(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	addPendingItem(t, f.store, time.Now().Add(time.Hour))

	count, err := f.service.GeneratePendingContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	items, err := f.store.ListContentItemsByStatus(ctx, models.ContentPending)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
