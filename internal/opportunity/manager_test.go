package opportunity

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday morning; the seeded Gaming campaign has daily slots at 09:00
// and 18:00.
var testNow = time.Date(2025, 6, 4, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) (*Manager, *store.SQLiteStore) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SeedSampleData(context.Background()))

	m := NewManagerWithClock(s, 2, func() time.Time { return testNow })
	return m, s
}

var urlSeq int

func addOpportunity(t *testing.T, s *store.SQLiteStore, subreddit string, score int) int64 {
	t.Helper()
	urlSeq++
	id, created, err := s.InsertOpportunity(context.Background(), models.Opportunity{
		URL:       fmt.Sprintf("https://reddit.com/r/%s/comments/%d", subreddit, urlSeq),
		Title:     fmt.Sprintf("thread in %s", subreddit),
		Subreddit: subreddit,
		Rank:      1,
		Intent:    models.IntentDiscovery,
		Score:     score,
		Action:    models.ActionComment,
		KeywordID: 1,
	})
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func TestPromote_TopScoredFirst(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	lowID := addOpportunity(t, s, "GamingMouse", 30)
	midID := addOpportunity(t, s, "GamingMouse", 60)
	highID := addOpportunity(t, s, "GamingMouse", 90)

	promoted, err := m.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted, "batch size caps promotion")

	queued, err := s.ListOpportunitiesByStatus(ctx, models.OpportunityQueued)
	require.NoError(t, err)
	queuedIDs := []int64{queued[0].ID, queued[1].ID}
	assert.Contains(t, queuedIDs, highID)
	assert.Contains(t, queuedIDs, midID)

	low, err := s.GetOpportunity(ctx, lowID)
	require.NoError(t, err)
	assert.Equal(t, models.OpportunityNew, low.Status)
}

func TestPromote_Idempotent(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	addOpportunity(t, s, "GamingMouse", 50)

	promoted, err := m.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	promoted, err = m.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, promoted, "re-running without new data is a no-op")
}

func TestProcess_MatchCreatesContentItem(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	id := addOpportunity(t, s, "GamingMouse", 85)
	require.NoError(t, s.UpdateOpportunityStatus(ctx, id, models.OpportunityQueued))

	result, err := m.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Rejected)

	opp, err := s.GetOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OpportunityProcessed, opp.Status)

	items, err := s.ListContentItemsByStatus(ctx, models.ContentPending)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].OpportunityID)
	// 10:30 is past the 09:00 slot, so the daily campaign lands on 18:00.
	assert.Equal(t, time.Date(2025, 6, 4, 18, 0, 0, 0, time.UTC), items[0].ScheduledFor.UTC())
}

func TestProcess_NoCampaignRejects(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	id := addOpportunity(t, s, "UntargetedSubreddit", 85)
	require.NoError(t, s.UpdateOpportunityStatus(ctx, id, models.OpportunityQueued))

	result, err := m.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 1, result.Rejected)

	opp, err := s.GetOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OpportunityRejected, opp.Status)

	items, err := s.ListContentItemsByStatus(ctx, models.ContentPending)
	require.NoError(t, err)
	assert.Empty(t, items, "no content queue entry for a rejected opportunity")
}

func TestProcess_CampaignMatchIsCaseInsensitive(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	id := addOpportunity(t, s, "gamingmouse", 85)
	require.NoError(t, s.UpdateOpportunityStatus(ctx, id, models.OpportunityQueued))

	result, err := m.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
}

func TestTerminalStatesNeverTransition(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	for _, terminal := range []string{
		models.OpportunityRejected,
		models.OpportunityIgnored,
		models.OpportunityCompleted,
	} {
		t.Run(terminal, func(t *testing.T) {
			id := addOpportunity(t, s, "GamingMouse", 99)
			require.NoError(t, s.UpdateOpportunityStatus(ctx, id, terminal))

			_, err := m.Promote(ctx)
			require.NoError(t, err)
			_, err = m.Process(ctx)
			require.NoError(t, err)

			opp, err := s.GetOpportunity(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, terminal, opp.Status)
		})
	}
}

func TestIgnore(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	id := addOpportunity(t, s, "GamingMouse", 40)
	require.NoError(t, m.Ignore(ctx, id))

	opp, err := s.GetOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OpportunityIgnored, opp.Status)

	assert.Error(t, m.Ignore(ctx, id), "ignored is terminal")
	assert.ErrorIs(t, m.Ignore(ctx, 9999), store.ErrNotFound)
}

func TestComplete(t *testing.T) {
	m, s := newFixture(t)
	ctx := context.Background()

	id := addOpportunity(t, s, "GamingMouse", 40)
	assert.Error(t, m.Complete(ctx, id), "only processed opportunities can complete")

	require.NoError(t, s.UpdateOpportunityStatus(ctx, id, models.OpportunityProcessed))
	require.NoError(t, m.Complete(ctx, id))

	opp, err := s.GetOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OpportunityCompleted, opp.Status)
}
