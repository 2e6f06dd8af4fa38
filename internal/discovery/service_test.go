package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]models.Thread
	errs    map[string]error
}

func (f *fakeSearcher) Search(ctx context.Context, keyword string, subreddits []string) ([]models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[keyword]; err != nil {
		return nil, err
	}
	return f.results[keyword], nil
}

type fakeArchive struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{files: map[string][]byte{}}
}

func (f *fakeArchive) Store(filename string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filename] = data
	return nil
}

func (f *fakeArchive) Retrieve(filename string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[filename]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f *fakeArchive) List(prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.files {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *fakeArchive) Delete(filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, filename)
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SeedSampleData(context.Background()))
	return s
}

func gamingMouseThread() models.Thread {
	return models.Thread{
		URL:       "https://reddit.com/r/GamingMouse/comments/abc",
		Title:     "What's the best gaming mouse under $50?",
		Snippet:   "Looking for recommendations",
		Subreddit: "GamingMouse",
		Rank:      1,
	}
}

func TestScanKeywords_CreatesScoredOpportunities(t *testing.T) {
	st := newTestStore(t)
	searcher := &fakeSearcher{results: map[string][]models.Thread{
		"best gaming mouse": {gamingMouseThread()},
	}}
	svc := NewService(st, searcher, nil, []string{"GamingMouse"})
	ctx := context.Background()

	result, err := svc.ScanKeywords(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.KeywordsScanned)
	assert.Equal(t, 1, result.ThreadsSeen)
	assert.Equal(t, 1, result.NewOpportunities)

	opps, err := st.ListOpportunitiesByStatus(ctx, models.OpportunityNew)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, models.IntentDiscovery, opp.Intent)
	assert.Equal(t, models.ActionComment, opp.Action)
	assert.GreaterOrEqual(t, opp.Score, 70, "rank 1 discovery thread with a category match scores high")
	assert.LessOrEqual(t, opp.Score, 100)
	require.NotNil(t, opp.ProgramID, "keyword's program carries over to the opportunity")
	assert.Equal(t, int64(2), *opp.ProgramID)
}

func TestScanKeywords_DedupesAcrossScans(t *testing.T) {
	st := newTestStore(t)
	searcher := &fakeSearcher{results: map[string][]models.Thread{
		"best gaming mouse": {gamingMouseThread()},
	}}
	svc := NewService(st, searcher, nil, []string{"GamingMouse"})
	ctx := context.Background()

	// Limit 0 covers every seeded keyword, so the second pass rescans
	// "best gaming mouse" rather than moving on to a fresher keyword.
	first, err := svc.ScanKeywords(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewOpportunities)

	second, err := svc.ScanKeywords(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ThreadsSeen, "thread is still returned by search")
	assert.Equal(t, 0, second.NewOpportunities, "already-tracked URL is silently skipped")

	opps, err := st.ListOpportunitiesByStatus(ctx, models.OpportunityNew)
	require.NoError(t, err)
	assert.Len(t, opps, 1)
}

func TestScanKeywords_ArchivesSnapshot(t *testing.T) {
	st := newTestStore(t)
	searcher := &fakeSearcher{results: map[string][]models.Thread{
		"best gaming mouse": {gamingMouseThread()},
	}}
	arc := newFakeArchive()
	svc := NewService(st, searcher, arc, []string{"GamingMouse"})

	_, err := svc.ScanKeywords(context.Background(), 1)
	require.NoError(t, err)

	names, err := arc.List("scan-")
	require.NoError(t, err)
	require.Len(t, names, 1)

	data, err := arc.Retrieve(names[0])
	require.NoError(t, err)

	var threads []models.Thread
	require.NoError(t, json.Unmarshal(data, &threads))
	require.Len(t, threads, 1)
	assert.Equal(t, gamingMouseThread().URL, threads[0].URL)
}

func TestScanKeywords_KeywordFailureIsIsolated(t *testing.T) {
	st := newTestStore(t)
	searcher := &fakeSearcher{
		results: map[string][]models.Thread{
			"AI writer review": {{
				URL:       "https://reddit.com/r/Blogging/comments/xyz",
				Title:     "Is there a good AI writer for long-form blogs?",
				Snippet:   "Looking for suggestions",
				Subreddit: "Blogging",
				Rank:      2,
			}},
		},
		errs: map[string]error{
			"best gaming mouse": errors.New("reddit search failed: 503"),
		},
	}
	svc := NewService(st, searcher, nil, []string{"Blogging", "GamingMouse"})
	ctx := context.Background()

	result, err := svc.ScanKeywords(ctx, 2)
	require.NoError(t, err, "a failing keyword never aborts the scan")
	assert.Equal(t, 1, result.KeywordsScanned)
	assert.Equal(t, 1, result.NewOpportunities)

	opps, err := st.ListOpportunitiesByStatus(ctx, models.OpportunityNew)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "Blogging", opps[0].Subreddit)
}

func TestScanKeywords_TouchesLastScanned(t *testing.T) {
	st := newTestStore(t)
	searcher := &fakeSearcher{results: map[string][]models.Thread{}}
	svc := NewService(st, searcher, nil, nil)
	ctx := context.Background()

	_, err := svc.ScanKeywords(ctx, 1)
	require.NoError(t, err)

	keywords, err := st.ListActiveKeywords(ctx, 10)
	require.NoError(t, err)

	scanned := 0
	for _, k := range keywords {
		if k.LastScannedAt != nil {
			scanned++
		}
	}
	assert.Equal(t, 1, scanned, "only the scanned keyword gets a timestamp")
}
