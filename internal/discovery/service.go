package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/postpilot/reddit-affiliate-bot/internal/archive"
	"github.com/postpilot/reddit-affiliate-bot/internal/intent"
	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/platform"
	"github.com/postpilot/reddit-affiliate-bot/internal/scoring"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

// Service turns tracked keywords into scored opportunities. Per-keyword
// failures are logged and skipped so one bad keyword never aborts a scan.
type Service struct {
	store      store.Store
	searcher   platform.Searcher
	archive    archive.Archive
	subreddits []string
}

// ScanResult summarizes one keyword scan pass.
type ScanResult struct {
	KeywordsScanned  int `json:"keywords_scanned"`
	ThreadsSeen      int `json:"threads_seen"`
	NewOpportunities int `json:"new_opportunities"`
}

// NewService creates a discovery service. The archive may be nil when
// snapshot storage is not configured.
func NewService(st store.Store, searcher platform.Searcher, arc archive.Archive, subreddits []string) *Service {
	return &Service{
		store:      st,
		searcher:   searcher,
		archive:    arc,
		subreddits: subreddits,
	}
}

// ScanKeywords runs discovery for up to limit active keywords, least
// recently scanned first.
func (s *Service) ScanKeywords(ctx context.Context, limit int) (ScanResult, error) {
	var result ScanResult

	keywords, err := s.store.ListActiveKeywords(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("failed to list keywords: %w", err)
	}

	logrus.Infof("Scanning %d keywords for opportunities", len(keywords))

	var snapshot []models.Thread
	for _, keyword := range keywords {
		threads, created, err := s.scanKeyword(ctx, keyword)
		if err != nil {
			logrus.Errorf("Failed to scan keyword '%s': %v", keyword.Text, err)
			continue
		}

		result.KeywordsScanned++
		result.ThreadsSeen += len(threads)
		result.NewOpportunities += created
		snapshot = append(snapshot, threads...)
	}

	s.archiveSnapshot(snapshot)

	logrus.Infof("Scan complete: %d keywords, %d threads seen, %d new opportunities",
		result.KeywordsScanned, result.ThreadsSeen, result.NewOpportunities)
	return result, nil
}

func (s *Service) scanKeyword(ctx context.Context, keyword models.Keyword) ([]models.Thread, int, error) {
	threads, err := s.searcher.Search(ctx, keyword.Text, s.subreddits)
	if err != nil {
		return nil, 0, err
	}

	var program *models.AffiliateProgram
	if keyword.ProgramID != nil {
		p, err := s.store.GetProgram(ctx, *keyword.ProgramID)
		if err != nil {
			logrus.Errorf("Keyword '%s' references missing program %d: %v", keyword.Text, *keyword.ProgramID, err)
		} else {
			program = &p
		}
	}

	created := 0
	for _, thread := range threads {
		opp := s.buildOpportunity(ctx, thread, keyword, program)

		_, inserted, err := s.store.InsertOpportunity(ctx, opp)
		if err != nil {
			logrus.Errorf("Failed to store opportunity %s: %v", thread.URL, err)
			continue
		}
		if inserted {
			created++
		}
	}

	now := time.Now()
	if err := s.store.TouchKeywordScanned(ctx, keyword.ID, now); err != nil {
		logrus.Errorf("Failed to update scan time for keyword '%s': %v", keyword.Text, err)
	}

	details, _ := json.Marshal(map[string]any{
		"keyword":           keyword.Text,
		"threads":           len(threads),
		"new_opportunities": created,
	})
	if err := s.store.AppendActivity(ctx, models.Activity{
		Type:    models.ActivityKeywordScanned,
		Message: fmt.Sprintf("Scanned keyword '%s': %d threads, %d new opportunities", keyword.Text, len(threads), created),
		Details: details,
	}); err != nil {
		logrus.Errorf("Failed to log scan activity: %v", err)
	}

	return threads, created, nil
}

func (s *Service) buildOpportunity(ctx context.Context, thread models.Thread, keyword models.Keyword, program *models.AffiliateProgram) models.Opportunity {
	threadIntent := intent.Classify(thread.Title, thread.Snippet)

	input := scoring.Input{
		Rank:    thread.Rank,
		Intent:  threadIntent,
		Title:   thread.Title,
		Snippet: thread.Snippet,
	}

	opp := models.Opportunity{
		URL:       thread.URL,
		Title:     thread.Title,
		Snippet:   thread.Snippet,
		Subreddit: thread.Subreddit,
		Rank:      thread.Rank,
		Intent:    threadIntent,
		KeywordID: keyword.ID,
	}

	if program != nil {
		input.ProductName = program.ProductName
		category, err := s.store.GetSubredditCategory(ctx, thread.Subreddit)
		if err == nil && category == program.Category {
			input.CategoryMatch = true
		}
		opp.ProgramID = &program.ID
	}

	opp.Score = scoring.Score(input)
	opp.Action = scoring.Action(opp.Score, threadIntent)
	return opp
}

func (s *Service) archiveSnapshot(threads []models.Thread) {
	if s.archive == nil || len(threads) == 0 {
		return
	}

	data, err := json.Marshal(threads)
	if err != nil {
		logrus.Errorf("Failed to marshal scan snapshot: %v", err)
		return
	}

	filename := fmt.Sprintf("scan-%s.json", time.Now().Format("2006-01-02-15-04-05"))
	if err := s.archive.Store(filename, data); err != nil {
		logrus.Errorf("Failed to archive scan snapshot: %v", err)
	}
}
