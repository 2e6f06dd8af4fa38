package platform

import (
	"context"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// Searcher retrieves ranked candidate threads for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string, subreddits []string) ([]models.Thread, error)
}

// Publisher submits content to the platform and reads back engagement.
type Publisher interface {
	SubmitPost(ctx context.Context, subreddit, title, content string) (string, error)
	FetchEngagement(ctx context.Context, externalID string) (models.Engagement, error)
}
