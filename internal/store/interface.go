package store

import (
	"context"
	"errors"
	"time"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// ErrNotFound is returned when an operation references a record that does
// not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract for the pipeline. The sqlite
// implementation is the only production one; tests substitute mocks.
type Store interface {
	// Keywords
	CreateKeyword(ctx context.Context, text string, programID *int64) (int64, error)
	ListActiveKeywords(ctx context.Context, limit int) ([]models.Keyword, error)
	TouchKeywordScanned(ctx context.Context, id int64, at time.Time) error

	// Affiliate programs and subreddits (read-only configuration)
	GetProgram(ctx context.Context, id int64) (models.AffiliateProgram, error)
	GetSubredditCategory(ctx context.Context, name string) (string, error)

	// Campaigns (read-only for the pipeline)
	ListActiveCampaigns(ctx context.Context) ([]models.Campaign, error)

	// Opportunities
	InsertOpportunity(ctx context.Context, o models.Opportunity) (int64, bool, error)
	GetOpportunity(ctx context.Context, id int64) (models.Opportunity, error)
	ListOpportunitiesByStatus(ctx context.Context, status string) ([]models.Opportunity, error)
	UpdateOpportunityStatus(ctx context.Context, id int64, status string) error

	// Content queue
	InsertContentItem(ctx context.Context, item models.ContentQueueItem) error
	ListContentItemsByStatus(ctx context.Context, status string) ([]models.ContentQueueItem, error)
	UpdateContentItem(ctx context.Context, id, title, content, status string) error

	// Scheduled posts
	CreatePost(ctx context.Context, p models.ScheduledPost) (int64, error)
	GetPost(ctx context.Context, id int64) (models.ScheduledPost, error)
	MarkPostScheduled(ctx context.Context, id int64, at time.Time) error
	ResetPostToDraft(ctx context.Context, id int64) error
	MarkPostPublished(ctx context.Context, id int64, externalID string, at time.Time) error
	MarkPostFailed(ctx context.Context, id int64) error
	ListScheduledPosts(ctx context.Context) ([]models.ScheduledPost, error)
	ListOverdueScheduledPosts(ctx context.Context, now time.Time) ([]models.ScheduledPost, error)
	ListPostedPosts(ctx context.Context) ([]models.ScheduledPost, error)
	UpdatePostEngagement(ctx context.Context, id int64, e models.Engagement) error

	// Activity log (append-only)
	AppendActivity(ctx context.Context, a models.Activity) error
	ListActivities(ctx context.Context, limit int) ([]models.Activity, error)
}
