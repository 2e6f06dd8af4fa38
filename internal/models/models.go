package models

import (
	"encoding/json"
	"time"
)

// Intent classifies what a thread's author is trying to accomplish.
type Intent string

const (
	IntentDiscovery  Intent = "DISCOVERY"
	IntentQuestion   Intent = "QUESTION"
	IntentComparison Intent = "COMPARISON"
	IntentShowcase   Intent = "SHOWCASE"
	IntentGeneral    Intent = "GENERAL"
)

// ActionType is the recommended way to engage with an opportunity.
type ActionType string

const (
	ActionComment ActionType = "comment"
	ActionPost    ActionType = "post"
)

// Opportunity statuses. Rejected, ignored and completed are terminal.
const (
	OpportunityNew        = "new"
	OpportunityQueued     = "queued"
	OpportunityProcessing = "processing"
	OpportunityProcessed  = "processed"
	OpportunityRejected   = "rejected"
	OpportunityIgnored    = "ignored"
	OpportunityCompleted  = "completed"
)

// Scheduled post statuses.
const (
	PostDraft     = "draft"
	PostScheduled = "scheduled"
	PostPosted    = "posted"
	PostFailed    = "failed"
)

// Content queue item statuses.
const (
	ContentPending   = "pending"
	ContentGenerated = "generated"
	ContentScheduled = "scheduled"
)

// Keyword is a tracked search term owned by an affiliate program.
type Keyword struct {
	ID            int64      `json:"id"`
	Text          string     `json:"text"`
	ProgramID     *int64     `json:"program_id,omitempty"`
	Status        string     `json:"status"` // "active" or "paused"
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AffiliateProgram is the product being promoted.
type AffiliateProgram struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	ProductName string   `json:"product_name"`
	Keywords    []string `json:"keywords"`
}

// Subreddit is a known community with its category, used for
// category-match scoring.
type Subreddit struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	SubscriberCount int    `json:"subscriber_count"`
}

// Campaign groups an affiliate program with target subreddits and a
// posting schedule.
type Campaign struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Status           string          `json:"status"` // "active" or "paused"
	ProgramID        int64           `json:"program_id"`
	TargetSubreddits []string        `json:"target_subreddits"`
	ScheduleConfig   json.RawMessage `json:"schedule_config"`
}

// Opportunity is a discovered thread judged as a candidate for affiliate
// engagement. URL is the dedupe boundary: unique across all records.
type Opportunity struct {
	ID        int64      `json:"id"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	Subreddit string     `json:"subreddit"`
	Rank      int        `json:"rank"` // 1-based discovery rank, lower is better
	Intent    Intent     `json:"intent"`
	Score     int        `json:"score"` // 0-100
	Action    ActionType `json:"action_type"`
	Status    string     `json:"status"`
	KeywordID int64      `json:"keyword_id"`
	ProgramID *int64     `json:"program_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ContentQueueItem is a unit of work: generate and schedule content for
// one processed opportunity.
type ContentQueueItem struct {
	ID            string    `json:"id"`
	OpportunityID int64     `json:"opportunity_id"`
	CampaignID    int64     `json:"campaign_id"`
	Subreddit     string    `json:"subreddit"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	Status        string    `json:"status"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

// ScheduledPost is a piece of content on its way to Reddit.
type ScheduledPost struct {
	ID            int64      `json:"id"`
	Subreddit     string     `json:"subreddit"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	PostedTime    *time.Time `json:"posted_time,omitempty"`
	ExternalID    string     `json:"external_id,omitempty"`
	Upvotes       int        `json:"upvotes"`
	Downvotes     int        `json:"downvotes"`
	CommentCount  int        `json:"comment_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Activity is one append-only audit record. Every state transition in the
// pipeline writes one.
type Activity struct {
	ID         string          `json:"id"`
	CampaignID *int64          `json:"campaign_id,omitempty"`
	Type       string          `json:"type"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Activity type tags.
const (
	ActivityKeywordScanned       = "keyword_scanned"
	ActivityOpportunityQueued    = "opportunity_queued"
	ActivityOpportunityProcessed = "opportunity_processed"
	ActivityOpportunityRejected  = "opportunity_rejected"
	ActivityPostScheduled        = "post_scheduled"
	ActivityPostUnscheduled      = "post_unscheduled"
	ActivityPostPublished        = "post_published"
	ActivityPostFailed           = "post_failed"
)

// Thread is a ranked discovery result before it becomes an opportunity.
type Thread struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Subreddit string `json:"subreddit"`
	Rank      int    `json:"rank"`
}

// Engagement holds refreshed counters for a published post.
type Engagement struct {
	Upvotes      int `json:"upvotes"`
	Downvotes    int `json:"downvotes"`
	CommentCount int `json:"comment_count"`
}

// RateLimitStatus reports the shared token bucket for observability.
type RateLimitStatus struct {
	Used             int       `json:"used"`
	Limit            int       `json:"limit"`
	ResetTime        time.Time `json:"reset_time"`
	RemainingPercent float64   `json:"remaining_percent"`
}
