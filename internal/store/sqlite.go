package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// Open opens (or creates) the sqlite database and ensures the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS affiliate_programs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  product_name TEXT NOT NULL DEFAULT '',
  keywords TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS subreddits (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  category TEXT NOT NULL DEFAULT '',
  subscriber_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS keywords (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  text TEXT NOT NULL,
  program_id INTEGER REFERENCES affiliate_programs(id),
  status TEXT NOT NULL CHECK(status IN ('active','paused')) DEFAULT 'active',
  last_scanned_at DATETIME,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS campaigns (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('active','paused')) DEFAULT 'active',
  program_id INTEGER NOT NULL REFERENCES affiliate_programs(id),
  target_subreddits TEXT NOT NULL DEFAULT '[]',
  schedule_config TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS opportunities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  url TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  snippet TEXT NOT NULL DEFAULT '',
  subreddit TEXT NOT NULL,
  rank INTEGER NOT NULL DEFAULT 0,
  intent TEXT NOT NULL,
  score INTEGER NOT NULL,
  action_type TEXT NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('new','queued','processing','processed','rejected','ignored','completed')) DEFAULT 'new',
  keyword_id INTEGER NOT NULL REFERENCES keywords(id),
  program_id INTEGER REFERENCES affiliate_programs(id),
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_opportunities_status_score ON opportunities(status, score DESC);
CREATE TABLE IF NOT EXISTS content_queue (
  id TEXT PRIMARY KEY,
  opportunity_id INTEGER NOT NULL REFERENCES opportunities(id),
  campaign_id INTEGER NOT NULL REFERENCES campaigns(id),
  subreddit TEXT NOT NULL,
  scheduled_for DATETIME NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('pending','generated','scheduled')) DEFAULT 'pending',
  title TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS scheduled_posts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  subreddit TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('draft','scheduled','posted','failed')) DEFAULT 'draft',
  scheduled_time DATETIME,
  posted_time DATETIME,
  external_id TEXT NOT NULL DEFAULT '',
  upvotes INTEGER NOT NULL DEFAULT 0,
  downvotes INTEGER NOT NULL DEFAULT 0,
  comment_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_posts_status_time ON scheduled_posts(status, scheduled_time);
CREATE TABLE IF NOT EXISTS activities (
  id TEXT PRIMARY KEY,
  campaign_id INTEGER,
  type TEXT NOT NULL,
  message TEXT NOT NULL,
  details TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at DESC);
`
	_, err := db.Exec(schema)
	return err
}

// SQLiteStore implements Store on a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// DB returns the underlying handle, used by main for seeding.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateKeyword(ctx context.Context, text string, programID *int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO keywords (text, program_id) VALUES (?, ?)`, text, programID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListActiveKeywords(ctx context.Context, limit int) ([]models.Keyword, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, text, program_id, status, last_scanned_at, created_at
FROM keywords
WHERE status = 'active'
ORDER BY last_scanned_at ASC NULLS FIRST
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []models.Keyword
	for rows.Next() {
		var k models.Keyword
		if err := rows.Scan(&k.ID, &k.Text, &k.ProgramID, &k.Status, &k.LastScannedAt, &k.CreatedAt); err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

func (s *SQLiteStore) TouchKeywordScanned(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET last_scanned_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetProgram(ctx context.Context, id int64) (models.AffiliateProgram, error) {
	var p models.AffiliateProgram
	var keywords string
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, description, category, product_name, keywords
FROM affiliate_programs WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ProductName, &keywords)
	if err == sql.ErrNoRows {
		return models.AffiliateProgram{}, ErrNotFound
	}
	if err != nil {
		return models.AffiliateProgram{}, err
	}
	if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
		return models.AffiliateProgram{}, fmt.Errorf("bad keywords for program %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteStore) GetSubredditCategory(ctx context.Context, name string) (string, error) {
	var category string
	err := s.db.QueryRowContext(ctx,
		`SELECT category FROM subreddits WHERE lower(name) = lower(?)`, name).Scan(&category)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return category, err
}

func (s *SQLiteStore) ListActiveCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, status, program_id, target_subreddits, schedule_config
FROM campaigns WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		var targets, scheduleCfg string
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.ProgramID, &targets, &scheduleCfg); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(targets), &c.TargetSubreddits); err != nil {
			return nil, fmt.Errorf("bad target subreddits for campaign %d: %w", c.ID, err)
		}
		c.ScheduleConfig = json.RawMessage(scheduleCfg)
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// InsertOpportunity inserts a record, silently skipping duplicates of the
// same URL. The bool reports whether a row was actually created.
func (s *SQLiteStore) InsertOpportunity(ctx context.Context, o models.Opportunity) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO opportunities
  (url, title, snippet, subreddit, rank, intent, score, action_type, status, keyword_id, program_id)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.URL, o.Title, o.Snippet, o.Subreddit, o.Rank, string(o.Intent), o.Score,
		string(o.Action), models.OpportunityNew, o.KeywordID, o.ProgramID)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	return id, true, err
}

func (s *SQLiteStore) GetOpportunity(ctx context.Context, id int64) (models.Opportunity, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, url, title, snippet, subreddit, rank, intent, score, action_type, status, keyword_id, program_id, created_at, updated_at
FROM opportunities WHERE id = ?`, id)
	return scanOpportunity(row)
}

func (s *SQLiteStore) ListOpportunitiesByStatus(ctx context.Context, status string) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, url, title, snippet, subreddit, rank, intent, score, action_type, status, keyword_id, program_id, created_at, updated_at
FROM opportunities WHERE status = ? ORDER BY score DESC, id ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opportunities []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opportunities = append(opportunities, o)
	}
	return opportunities, rows.Err()
}

func (s *SQLiteStore) UpdateOpportunityStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE opportunities SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) InsertContentItem(ctx context.Context, item models.ContentQueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = models.ContentPending
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO content_queue (id, opportunity_id, campaign_id, subreddit, scheduled_for, status, title, content)
VALUES (?,?,?,?,?,?,?,?)`,
		item.ID, item.OpportunityID, item.CampaignID, item.Subreddit,
		item.ScheduledFor, item.Status, item.Title, item.Content)
	return err
}

func (s *SQLiteStore) ListContentItemsByStatus(ctx context.Context, status string) ([]models.ContentQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, opportunity_id, campaign_id, subreddit, scheduled_for, status, title, content, created_at
FROM content_queue WHERE status = ? ORDER BY scheduled_for ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ContentQueueItem
	for rows.Next() {
		var it models.ContentQueueItem
		if err := rows.Scan(&it.ID, &it.OpportunityID, &it.CampaignID, &it.Subreddit,
			&it.ScheduledFor, &it.Status, &it.Title, &it.Content, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) UpdateContentItem(ctx context.Context, id, title, content, status string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE content_queue SET title = ?, content = ?, status = ? WHERE id = ?`, title, content, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) CreatePost(ctx context.Context, p models.ScheduledPost) (int64, error) {
	if p.Status == "" {
		p.Status = models.PostDraft
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO scheduled_posts (subreddit, title, content, status, scheduled_time)
VALUES (?,?,?,?,?)`, p.Subreddit, p.Title, p.Content, p.Status, p.ScheduledTime)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetPost(ctx context.Context, id int64) (models.ScheduledPost, error) {
	var p models.ScheduledPost
	err := s.db.QueryRowContext(ctx, `
SELECT id, subreddit, title, content, status, scheduled_time, posted_time, external_id, upvotes, downvotes, comment_count, created_at
FROM scheduled_posts WHERE id = ?`, id).
		Scan(&p.ID, &p.Subreddit, &p.Title, &p.Content, &p.Status, &p.ScheduledTime,
			&p.PostedTime, &p.ExternalID, &p.Upvotes, &p.Downvotes, &p.CommentCount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return models.ScheduledPost{}, ErrNotFound
	}
	return p, err
}

func (s *SQLiteStore) MarkPostScheduled(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_posts SET status = ?, scheduled_time = ? WHERE id = ?`,
		models.PostScheduled, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) ResetPostToDraft(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_posts SET status = ?, scheduled_time = NULL WHERE id = ?`,
		models.PostDraft, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) MarkPostPublished(ctx context.Context, id int64, externalID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_posts SET status = ?, external_id = ?, posted_time = ? WHERE id = ?`,
		models.PostPosted, externalID, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) MarkPostFailed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_posts SET status = ? WHERE id = ?`, models.PostFailed, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) ListScheduledPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.listPosts(ctx, `
SELECT id, subreddit, title, content, status, scheduled_time, posted_time, external_id, upvotes, downvotes, comment_count, created_at
FROM scheduled_posts WHERE status = 'scheduled' ORDER BY scheduled_time ASC`)
}

func (s *SQLiteStore) ListOverdueScheduledPosts(ctx context.Context, now time.Time) ([]models.ScheduledPost, error) {
	return s.listPosts(ctx, `
SELECT id, subreddit, title, content, status, scheduled_time, posted_time, external_id, upvotes, downvotes, comment_count, created_at
FROM scheduled_posts WHERE status = 'scheduled' AND scheduled_time <= ? ORDER BY scheduled_time ASC`, now)
}

func (s *SQLiteStore) ListPostedPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.listPosts(ctx, `
SELECT id, subreddit, title, content, status, scheduled_time, posted_time, external_id, upvotes, downvotes, comment_count, created_at
FROM scheduled_posts WHERE status = 'posted' AND external_id != '' ORDER BY posted_time ASC`)
}

func (s *SQLiteStore) UpdatePostEngagement(ctx context.Context, id int64, e models.Engagement) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_posts SET upvotes = ?, downvotes = ?, comment_count = ? WHERE id = ?`,
		e.Upvotes, e.Downvotes, e.CommentCount, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) AppendActivity(ctx context.Context, a models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var details any
	if len(a.Details) > 0 {
		details = string(a.Details)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO activities (id, campaign_id, type, message, details) VALUES (?,?,?,?,?)`,
		a.ID, a.CampaignID, a.Type, a.Message, details)
	return err
}

func (s *SQLiteStore) ListActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, campaign_id, type, message, details, created_at
FROM activities ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var details sql.NullString
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Type, &a.Message, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		if details.Valid {
			a.Details = json.RawMessage(details.String)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *SQLiteStore) listPosts(ctx context.Context, query string, args ...any) ([]models.ScheduledPost, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.ScheduledPost
	for rows.Next() {
		var p models.ScheduledPost
		if err := rows.Scan(&p.ID, &p.Subreddit, &p.Title, &p.Content, &p.Status, &p.ScheduledTime,
			&p.PostedTime, &p.ExternalID, &p.Upvotes, &p.Downvotes, &p.CommentCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (models.Opportunity, error) {
	var o models.Opportunity
	var intentStr, actionStr string
	err := row.Scan(&o.ID, &o.URL, &o.Title, &o.Snippet, &o.Subreddit, &o.Rank,
		&intentStr, &o.Score, &actionStr, &o.Status, &o.KeywordID, &o.ProgramID,
		&o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Opportunity{}, ErrNotFound
	}
	if err != nil {
		return models.Opportunity{}, err
	}
	o.Intent = models.Intent(intentStr)
	o.Action = models.ActionType(actionStr)
	return o, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedSampleData loads a small demo dataset when the database is empty, so
// a fresh install has programs, campaigns and keywords to work with.
func (s *SQLiteStore) SeedSampleData(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM affiliate_programs`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`INSERT INTO affiliate_programs (name, description, category, product_name, keywords) VALUES
  ('WriterAI', 'AI writing assistant for content creators', 'Content Creation', 'WriterAI', '["AI writer","writing assistant","content generation","blog writing"]'),
  ('GamingGear', 'Gaming peripherals and accessories', 'Gaming', 'GamingGear', '["gaming mouse","mechanical keyboard","gaming headset","gaming chair"]')`,
		`INSERT INTO subreddits (name, category, subscriber_count) VALUES
  ('Blogging', 'Content Creation', 150000),
  ('SEO', 'Marketing', 175000),
  ('contentmarketing', 'Marketing', 90000),
  ('GamingMouse', 'Gaming', 50000),
  ('MechanicalKeyboards', 'Gaming', 700000)`,
		`INSERT INTO keywords (text, program_id) VALUES
  ('best gaming mouse', 2),
  ('AI writer review', 1),
  ('content generation tool', 1),
  ('mechanical keyboard comparison', 2)`,
		`INSERT INTO campaigns (name, program_id, target_subreddits, schedule_config) VALUES
  ('Gaming push', 2, '["GamingMouse","MechanicalKeyboards"]', '{"frequency":"daily","time_ranges":[{"start":"09:00","end":"11:00"},{"start":"18:00","end":"20:00"}]}'),
  ('Writer launch', 1, '["Blogging","SEO"]', '{"frequency":"weekly","days_of_week":[1,3,5],"time_ranges":[{"start":"10:00","end":"12:00"}]}')`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
