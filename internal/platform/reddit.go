package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// RedditClient talks to the Reddit API with client-credentials OAuth. It
// is safe for concurrent use; the token is refreshed lazily.
type RedditClient struct {
	clientID     string
	clientSecret string
	userAgent    string
	client       *resty.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var (
	_ Searcher  = (*RedditClient)(nil)
	_ Publisher = (*RedditClient)(nil)
)

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	Ups         int     `json:"ups"`
	Downs       int     `json:"downs"`
	NumComments int     `json:"num_comments"`
}

type redditSubmitResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"data"`
	} `json:"json"`
}

// NewRedditClient creates a Reddit API client.
func NewRedditClient(clientID, clientSecret, userAgent string) *RedditClient {
	return &RedditClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		client:       resty.New().SetTimeout(15 * time.Second),
	}
}

// IsEnabled reports whether credentials are configured.
func (r *RedditClient) IsEnabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditClient) authenticate(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.tokenExpiry) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post("https://www.reddit.com/api/v1/access_token")

	if err != nil {
		return "", fmt.Errorf("reddit authentication failed: %w", err)
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", fmt.Errorf("reddit auth response: %w", err)
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("reddit auth returned no token (status %d)", resp.StatusCode())
	}

	r.accessToken = authResp.AccessToken
	// Refresh a minute early so in-flight calls don't race the expiry.
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}

// Search queries the given subreddits for a keyword and returns candidate
// threads ranked across all of them, best match first.
func (r *RedditClient) Search(ctx context.Context, keyword string, subreddits []string) ([]models.Thread, error) {
	token, err := r.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var threads []models.Thread
	for _, subreddit := range subreddits {
		posts, err := r.searchSubreddit(ctx, token, subreddit, keyword)
		if err != nil {
			logrus.Errorf("Failed to search r/%s for '%s': %v", subreddit, keyword, err)
			continue
		}
		for _, post := range posts {
			threads = append(threads, models.Thread{
				URL:       "https://reddit.com" + post.Permalink,
				Title:     post.Title,
				Snippet:   truncate(post.Selftext, 500),
				Subreddit: post.Subreddit,
			})
		}
	}

	for i := range threads {
		threads[i].Rank = i + 1
	}
	return threads, nil
}

func (r *RedditClient) searchSubreddit(ctx context.Context, token, subreddit, keyword string) ([]redditPost, error) {
	searchURL := fmt.Sprintf("https://oauth.reddit.com/r/%s/search.json?q=%s&restrict_sr=1&sort=relevance&limit=25",
		subreddit, url.QueryEscape(keyword))

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("User-Agent", r.userAgent).
		Get(searchURL)

	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	var searchResp redditSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, err
	}

	posts := make([]redditPost, 0, len(searchResp.Data.Children))
	for _, child := range searchResp.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

// SubmitPost creates a self post and returns its fullname id.
func (r *RedditClient) SubmitPost(ctx context.Context, subreddit, title, content string) (string, error) {
	token, err := r.authenticate(ctx)
	if err != nil {
		return "", err
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("User-Agent", r.userAgent).
		SetFormData(map[string]string{
			"sr":       subreddit,
			"kind":     "self",
			"title":    title,
			"text":     content,
			"api_type": "json",
		}).
		Post("https://oauth.reddit.com/api/submit")

	if err != nil {
		return "", fmt.Errorf("reddit submit failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("reddit submit returned status %d", resp.StatusCode())
	}

	var submitResp redditSubmitResponse
	if err := json.Unmarshal(resp.Body(), &submitResp); err != nil {
		return "", fmt.Errorf("reddit submit response: %w", err)
	}
	if len(submitResp.JSON.Errors) > 0 {
		return "", fmt.Errorf("reddit submit rejected: %v", submitResp.JSON.Errors)
	}
	if submitResp.JSON.Data.Name == "" {
		return "", fmt.Errorf("reddit submit returned no post id")
	}

	return submitResp.JSON.Data.Name, nil
}

// FetchEngagement reads current vote and comment counters for a post.
func (r *RedditClient) FetchEngagement(ctx context.Context, externalID string) (models.Engagement, error) {
	token, err := r.authenticate(ctx)
	if err != nil {
		return models.Engagement{}, err
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("User-Agent", r.userAgent).
		Get("https://oauth.reddit.com/api/info.json?id=" + url.QueryEscape(externalID))

	if err != nil {
		return models.Engagement{}, fmt.Errorf("reddit info failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return models.Engagement{}, fmt.Errorf("reddit info returned status %d", resp.StatusCode())
	}

	var infoResp redditSearchResponse
	if err := json.Unmarshal(resp.Body(), &infoResp); err != nil {
		return models.Engagement{}, err
	}
	if len(infoResp.Data.Children) == 0 {
		return models.Engagement{}, fmt.Errorf("post %s not found", externalID)
	}

	post := infoResp.Data.Children[0].Data
	return models.Engagement{
		Upvotes:      post.Ups,
		Downvotes:    post.Downs,
		CommentCount: post.NumComments,
	}, nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
