package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// Generator produces draft content for a content queue item.
type Generator interface {
	GenerateContent(ctx context.Context, opp models.Opportunity, program *models.AffiliateProgram, action models.ActionType) (Draft, error)
}

// Draft is a generated title/content pair.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// OpenAIGenerator drafts Reddit content with a chat completion.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

var _ Generator = (*OpenAIGenerator)(nil)

const systemPrompt = "You write helpful, genuine Reddit content. Never sound like an advertisement. Respond only with JSON: {\"title\": \"...\", \"content\": \"...\"}"

// NewOpenAIGenerator creates a generator using the given API key and model.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// GenerateContent drafts a comment or post responding to the opportunity's
// thread. The response is requested as JSON so the title and body come
// back structured.
func (g *OpenAIGenerator) GenerateContent(ctx context.Context, opp models.Opportunity, program *models.AffiliateProgram, action models.ActionType) (Draft, error) {
	prompt := buildPrompt(opp, program, action)

	response, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(800),
	})

	if err != nil {
		return Draft{}, fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return Draft{}, fmt.Errorf("no response from openai")
	}

	return parseDraft(response.Choices[0].Message.Content)
}

// parseDraft decodes the model's JSON reply, tolerating a markdown code
// fence around it.
func parseDraft(content string) (Draft, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")

	var draft Draft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return Draft{}, fmt.Errorf("failed to parse openai response: %w", err)
	}
	if draft.Content == "" {
		return Draft{}, fmt.Errorf("openai returned empty content")
	}

	return draft, nil
}

func buildPrompt(opp models.Opportunity, program *models.AffiliateProgram, action models.ActionType) string {
	var b strings.Builder

	if action == models.ActionComment {
		b.WriteString("Write a helpful Reddit comment responding to this thread.\n\n")
	} else {
		b.WriteString("Write a new Reddit post inspired by this thread, for the same community.\n\n")
	}

	fmt.Fprintf(&b, "Subreddit: r/%s\n", opp.Subreddit)
	fmt.Fprintf(&b, "Thread title: %s\n", opp.Title)
	if opp.Snippet != "" {
		fmt.Fprintf(&b, "Thread body: %s\n", opp.Snippet)
	}

	if program != nil {
		fmt.Fprintf(&b, "\nWhere it genuinely helps, mention %s (%s).\n", program.ProductName, program.Description)
	}

	b.WriteString("\nKeep it under 200 words and conversational.")
	return b.String()
}
