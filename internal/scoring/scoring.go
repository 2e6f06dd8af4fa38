package scoring

import (
	"strings"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// PostThreshold is the single score threshold above which an ambiguous
// (general-intent) opportunity is recommended as a new post instead of a
// comment.
const PostThreshold = 70

const (
	rankWeight = 5

	discoveryBonus  = 30
	questionBonus   = 20
	comparisonBonus = 15
	showcaseBonus   = 5

	lengthBonus       = 5
	highValueBonus    = 10
	urgencyBonus      = 5
	categoryBonus     = 10
	productBonus      = 15
	longContentLength = 200
)

var highValuePhrases = []string{
	"recommend", "best", "alternative", "worth buying", "which one",
	"suggestions", "top rated",
}

var urgencyPhrases = []string{
	"asap", "urgent", "today", "right now", "this week", "need it by",
}

// Input carries the signals the scorer combines. Rank is the 1-based
// position in the discovery results; lower is better. CategoryMatch and
// ProductName are only set by the campaign-aware call path.
type Input struct {
	Rank          int
	Intent        models.Intent
	Title         string
	Snippet       string
	CategoryMatch bool
	ProductName   string
}

// Score combines rank, intent and lexical signals into a bounded 0-100
// opportunity score. Callers must not assume anything beyond the bounds.
func Score(in Input) int {
	score := 0

	if in.Rank >= 1 && in.Rank < 10 {
		score += (10 - in.Rank) * rankWeight
	}

	switch in.Intent {
	case models.IntentDiscovery:
		score += discoveryBonus
	case models.IntentQuestion:
		score += questionBonus
	case models.IntentComparison:
		score += comparisonBonus
	case models.IntentShowcase:
		score += showcaseBonus
	}

	text := strings.ToLower(in.Title + " " + in.Snippet)

	if len(text) > longContentLength {
		score += lengthBonus
	}

	for _, phrase := range highValuePhrases {
		if strings.Contains(text, phrase) {
			score += highValueBonus
			break
		}
	}

	for _, phrase := range urgencyPhrases {
		if strings.Contains(text, phrase) {
			score += urgencyBonus
			break
		}
	}

	if in.CategoryMatch {
		score += categoryBonus
	}

	if in.ProductName != "" && strings.Contains(text, strings.ToLower(in.ProductName)) {
		score += productBonus
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return score
}

// Action derives the recommended engagement for an opportunity. Intent
// decides where it can: discovery, question and comparison threads want a
// comment in place, showcases want a standalone post. For general threads
// the score decides, using PostThreshold.
func Action(score int, in models.Intent) models.ActionType {
	switch in {
	case models.IntentDiscovery, models.IntentQuestion, models.IntentComparison:
		return models.ActionComment
	case models.IntentShowcase:
		return models.ActionPost
	}

	if score > PostThreshold {
		return models.ActionPost
	}
	return models.ActionComment
}
