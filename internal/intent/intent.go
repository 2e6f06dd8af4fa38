package intent

import (
	"strings"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// Marker phrases checked against lowercased title+body text. Order of the
// checks in Classify is significant: earlier rules win.
var (
	recommendationWords = []string{
		"best", "recommend", "suggestion", "which", "good", "advice",
		"looking for", "should i",
	}

	comparisonMarkers = []string{
		" vs ", " vs.", "versus", "compared to", "better than",
		"difference between",
	}

	showcaseMarkers = []string{
		"how i ", "i used", "i built", "i made", "my experience",
		"review of", "sharing my",
	}

	discoveryPhrases = []string{
		"looking for", "recommend", "suggestions", "any good",
		"help me choose", "need a",
	}
)

// Classify maps a thread's title and body to an intent. It is pure,
// deterministic and case-insensitive: a question mark combined with
// recommendation-seeking language is discovery, a bare question mark is a
// question, then comparison markers, first-person showcase markers and
// discovery-seeking phrases are tried in that order. Everything else is
// general discussion.
func Classify(title, body string) models.Intent {
	text := strings.ToLower(title + " " + body)

	if strings.Contains(text, "?") {
		for _, word := range recommendationWords {
			if strings.Contains(text, word) {
				return models.IntentDiscovery
			}
		}
		return models.IntentQuestion
	}

	for _, marker := range comparisonMarkers {
		if strings.Contains(text, marker) {
			return models.IntentComparison
		}
	}

	for _, marker := range showcaseMarkers {
		if strings.Contains(text, marker) {
			return models.IntentShowcase
		}
	}

	for _, phrase := range discoveryPhrases {
		if strings.Contains(text, phrase) {
			return models.IntentDiscovery
		}
	}

	return models.IntentGeneral
}
