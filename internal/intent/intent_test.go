package intent

import (
	"testing"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		body     string
		expected models.Intent
	}{
		{
			name:     "Question mark with recommendation words",
			title:    "What's the best gaming mouse under $50?",
			body:     "",
			expected: models.IntentDiscovery,
		},
		{
			name:     "Plain question",
			title:    "How do I configure my router?",
			body:     "It keeps dropping the connection",
			expected: models.IntentQuestion,
		},
		{
			name:     "Comparison with vs",
			title:    "Logitech vs Razer for competitive play",
			body:     "",
			expected: models.IntentComparison,
		},
		{
			name:     "Comparison phrase in body",
			title:    "Keyboard decision",
			body:     "Trying to understand the difference between linear and tactile switches",
			expected: models.IntentComparison,
		},
		{
			name:     "First person showcase",
			title:    "How I grew my blog to 10k readers",
			body:     "",
			expected: models.IntentShowcase,
		},
		{
			name:     "Review showcase",
			title:    "Review of the new AI writing assistant",
			body:     "",
			expected: models.IntentShowcase,
		},
		{
			name:     "Discovery phrase without question mark",
			title:    "Looking for a content generation tool",
			body:     "Something that handles outlines too",
			expected: models.IntentDiscovery,
		},
		{
			name:     "Recommend without question mark",
			title:    "Recommend me a mechanical keyboard",
			body:     "",
			expected: models.IntentDiscovery,
		},
		{
			name:     "General discussion",
			title:    "The state of the industry in 2025",
			body:     "Some thoughts on where things are heading",
			expected: models.IntentGeneral,
		},
		{
			name:     "Case insensitive",
			title:    "LOOKING FOR A GAMING HEADSET",
			body:     "",
			expected: models.IntentDiscovery,
		},
		{
			name:     "Question mark beats comparison marker",
			title:    "Is X better than Y?",
			body:     "",
			expected: models.IntentQuestion,
		},
		{
			name:     "Empty input",
			title:    "",
			body:     "",
			expected: models.IntentGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.title, tt.body))
		})
	}
}
