package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday 2025-06-04 10:30 UTC
var wednesday = time.Date(2025, 6, 4, 10, 30, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    Config
		wantErr bool
	}{
		{
			name: "Daily",
			json: `{"frequency":"daily","time_ranges":[{"start":"09:00","end":"11:00"}]}`,
			want: Daily{TimeRanges: []TimeRange{{Start: "09:00", End: "11:00"}}},
		},
		{
			name: "Weekly",
			json: `{"frequency":"weekly","days_of_week":[1,3],"time_ranges":[{"start":"18:00","end":"20:00"}]}`,
			want: Weekly{
				DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
				TimeRanges: []TimeRange{{Start: "18:00", End: "20:00"}},
			},
		},
		{
			name: "Custom",
			json: `{"frequency":"custom","days_of_week":[6],"time_ranges":[{"start":"08:00","end":"09:00"}]}`,
			want: Custom{
				DaysOfWeek: []time.Weekday{time.Saturday},
				TimeRanges: []TimeRange{{Start: "08:00", End: "09:00"}},
			},
		},
		{
			name:    "Unknown frequency",
			json:    `{"frequency":"hourly"}`,
			wantErr: true,
		},
		{
			name:    "Malformed JSON",
			json:    `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.json))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaily_NextSlot(t *testing.T) {
	cfg := Daily{TimeRanges: []TimeRange{
		{Start: "09:00", End: "11:00"},
		{Start: "18:00", End: "20:00"},
	}}

	// 10:30 is past the morning window start, so the evening slot is next.
	slot, err := cfg.NextSlot(wednesday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 4, 18, 0, 0, 0, time.UTC), slot)

	// After the evening slot, tomorrow morning is next.
	slot, err = cfg.NextSlot(time.Date(2025, 6, 4, 19, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC), slot)
}

func TestDaily_NextSlotStrictlyAfterNow(t *testing.T) {
	cfg := Daily{TimeRanges: []TimeRange{{Start: "09:00", End: "11:00"}}}

	exactlyNine := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	slot, err := cfg.NextSlot(exactlyNine)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC), slot)
}

func TestWeekly_NextSlot(t *testing.T) {
	cfg := Weekly{
		DaysOfWeek: []time.Weekday{time.Monday, time.Friday},
		TimeRanges: []TimeRange{{Start: "09:00", End: "11:00"}},
	}

	// From Wednesday the next allowed day is Friday.
	slot, err := cfg.NextSlot(wednesday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 6, 9, 0, 0, 0, time.UTC), slot)

	// From Friday evening the next allowed day wraps to Monday.
	slot, err = cfg.NextSlot(time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC), slot)
}

func TestCustom_NextSlot(t *testing.T) {
	cfg := Custom{
		DaysOfWeek: []time.Weekday{time.Saturday},
		TimeRanges: []TimeRange{{Start: "08:00", End: "09:00"}},
	}

	slot, err := cfg.NextSlot(wednesday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 7, 8, 0, 0, 0, time.UTC), slot)
}

func TestNextSlot_NoRanges(t *testing.T) {
	_, err := Daily{}.NextSlot(wednesday)
	assert.Error(t, err)
}

func TestNextSlot_BadStartTime(t *testing.T) {
	cfg := Daily{TimeRanges: []TimeRange{{Start: "25:99", End: "26:00"}}}
	_, err := cfg.NextSlot(wednesday)
	assert.Error(t, err)
}
