package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TimeRange is a posting window within a day, in 24h clock time.
type TimeRange struct {
	Start string `json:"start"` // "15:04"
	End   string `json:"end"`
}

// Config is a campaign posting schedule. Exactly one variant is active,
// selected by the "frequency" tag when decoding.
type Config interface {
	// NextSlot returns the earliest slot strictly after now.
	NextSlot(now time.Time) (time.Time, error)
}

// Daily posts every day within the configured windows.
type Daily struct {
	TimeRanges []TimeRange `json:"time_ranges"`
}

// Weekly posts on the given weekdays within the configured windows.
type Weekly struct {
	DaysOfWeek []time.Weekday `json:"days_of_week"`
	TimeRanges []TimeRange    `json:"time_ranges"`
}

// Custom is an operator-picked day/window combination. It shares the
// weekly slot arithmetic but is kept as its own variant so the two can
// diverge without a migration.
type Custom struct {
	DaysOfWeek []time.Weekday `json:"days_of_week"`
	TimeRanges []TimeRange    `json:"time_ranges"`
}

type rawConfig struct {
	Frequency  string         `json:"frequency"`
	DaysOfWeek []time.Weekday `json:"days_of_week"`
	TimeRanges []TimeRange    `json:"time_ranges"`
}

// Parse decodes a campaign's schedule configuration JSON into its variant.
func Parse(data []byte) (Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid schedule config: %w", err)
	}

	switch raw.Frequency {
	case "daily":
		return Daily{TimeRanges: raw.TimeRanges}, nil
	case "weekly":
		return Weekly{DaysOfWeek: raw.DaysOfWeek, TimeRanges: raw.TimeRanges}, nil
	case "custom":
		return Custom{DaysOfWeek: raw.DaysOfWeek, TimeRanges: raw.TimeRanges}, nil
	default:
		return nil, fmt.Errorf("unknown schedule frequency %q", raw.Frequency)
	}
}

func (d Daily) NextSlot(now time.Time) (time.Time, error) {
	return nextSlot(now, nil, d.TimeRanges)
}

func (w Weekly) NextSlot(now time.Time) (time.Time, error) {
	return nextSlot(now, w.DaysOfWeek, w.TimeRanges)
}

func (c Custom) NextSlot(now time.Time) (time.Time, error) {
	return nextSlot(now, c.DaysOfWeek, c.TimeRanges)
}

// nextSlot scans forward from now, day by day, for the first window start
// that is still ahead. A nil day list means every day qualifies.
func nextSlot(now time.Time, days []time.Weekday, ranges []TimeRange) (time.Time, error) {
	if len(ranges) == 0 {
		return time.Time{}, fmt.Errorf("schedule has no time ranges")
	}

	starts := make([]time.Duration, 0, len(ranges))
	for _, r := range ranges {
		t, err := time.Parse("15:04", r.Start)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time range start %q: %w", r.Start, err)
		}
		starts = append(starts, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	for offset := 0; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset)
		if !dayAllowed(day.Weekday(), days) {
			continue
		}

		midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		for _, start := range starts {
			slot := midnight.Add(start)
			if slot.After(now) {
				return slot, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("no slot found within a week")
}

func dayAllowed(day time.Weekday, days []time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
