// Package usage aggregates token usage and outcome statistics across saved
// teacher sessions, and logs per-session model usage.
package usage

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jingkaihe/skillforge/pkg/logger"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

// SessionSummary provides access to session metadata and usage
type SessionSummary interface {
	GetCreatedAt() time.Time
	GetModel() string
	GetUsage() llmtypes.Usage
	GetGapsFilled() int
	IsSuccess() bool
}

// Tally counts sessions and their outcomes.
type Tally struct {
	Usage      llmtypes.Usage
	Sessions   int
	Succeeded  int
	GapsFilled int
}

func (t *Tally) add(s SessionSummary) {
	t.Usage = t.Usage.Add(s.GetUsage())
	t.Sessions++
	t.GapsFilled += s.GetGapsFilled()
	if s.IsSuccess() {
		t.Succeeded++
	}
}

// SuccessRate returns the share of successful sessions, 0 when there are none.
func (t Tally) SuccessRate() float64 {
	if t.Sessions == 0 {
		return 0
	}
	return math.Round(float64(t.Succeeded)/float64(t.Sessions)*1000) / 1000
}

// DailyUsage is the tally of a single day
type DailyUsage struct {
	Date time.Time
	Tally
}

// Stats holds a daily breakdown, newest first, and per-model totals.
type Stats struct {
	Daily   []DailyUsage
	ByModel map[string]*Tally
	Total   Tally
}

// Calculate aggregates sessions created within [start, end]. A zero bound is
// open.
func Calculate(summaries []SessionSummary, start, end time.Time) *Stats {
	daily := make(map[string]*DailyUsage)
	stats := &Stats{ByModel: make(map[string]*Tally)}

	for _, s := range summaries {
		date := s.GetCreatedAt().UTC().Truncate(24 * time.Hour)
		if !start.IsZero() && date.Before(start) {
			continue
		}
		if !end.IsZero() && date.After(end) {
			continue
		}

		key := date.Format("2006-01-02")
		if _, ok := daily[key]; !ok {
			daily[key] = &DailyUsage{Date: date}
		}
		daily[key].add(s)

		model := s.GetModel()
		if model == "" {
			model = "unknown"
		}
		if _, ok := stats.ByModel[model]; !ok {
			stats.ByModel[model] = &Tally{}
		}
		stats.ByModel[model].add(s)

		stats.Total.add(s)
	}

	for _, d := range daily {
		stats.Daily = append(stats.Daily, *d)
	}
	sort.Slice(stats.Daily, func(i, j int) bool {
		return stats.Daily[i].Date.After(stats.Daily[j].Date)
	})
	return stats
}

// Models returns the model names of s in alphabetical order.
func (s *Stats) Models() []string {
	models := make([]string, 0, len(s.ByModel))
	for m := range s.ByModel {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// FormatNumber formats large numbers with commas for readability
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	var result strings.Builder
	if neg {
		result.WriteString("-")
	}
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return result.String()
}

// LogSessionUsage logs the model usage of a finished session, including
// output throughput.
func LogSessionUsage(ctx context.Context, usage llmtypes.Usage, model string, startTime time.Time) {
	fields := map[string]any{
		"model":         model,
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
		"total_tokens":  usage.TotalTokens(),
	}

	duration := time.Since(startTime)
	if duration > 0 && usage.OutputTokens > 0 {
		fields["output_tokens/s"] = math.Round(float64(usage.OutputTokens)/duration.Seconds()*10000) / 10000
	}

	logger.G(ctx).WithFields(fields).Info("LLM usage completed")
}
