package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/logger"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

type fakeSummary struct {
	createdAt time.Time
	model     string
	usage     llmtypes.Usage
	gaps      int
	success   bool
}

func (f fakeSummary) GetCreatedAt() time.Time  { return f.createdAt }
func (f fakeSummary) GetModel() string         { return f.model }
func (f fakeSummary) GetUsage() llmtypes.Usage { return f.usage }
func (f fakeSummary) GetGapsFilled() int       { return f.gaps }
func (f fakeSummary) IsSuccess() bool          { return f.success }

func day(d, h int) time.Time {
	return time.Date(2026, 10, d, h, 0, 0, 0, time.UTC)
}

func TestCalculate(t *testing.T) {
	summaries := []SessionSummary{
		fakeSummary{day(1, 9), "claude-sonnet-4-5", llmtypes.Usage{InputTokens: 1000, OutputTokens: 200}, 1, true},
		fakeSummary{day(1, 17), "gpt-4.1", llmtypes.Usage{InputTokens: 500, OutputTokens: 100}, 2, false},
		fakeSummary{day(3, 8), "claude-sonnet-4-5", llmtypes.Usage{InputTokens: 300, OutputTokens: 50}, 0, true},
		fakeSummary{day(3, 9), "", llmtypes.Usage{InputTokens: 10}, 0, false},
	}

	stats := Calculate(summaries, time.Time{}, time.Time{})

	require.Len(t, stats.Daily, 2)
	assert.Equal(t, day(3, 0), stats.Daily[0].Date)
	assert.Equal(t, 2, stats.Daily[0].Sessions)
	assert.Equal(t, day(1, 0), stats.Daily[1].Date)
	assert.Equal(t, llmtypes.Usage{InputTokens: 1500, OutputTokens: 300}, stats.Daily[1].Usage)
	assert.Equal(t, 3, stats.Daily[1].GapsFilled)

	assert.Equal(t, 4, stats.Total.Sessions)
	assert.Equal(t, 2, stats.Total.Succeeded)
	assert.Equal(t, 0.5, stats.Total.SuccessRate())
	assert.Equal(t, int64(1810), stats.Total.Usage.InputTokens)

	assert.Equal(t, []string{"claude-sonnet-4-5", "gpt-4.1", "unknown"}, stats.Models())
	assert.Equal(t, 2, stats.ByModel["claude-sonnet-4-5"].Succeeded)
}

func TestCalculateTimeRange(t *testing.T) {
	summaries := []SessionSummary{
		fakeSummary{createdAt: day(1, 9)},
		fakeSummary{createdAt: day(2, 9)},
		fakeSummary{createdAt: day(5, 9)},
	}

	stats := Calculate(summaries, day(2, 0), day(4, 0))
	require.Len(t, stats.Daily, 1)
	assert.Equal(t, day(2, 0), stats.Daily[0].Date)
	assert.Equal(t, 1, stats.Total.Sessions)
}

func TestCalculateEmpty(t *testing.T) {
	stats := Calculate(nil, time.Time{}, time.Time{})
	assert.Empty(t, stats.Daily)
	assert.Equal(t, 0, stats.Total.Sessions)
	assert.Equal(t, float64(0), stats.Total.SuccessRate())
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in))
	}
}

func TestLogSessionUsage(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)
	l.Formatter = &logrus.JSONFormatter{}
	ctx := logger.WithLogger(context.Background(), logrus.NewEntry(l))

	LogSessionUsage(ctx, llmtypes.Usage{InputTokens: 1000, OutputTokens: 500}, "claude-sonnet-4-5", time.Now().Add(-2*time.Second))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "LLM usage completed", entry["msg"])
	assert.Equal(t, "claude-sonnet-4-5", entry["model"])
	assert.Equal(t, float64(1500), entry["total_tokens"])
	rate, ok := entry["output_tokens/s"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 250, rate, 10)
}

func TestLogSessionUsageWithoutOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.Formatter = &logrus.JSONFormatter{}
	ctx := logger.WithLogger(context.Background(), logrus.NewEntry(l))

	LogSessionUsage(ctx, llmtypes.Usage{InputTokens: 10}, "m", time.Now())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "output_tokens/s")
}
