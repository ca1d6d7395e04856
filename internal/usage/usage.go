// Package usage estimates token counts and cost for display. Nothing here
// enforces a limit.
package usage

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/varsilias/oracle-chat/pkg/types"
)

// ContextLimit is the upstream model's advertised context window in tokens.
const ContextLimit = 200000

// USD per 1K tokens.
const (
	PriceInput  = 0.003
	PriceOutput = 0.015
)

type Snapshot struct {
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// EstimateTokens assumes roughly four characters per token. Length is
// counted in UTF-16 code units, matching what a browser reports.
func EstimateTokens(text string) int {
	n := len(utf16.Encode([]rune(text)))
	return int(math.Ceil(float64(n) / 4))
}

func EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*PriceInput + float64(outputTokens)/1000*PriceOutput
}

// ContextPercentage is clamped to [0, 100].
func ContextPercentage(tokens int) float64 {
	pct := float64(tokens) / ContextLimit * 100
	return math.Max(0, math.Min(pct, 100))
}

func FormatTokens(tokens int) string {
	if tokens >= 1000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return fmt.Sprintf("%d", tokens)
}

func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.4f", cost)
}

// ConversationText is the text the estimate is taken over.
func ConversationText(msgs []types.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, " ")
}

// Compute prices the whole conversation as input tokens.
func Compute(msgs []types.Message) Snapshot {
	tokens := EstimateTokens(ConversationText(msgs))
	return Snapshot{Tokens: tokens, Cost: EstimateCost(tokens, 0)}
}

type Level string

const (
	LevelOK       Level = "ok"
	LevelElevated Level = "elevated"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// LevelFor buckets a context percentage for the usage bar colour.
func LevelFor(pct float64) Level {
	switch {
	case pct < 50:
		return LevelOK
	case pct < 75:
		return LevelElevated
	case pct < 90:
		return LevelHigh
	default:
		return LevelCritical
	}
}
