package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const bigQueryCostPerTB = 5.0 // USD, on-demand pricing

// CostTracker enforces a per-query BigQuery byte limit using dry-run estimates.
type CostTracker struct {
	maxBytes int64
}

// NewCostTracker creates a tracker; maxBytes <= 0 disables the limit.
func NewCostTracker(maxBytes int64) *CostTracker {
	return &CostTracker{maxBytes: maxBytes}
}

// CheckLimits returns false and a message if bytes exceed the limit.
func (ct *CostTracker) CheckLimits(totalBytesProcessed int64, caller string) (bool, string) {
	if ct.maxBytes <= 0 || totalBytesProcessed <= ct.maxBytes {
		return true, ""
	}
	processedGB := float64(totalBytesProcessed) / bytesPerGB
	limitGB := float64(ct.maxBytes) / bytesPerGB
	log.Warn().
		Str("event", "query_cost_rejected").
		Str("caller_hash", hashStr(caller)[:16]).
		Float64("processed_gb", processedGB).
		Float64("limit_gb", limitGB).
		Msg("query rejected by cost limit")
	return false, fmt.Sprintf(
		"Query cost limit exceeded. Processed: %.2fGB, Limit: %.2fGB",
		processedGB, limitGB,
	)
}

// EstimateUSD converts billed bytes to an on-demand cost.
func EstimateUSD(totalBytesProcessed int64) float64 {
	return float64(totalBytesProcessed) / bytesPerGB / 1000.0 * bigQueryCostPerTB
}

// LogQueryCost logs query cost info with hashed identifiers
func (ct *CostTracker) LogQueryCost(sql string, totalBytesProcessed int64, caller string, durationMs int64) {
	log.Info().
		Str("event", "query_cost").
		Str("sql_hash", hashStr(sql)[:16]).
		Str("caller_hash", hashStr(caller)[:16]).
		Float64("cost_gb", float64(totalBytesProcessed)/bytesPerGB).
		Float64("cost_usd", EstimateUSD(totalBytesProcessed)).
		Int64("duration_ms", durationMs).
		Msg("query cost")
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
