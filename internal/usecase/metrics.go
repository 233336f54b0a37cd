package usecase

import "context"

// MetricsSummary represents aggregated match insights for one owner.
type MetricsSummary struct {
	TotalRequests            int64   `json:"total_requests"`
	MatchedRequests          int64   `json:"matched_requests"`
	NewIdentities            int64   `json:"new_identities"`
	MatchRate                float64 `json:"match_rate"`
	AverageMatchedSimilarity float64 `json:"average_matched_similarity"`
	AverageLatencyMs         float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates match metrics from persisted logs.
func (uc *RecognitionUseCase) GetMetricsSummary(ctx context.Context, ownerID string) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:            aggregation.TotalCount,
		MatchedRequests:          aggregation.MatchedCount,
		NewIdentities:            aggregation.TotalCount - aggregation.MatchedCount,
		AverageMatchedSimilarity: aggregation.AverageSimilarity,
		AverageLatencyMs:         aggregation.AverageLatencyMs,
	}

	if aggregation.TotalCount > 0 {
		summary.MatchRate = float64(aggregation.MatchedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
