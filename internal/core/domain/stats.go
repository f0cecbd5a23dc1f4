package domain

import "math"

// RequestStats is the derived aggregate for a request's document set.
type RequestStats struct {
	SuccessRate         int      `json:"success_rate"`
	TotalAmount         *float64 `json:"total_amount,omitempty"`
	Currency            *string  `json:"currency,omitempty"`
	AverageAmount       *float64 `json:"average_amount,omitempty"`
	AvgProcessingTimeMs *int64   `json:"avg_processing_time_ms,omitempty"`
}

// CalculateRequestStats aggregates counts, amounts and timings over a
// request's documents. Amounts consider processed documents only; currency is
// the most frequent one among them with ties broken by iteration order.
func CalculateRequestStats(docs []Document) RequestStats {
	var stats RequestStats

	total := len(docs)
	if total == 0 {
		return stats
	}

	var (
		processed      int
		amountSum      float64
		amountCount    int
		currencyCounts = map[string]int{}
		currencyOrder  []string
	)
	for _, doc := range docs {
		if doc.Status != DocStatusProcessed {
			continue
		}
		processed++
		if doc.TotalAmount != nil {
			amountSum += *doc.TotalAmount
			amountCount++
		}
		if doc.Currency != nil && *doc.Currency != "" {
			if _, seen := currencyCounts[*doc.Currency]; !seen {
				currencyOrder = append(currencyOrder, *doc.Currency)
			}
			currencyCounts[*doc.Currency]++
		}
	}

	stats.SuccessRate = int(math.Round(float64(processed) / float64(total) * 100))

	if amountCount > 0 {
		totalAmount := amountSum
		averageAmount := amountSum / float64(amountCount)
		stats.TotalAmount = &totalAmount
		stats.AverageAmount = &averageAmount
	}

	best := ""
	for _, currency := range currencyOrder {
		if best == "" || currencyCounts[currency] > currencyCounts[best] {
			best = currency
		}
	}
	if best != "" {
		stats.Currency = &best
	}

	var (
		durationSumMs float64
		durationCount int
	)
	for _, doc := range docs {
		if doc.StartedAt == nil || doc.CompletedAt == nil {
			continue
		}
		durationSumMs += float64(doc.CompletedAt.Sub(*doc.StartedAt).Microseconds()) / 1000.0
		durationCount++
	}
	if durationCount > 0 {
		avg := int64(math.Round(durationSumMs / float64(durationCount)))
		stats.AvgProcessingTimeMs = &avg
	}

	return stats
}
