package benchscript

import (
	"fmt"
	"sort"
	"time"
)

type Aggregator struct {
	requests []*Request
}

// NewAggregator sorts the processed requests by elapsed time. Requests that
// never got a response are excluded.
func NewAggregator(requests []*Request) *Aggregator {
	measured := make([]*Request, 0, len(requests))
	for _, req := range requests {
		if req.TimeElapsed != nil && !req.Failed {
			measured = append(measured, req)
		}
	}

	sort.Slice(measured, func(i, j int) bool {
		return *measured[i].TimeElapsed < *measured[j].TimeElapsed
	})

	return &Aggregator{requests: measured}
}

func (a *Aggregator) Percentile(percentile int) (time.Duration, error) {
	index := len(a.requests)*percentile/100 - 1

	if index < 0 {
		return 0, fmt.Errorf("invalid index %d for percentile %d", index, percentile)
	}

	return *a.requests[index].TimeElapsed, nil
}

func (a *Aggregator) PrintPercentiles(percentilesToCalculate []int) {
	for _, perc := range percentilesToCalculate {
		percValue, err := a.Percentile(perc)
		if err != nil {
			fmt.Printf("Failed to calculate percentile %d: %s\n", perc, err)
			continue
		}

		fmt.Printf("Percentile %d: %s\n", perc, percValue.String())
	}
}
