package backend

import (
	"context"
	"sync"
	"time"
)

// DefaultStagger is the launch spacing between prediction fetches.
const DefaultStagger = 500 * time.Millisecond

// PredictionResult is one match's prefetch outcome. Err is set when that
// match's fetch failed; other matches are unaffected.
type PredictionResult struct {
	MatchID    string
	Prediction *Prediction
	Err        error
}

// Prefetcher loads predictions for a batch of matches with staggered launch
// times so the backend is not hit with a burst.
type Prefetcher struct {
	client  *Client
	stagger time.Duration

	// onResult fires once per match, from the fetching goroutine.
	onResult func(PredictionResult)
}

// NewPrefetcher builds a prefetcher. A non-positive stagger falls back to the
// default spacing.
func NewPrefetcher(client *Client, stagger time.Duration, onResult func(PredictionResult)) *Prefetcher {
	if stagger <= 0 {
		stagger = DefaultStagger
	}
	return &Prefetcher{client: client, stagger: stagger, onResult: onResult}
}

// Fetch launches one goroutine per match, each delayed by its index times the
// stagger interval, and blocks until all have finished. Failures are reported
// per match and never abort the batch.
func (p *Prefetcher) Fetch(ctx context.Context, matchIDs []string) []PredictionResult {
	results := make([]PredictionResult, len(matchIDs))

	var wg sync.WaitGroup
	for i, matchID := range matchIDs {
		wg.Add(1)
		go func(i int, matchID string) {
			defer wg.Done()

			select {
			case <-time.After(time.Duration(i) * p.stagger):
			case <-ctx.Done():
				results[i] = PredictionResult{MatchID: matchID, Err: ctx.Err()}
				p.report(results[i])
				return
			}

			pred, err := p.client.GetPrediction(ctx, matchID)
			if err != nil {
				// No cached prediction; generate a fresh one.
				pred, err = p.client.GeneratePrediction(ctx, matchID)
			}

			results[i] = PredictionResult{MatchID: matchID, Prediction: pred, Err: err}
			p.report(results[i])
		}(i, matchID)
	}
	wg.Wait()

	return results
}

func (p *Prefetcher) report(r PredictionResult) {
	if p.onResult != nil {
		p.onResult(r)
	}
}
