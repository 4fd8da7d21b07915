package fetch

import (
	"context"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/tevino/abool"
)

type Kind string

const (
	Success Kind = "success"
	Failure Kind = "failure"
	Timeout Kind = "timeout"
)

// Outcome is the single result of one fetch.
type Outcome[T any] struct {
	Kind    Kind
	Items   []T
	Message string
}

// Worker runs one request against a deadline. The request runs on its own
// goroutine; when the deadline fires first its context is cancelled and
// whatever it returns later is thrown away.
type Worker[T any] struct {
	Name    string
	Timeout time.Duration
	Fetch   func(ctx context.Context) ([]T, error)
	Filter  func(T) bool
}

// Start launches the fetch and returns a channel that receives exactly one
// outcome.
func (w *Worker[T]) Start(ctx context.Context) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	reported := abool.New()
	report := func(o Outcome[T]) {
		if reported.SetToIf(false, true) {
			metrics.FetchOutcomes.WithLabelValues(string(o.Kind)).Inc()
			out <- o
		}
	}

	requestCtx, cancel := context.WithCancel(ctx)
	results := make(chan Outcome[T], 1)
	go func() {
		items, err := w.Fetch(requestCtx)
		if err != nil {
			results <- Outcome[T]{Kind: Failure, Message: err.Error()}
			return
		}
		results <- Outcome[T]{Kind: Success, Items: w.filter(items)}
	}()

	go func() {
		defer cancel()
		timer := time.NewTimer(w.Timeout)
		defer timer.Stop()
		select {
		case o := <-results:
			report(o)
		case <-timer.C:
			log.Log.Warning("fetch.Start(): " + w.Name + " timed out after " + w.Timeout.String())
			report(Outcome[T]{Kind: Timeout, Message: "request timed out"})
		case <-ctx.Done():
			report(Outcome[T]{Kind: Failure, Message: ctx.Err().Error()})
		}
	}()
	return out
}

// Run is the blocking form of Start.
func (w *Worker[T]) Run(ctx context.Context) Outcome[T] {
	return <-w.Start(ctx)
}

func (w *Worker[T]) filter(items []T) []T {
	if w.Filter == nil {
		return items
	}
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if w.Filter(item) {
			kept = append(kept, item)
		}
	}
	return kept
}
