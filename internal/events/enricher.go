package events

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
	"github.com/Clark-Hu/restaurant-ratings/internal/metrics"
)

// Defaults applied when EnricherOptions leaves a field unset.
const (
	DefaultMaxResults     = 3
	DefaultClassification = "Music"
)

// EnricherOptions tunes NearbyEvents lookups.
type EnricherOptions struct {
	MaxResults     int
	Classification string
	Timeout        time.Duration
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// Enricher finds events near a rating's city. Lookups fail open: any upstream
// problem yields an empty list, never an error.
type Enricher struct {
	client  Client
	opts    EnricherOptions
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewEnricher wraps client with the fail-open lookup policy.
func NewEnricher(client Client, opts EnricherOptions) *Enricher {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Classification == "" {
		opts.Classification = DefaultClassification
	}
	return &Enricher{
		client:  client,
		opts:    opts,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// NearbyEvents returns up to MaxResults upcoming events in city. The result is
// never nil.
func (e *Enricher) NearbyEvents(ctx context.Context, city string) []domain.Event {
	city = strings.TrimSpace(city)
	if city == "" || e.client == nil {
		e.metrics.IncrementEventLookup(metrics.OutcomeSkipped)
		return []domain.Event{}
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	found, err := e.client.Search(ctx, SearchParams{
		City:           city,
		Size:           e.opts.MaxResults,
		Classification: e.opts.Classification,
	})
	e.metrics.ObserveEventLookupLatency(time.Since(start))
	if err != nil {
		e.metrics.IncrementEventLookup(metrics.OutcomeError)
		e.logger.Error().Err(err).Str("city", city).Msg("events: lookup failed, continuing without events")
		return []domain.Event{}
	}

	e.metrics.IncrementEventLookup(metrics.OutcomeOK)
	if len(found) > e.opts.MaxResults {
		found = found[:e.opts.MaxResults]
	}
	if found == nil {
		found = []domain.Event{}
	}
	return found
}
