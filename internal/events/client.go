package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
)

// ErrNotFound is returned when upstream cannot find the requested event.
var ErrNotFound = errors.New("events: not found")

// SearchParams describes one upstream event search.
type SearchParams struct {
	City           string
	Size           int
	Classification string
}

// Client defines the contract for querying the upstream events API.
type Client interface {
	Search(ctx context.Context, params SearchParams) ([]domain.Event, error)
	Details(ctx context.Context, id string) (domain.EventDetail, error)
}

// HTTPClient implements Client against the Ticketmaster Discovery API.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewHTTPClient constructs a new HTTP-backed events client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse events url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("events url %q must be absolute", baseURL)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
		tracer: otel.Tracer("github.com/Clark-Hu/restaurant-ratings/internal/events"),
	}, nil
}

// Search returns at most params.Size events in the city, soonest first.
func (c *HTTPClient) Search(ctx context.Context, params SearchParams) ([]domain.Event, error) {
	ctx, span := c.tracer.Start(ctx, "events.search", trace.WithAttributes(
		attribute.String("events.city", params.City),
		attribute.Int("events.size", params.Size),
	))
	defer span.End()

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("city", params.City)
	q.Set("size", strconv.Itoa(params.Size))
	q.Set("sort", "date,asc")
	if params.Classification != "" {
		q.Set("classificationName", params.Classification)
	}

	var payload searchResponse
	if err := c.getJSON(ctx, "events.json", q, &payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	events := convertEvents(payload, params.Size)
	span.SetAttributes(attribute.Int("events.count", len(events)))
	c.logger.Debug().Str("city", params.City).Int("count", len(events)).Msg("events: search complete")
	return events, nil
}

// Details fetches a single event by its provider id.
func (c *HTTPClient) Details(ctx context.Context, id string) (domain.EventDetail, error) {
	ctx, span := c.tracer.Start(ctx, "events.details", trace.WithAttributes(
		attribute.String("events.id", id),
	))
	defer span.End()

	q := url.Values{}
	q.Set("apikey", c.apiKey)

	var payload eventPayload
	if err := c.getJSON(ctx, "events/"+url.PathEscape(id)+".json", q, &payload); err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "details failed")
		}
		return domain.EventDetail{}, err
	}
	if payload.ID == "" {
		return domain.EventDetail{}, fmt.Errorf("decode event response: missing id")
	}
	return convertDetail(payload), nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, q url.Values, dst interface{}) error {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/" + path
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode events response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("events: unexpected upstream status")
		return fmt.Errorf("events: upstream returned %d", resp.StatusCode)
	}
}

type searchResponse struct {
	Embedded struct {
		Events []eventPayload `json:"events"`
	} `json:"_embedded"`
}

type eventPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
		} `json:"start"`
	} `json:"dates"`
	Embedded struct {
		Venues []struct {
			Name string `json:"name"`
		} `json:"venues"`
	} `json:"_embedded"`
}

func convertEvents(payload searchResponse, limit int) []domain.Event {
	items := payload.Embedded.Events
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	events := make([]domain.Event, 0, len(items))
	for _, item := range items {
		events = append(events, domain.Event{ID: item.ID, Name: item.Name, URL: item.URL})
	}
	return events
}

func convertDetail(payload eventPayload) domain.EventDetail {
	detail := domain.EventDetail{
		Event:     domain.Event{ID: payload.ID, Name: payload.Name, URL: payload.URL},
		LocalDate: payload.Dates.Start.LocalDate,
		LocalTime: payload.Dates.Start.LocalTime,
		Venues:    make([]string, 0, len(payload.Embedded.Venues)),
	}
	for _, venue := range payload.Embedded.Venues {
		if venue.Name != "" {
			detail.Venues = append(detail.Venues, venue.Name)
		}
	}
	return detail
}
