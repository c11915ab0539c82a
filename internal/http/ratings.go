package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
	"github.com/Clark-Hu/restaurant-ratings/internal/events"
	"github.com/Clark-Hu/restaurant-ratings/internal/service"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type eventResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ratingResponse struct {
	ID                int64           `json:"id"`
	RestaurantName    string          `json:"restaurant_name"`
	RestaurantType    string          `json:"restaurant_type"`
	RestaurantAddress string          `json:"restaurant_address"`
	Rating            int             `json:"rating"`
	Meal              string          `json:"meal"`
	Calories          int             `json:"calories"`
	City              string          `json:"city"`
	UserID            *int64          `json:"user_id"`
	DatePosted        string          `json:"date_posted"`
	Events            []eventResponse `json:"events"`
}

type averageResponse struct {
	RestaurantName string  `json:"restaurant_name"`
	AverageRating  float64 `json:"average_rating"`
}

type eventDetailResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	LocalDate string   `json:"local_date,omitempty"`
	LocalTime string   `json:"local_time,omitempty"`
	Venues    []string `json:"venues"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	filter, err := buildRatingFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	items, err := s.ratings.List(r.Context(), filter)
	if err != nil {
		s.respondServiceError(w, err, "Failed to list ratings")
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponses(items))
}

func buildRatingFilters(query url.Values) (service.RatingFilter, error) {
	var filter service.RatingFilter

	if val := strings.TrimSpace(query.Get("restaurant_name")); val != "" {
		filter.RestaurantName = &val
	}
	if val := strings.TrimSpace(query.Get("restaurant_type")); val != "" {
		filter.RestaurantType = &val
	}
	if val := strings.TrimSpace(query.Get("min_rating")); val != "" {
		minRating, err := strconv.Atoi(val)
		if err != nil {
			return filter, fmt.Errorf("invalid min_rating value")
		}
		filter.MinRating = &minRating
	}
	if val := strings.TrimSpace(query.Get("max_rating")); val != "" {
		maxRating, err := strconv.Atoi(val)
		if err != nil {
			return filter, fmt.Errorf("invalid max_rating value")
		}
		filter.MaxRating = &maxRating
	}
	return filter, nil
}

func (s *Server) handleCreateRating(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRatingInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	created, err := s.ratings.Create(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err, "Failed to create rating")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/ratings/%d", created.Rating.ID))
	s.respondJSON(w, http.StatusCreated, toRatingResponse(created))
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "ratingID")
	if !ok {
		return
	}

	item, err := s.ratings.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "Failed to fetch rating")
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponse(item))
}

func (s *Server) handleUpdateRating(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "ratingID")
	if !ok {
		return
	}

	var req service.UpdateRatingInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	updated, err := s.ratings.Update(r.Context(), id, req)
	if err != nil {
		s.respondServiceError(w, err, "Failed to update rating")
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponse(updated))
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "ratingID")
	if !ok {
		return
	}

	if err := s.ratings.Delete(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "Failed to delete rating")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Deleted"})
}

func (s *Server) handleAverageRatings(w http.ResponseWriter, r *http.Request) {
	averages, err := s.ratings.Averages(r.Context())
	if err != nil {
		s.respondServiceError(w, err, "Failed to compute average ratings")
		return
	}
	resp := make([]averageResponse, 0, len(averages))
	for _, avg := range averages {
		resp = append(resp, toAverageResponse(avg))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAverageRatingByName(w http.ResponseWriter, r *http.Request) {
	name, err := decodePathParam(r, "restaurantName")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	avg, err := s.ratings.AverageByName(r.Context(), name)
	if err != nil {
		s.respondServiceError(w, err, "Failed to compute average rating")
		return
	}
	s.respondJSON(w, http.StatusOK, toAverageResponse(avg))
}

func (s *Server) handleUserRatings(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.idParam(w, r, "userID")
	if !ok {
		return
	}

	items, err := s.ratings.UserRatings(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err, "Failed to list user ratings")
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponses(items))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := decodePathParam(r, "eventID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if s.events == nil {
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Events provider not configured")
		return
	}

	ctx := r.Context()
	if s.cfg.EventsTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.EventsTimeoutSecs)*time.Second)
		defer cancel()
	}

	detail, err := s.events.Details(ctx, id)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Error().Err(err).Str("event_id", id).Msg("http: event details failed")
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Events provider unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, eventDetailResponse{
		ID:        detail.ID,
		Name:      detail.Name,
		URL:       detail.URL,
		LocalDate: detail.LocalDate,
		LocalTime: detail.LocalTime,
		Venues:    nonNilStrings(detail.Venues),
	})
}

func (s *Server) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid %s", toSnakeParam(name)))
		return 0, false
	}
	return id, true
}

func decodePathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return "", fmt.Errorf("missing %s parameter", toSnakeParam(name))
	}
	val, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s parameter", toSnakeParam(name))
	}
	return val, nil
}

// toSnakeParam turns a route parameter like "ratingID" into "rating_id".
func toSnakeParam(name string) string {
	if strings.HasSuffix(name, "ID") {
		return strings.TrimSuffix(name, "ID") + "_id"
	}
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("http: failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondServiceError maps service error kinds onto status codes. Anything
// unrecognised is logged and reported as a generic 500.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, internalMessage string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Details: verr.Fields,
		})
	case errors.Is(err, service.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	default:
		s.logger.Error().Err(err).Msg("http: " + strings.ToLower(internalMessage))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", internalMessage)
	}
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("Invalid value for field %s", typeError.Field),
			Details: map[string]string{typeError.Field: "has the wrong type"},
		})
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body cannot be empty")
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Request body too large")
	default:
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unable to parse request body")
	}
}

func toRatingResponses(items []domain.EnrichedRating) []ratingResponse {
	out := make([]ratingResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toRatingResponse(item))
	}
	return out
}

func toRatingResponse(item domain.EnrichedRating) ratingResponse {
	rating := item.Rating
	resp := ratingResponse{
		ID:                rating.ID,
		RestaurantName:    rating.RestaurantName,
		RestaurantType:    rating.RestaurantType,
		RestaurantAddress: rating.RestaurantAddress,
		Rating:            rating.Value,
		Meal:              rating.Meal,
		Calories:          rating.Calories,
		City:              rating.City,
		UserID:            rating.UserID,
		DatePosted:        rating.DatePosted.UTC().Format(time.RFC3339),
		Events:            make([]eventResponse, 0, len(item.Events)),
	}
	for _, evt := range item.Events {
		resp.Events = append(resp.Events, eventResponse{ID: evt.ID, Name: evt.Name, URL: evt.URL})
	}
	return resp
}

func toAverageResponse(avg domain.RestaurantAverage) averageResponse {
	return averageResponse{
		RestaurantName: avg.RestaurantName,
		AverageRating:  roundToTwoDecimals(avg.Average),
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func roundToTwoDecimals(value float64) float64 {
	return math.Round(value*100) / 100
}
