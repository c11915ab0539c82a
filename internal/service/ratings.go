package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
	"github.com/Clark-Hu/restaurant-ratings/internal/metrics"
	"github.com/Clark-Hu/restaurant-ratings/internal/repository"
)

// RatingStore persists ratings.
type RatingStore interface {
	Create(ctx context.Context, params repository.RatingCreateParams) (domain.Rating, error)
	GetByID(ctx context.Context, id int64) (domain.Rating, error)
	List(ctx context.Context, filters repository.RatingListFilters) ([]domain.Rating, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error)
	Update(ctx context.Context, id int64, params repository.RatingUpdateParams) (domain.Rating, error)
	Delete(ctx context.Context, id int64) error
	Averages(ctx context.Context) ([]domain.RestaurantAverage, error)
	AverageByName(ctx context.Context, name string) (domain.RestaurantAverage, error)
}

// UserStore resolves user references.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (domain.User, error)
}

// EventFinder looks up events near a city. Implementations must not fail.
type EventFinder interface {
	NearbyEvents(ctx context.Context, city string) []domain.Event
}

// Options tunes a RatingService.
type Options struct {
	// EnrichConcurrency bounds parallel event lookups when enriching a list.
	EnrichConcurrency int
	Metrics           *metrics.Metrics
	Logger            zerolog.Logger
}

// RatingService implements the rating lifecycle: validation, persistence,
// city derivation and event enrichment.
type RatingService struct {
	ratings     RatingStore
	users       UserStore
	events      EventFinder
	validate    *validator.Validate
	concurrency int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewRatingService wires the service to its collaborators.
func NewRatingService(ratings RatingStore, users UserStore, events EventFinder, opts Options) *RatingService {
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = 1
	}
	return &RatingService{
		ratings:     ratings,
		users:       users,
		events:      events,
		validate:    newValidator(),
		concurrency: opts.EnrichConcurrency,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// Create validates and stores a rating, then attaches nearby events.
func (s *RatingService) Create(ctx context.Context, in CreateRatingInput) (domain.EnrichedRating, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return domain.EnrichedRating{}, validationError(err)
	}

	city, err := deriveCity(in.RestaurantAddress)
	if err != nil {
		return domain.EnrichedRating{}, err
	}
	if err := s.ensureUser(ctx, in.UserID); err != nil {
		return domain.EnrichedRating{}, err
	}

	rating, err := s.ratings.Create(ctx, repository.RatingCreateParams{
		RestaurantName:    in.RestaurantName,
		RestaurantType:    in.RestaurantType,
		RestaurantAddress: in.RestaurantAddress,
		Value:             *in.Rating,
		Meal:              in.Meal,
		Calories:          *in.Calories,
		City:              city,
		UserID:            in.UserID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.EnrichedRating{}, newValidationError("user_id", "does not reference an existing user")
		}
		return domain.EnrichedRating{}, fmt.Errorf("create rating: %w", err)
	}
	s.metrics.IncrementRatingWrite("create")
	s.logger.Debug().Int64("rating_id", rating.ID).Str("city", city).Msg("rating created")

	return s.enrich(ctx, rating), nil
}

// Get returns one rating with freshly looked-up events.
func (s *RatingService) Get(ctx context.Context, id int64) (domain.EnrichedRating, error) {
	rating, err := s.ratings.GetByID(ctx, id)
	if err != nil {
		return domain.EnrichedRating{}, s.notFound(err, "rating %d", id)
	}
	return s.enrich(ctx, rating), nil
}

// List returns every rating matching filter, each with events attached.
func (s *RatingService) List(ctx context.Context, filter RatingFilter) ([]domain.EnrichedRating, error) {
	if err := s.validate.Struct(filter); err != nil {
		return nil, validationError(err)
	}
	ratings, err := s.ratings.List(ctx, repository.RatingListFilters{
		RestaurantName: filter.RestaurantName,
		RestaurantType: filter.RestaurantType,
		MinRating:      filter.MinRating,
		MaxRating:      filter.MaxRating,
	})
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return s.enrichAll(ctx, ratings), nil
}

// Update applies the provided fields only. A changed address must still yield
// a city; otherwise nothing is written.
func (s *RatingService) Update(ctx context.Context, id int64, in UpdateRatingInput) (domain.EnrichedRating, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return domain.EnrichedRating{}, validationError(err)
	}

	current, err := s.ratings.GetByID(ctx, id)
	if err != nil {
		return domain.EnrichedRating{}, s.notFound(err, "rating %d", id)
	}
	if in.Empty() {
		return s.enrich(ctx, current), nil
	}

	params := repository.RatingUpdateParams{
		RestaurantName: in.RestaurantName,
		RestaurantType: in.RestaurantType,
		Value:          in.Rating,
		Meal:           in.Meal,
		Calories:       in.Calories,
		UserID:         in.UserID,
	}
	if in.RestaurantAddress != nil && *in.RestaurantAddress != current.RestaurantAddress {
		city, err := deriveCity(*in.RestaurantAddress)
		if err != nil {
			return domain.EnrichedRating{}, err
		}
		params.RestaurantAddress = in.RestaurantAddress
		params.City = &city
	}
	if err := s.ensureUser(ctx, in.UserID); err != nil {
		return domain.EnrichedRating{}, err
	}

	updated, err := s.ratings.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.EnrichedRating{}, newValidationError("user_id", "does not reference an existing user")
		}
		return domain.EnrichedRating{}, s.notFound(err, "rating %d", id)
	}
	s.metrics.IncrementRatingWrite("update")

	return s.enrich(ctx, updated), nil
}

// Delete removes a rating permanently.
func (s *RatingService) Delete(ctx context.Context, id int64) error {
	if err := s.ratings.Delete(ctx, id); err != nil {
		return s.notFound(err, "rating %d", id)
	}
	s.metrics.IncrementRatingWrite("delete")
	return nil
}

// Averages returns the mean rating of every restaurant name.
func (s *RatingService) Averages(ctx context.Context) ([]domain.RestaurantAverage, error) {
	averages, err := s.ratings.Averages(ctx)
	if err != nil {
		return nil, fmt.Errorf("average ratings: %w", err)
	}
	return averages, nil
}

// AverageByName returns the average of the first restaurant whose name
// contains name. No match is reported as ErrNotFound.
func (s *RatingService) AverageByName(ctx context.Context, name string) (domain.RestaurantAverage, error) {
	avg, err := s.ratings.AverageByName(ctx, name)
	if err != nil {
		return domain.RestaurantAverage{}, s.notFound(err, "restaurant %q", name)
	}
	return avg, nil
}

// UserRatings returns the enriched ratings of one user. An unknown user and a
// user without ratings are both reported as ErrNotFound.
func (s *RatingService) UserRatings(ctx context.Context, userID int64) ([]domain.EnrichedRating, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, s.notFound(err, "user %d", userID)
	}
	ratings, err := s.ratings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list ratings for user %d: %w", userID, err)
	}
	if len(ratings) == 0 {
		return nil, fmt.Errorf("ratings for user %d: %w", userID, ErrNotFound)
	}
	return s.enrichAll(ctx, ratings), nil
}

// deriveCity extracts the city from address and checks it fits the city column.
func deriveCity(address string) (string, error) {
	city, ok := domain.ExtractCity(address)
	if !ok {
		return "", newValidationError("restaurant_address", "could not extract city from address")
	}
	if utf8.RuneCountInString(city) > domain.MaxCityLength {
		return "", newValidationError("restaurant_address", fmt.Sprintf("city must be at most %d characters", domain.MaxCityLength))
	}
	return city, nil
}

func (s *RatingService) ensureUser(ctx context.Context, userID *int64) error {
	if userID == nil {
		return nil
	}
	if _, err := s.users.GetByID(ctx, *userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newValidationError("user_id", "does not reference an existing user")
		}
		return fmt.Errorf("resolve user %d: %w", *userID, err)
	}
	return nil
}

// notFound maps repository.ErrNotFound to ErrNotFound and wraps anything else.
func (s *RatingService) notFound(err error, format string, args ...interface{}) error {
	subject := fmt.Sprintf(format, args...)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", subject, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", subject, err)
}

func (s *RatingService) enrich(ctx context.Context, rating domain.Rating) domain.EnrichedRating {
	return domain.EnrichedRating{
		Rating: rating,
		Events: s.events.NearbyEvents(ctx, rating.City),
	}
}

func (s *RatingService) enrichAll(ctx context.Context, ratings []domain.Rating) []domain.EnrichedRating {
	out := make([]domain.EnrichedRating, len(ratings))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, rating := range ratings {
		g.Go(func() error {
			out[i] = s.enrich(ctx, rating)
			return nil
		})
	}
	// Enrichment fails open, so Wait only joins the workers.
	g.Wait()
	return out
}
