package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
	"github.com/Clark-Hu/restaurant-ratings/internal/repository"
)

// memoryRatings is an in-memory RatingStore for service tests.
type memoryRatings struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]domain.Rating
	updates int
	failAll error
}

func newMemoryRatings() *memoryRatings {
	return &memoryRatings{rows: make(map[int64]domain.Rating)}
}

func (m *memoryRatings) Create(ctx context.Context, p repository.RatingCreateParams) (domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return domain.Rating{}, m.failAll
	}
	m.nextID++
	r := domain.Rating{
		ID:                m.nextID,
		RestaurantName:    p.RestaurantName,
		RestaurantType:    p.RestaurantType,
		RestaurantAddress: p.RestaurantAddress,
		Value:             p.Value,
		Meal:              p.Meal,
		Calories:          p.Calories,
		City:              p.City,
		UserID:            p.UserID,
		DatePosted:        time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	m.rows[r.ID] = r
	return r, nil
}

func (m *memoryRatings) GetByID(ctx context.Context, id int64) (domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return domain.Rating{}, m.failAll
	}
	r, ok := m.rows[id]
	if !ok {
		return domain.Rating{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memoryRatings) sorted() []domain.Rating {
	out := make([]domain.Rating, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryRatings) List(ctx context.Context, f repository.RatingListFilters) ([]domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := make([]domain.Rating, 0)
	for _, r := range m.sorted() {
		if f.RestaurantName != nil && !strings.Contains(strings.ToLower(r.RestaurantName), strings.ToLower(*f.RestaurantName)) {
			continue
		}
		if f.RestaurantType != nil && !strings.Contains(strings.ToLower(r.RestaurantType), strings.ToLower(*f.RestaurantType)) {
			continue
		}
		if f.MinRating != nil && r.Value < *f.MinRating {
			continue
		}
		if f.MaxRating != nil && r.Value > *f.MaxRating {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRatings) ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Rating, 0)
	for _, r := range m.sorted() {
		if r.UserID != nil && *r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRatings) Update(ctx context.Context, id int64, p repository.RatingUpdateParams) (domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domain.Rating{}, repository.ErrNotFound
	}
	m.updates++
	if p.RestaurantName != nil {
		r.RestaurantName = *p.RestaurantName
	}
	if p.RestaurantType != nil {
		r.RestaurantType = *p.RestaurantType
	}
	if p.RestaurantAddress != nil {
		r.RestaurantAddress = *p.RestaurantAddress
	}
	if p.Value != nil {
		r.Value = *p.Value
	}
	if p.Meal != nil {
		r.Meal = *p.Meal
	}
	if p.Calories != nil {
		r.Calories = *p.Calories
	}
	if p.City != nil {
		r.City = *p.City
	}
	if p.UserID != nil {
		r.UserID = p.UserID
	}
	m.rows[id] = r
	return r, nil
}

func (m *memoryRatings) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryRatings) Averages(ctx context.Context) ([]domain.RestaurantAverage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	return []domain.RestaurantAverage{}, nil
}

func (m *memoryRatings) AverageByName(ctx context.Context, name string) (domain.RestaurantAverage, error) {
	return domain.RestaurantAverage{}, repository.ErrNotFound
}

type memoryUsers map[int64]domain.User

func (m memoryUsers) GetByID(ctx context.Context, id int64) (domain.User, error) {
	u, ok := m[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

// recordingFinder returns fixed events and records the cities it was asked about.
type recordingFinder struct {
	mu     sync.Mutex
	events []domain.Event
	cities []string
}

func (f *recordingFinder) NearbyEvents(ctx context.Context, city string) []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities = append(f.cities, city)
	if f.events == nil {
		return []domain.Event{}
	}
	return f.events
}
