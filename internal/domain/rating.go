package domain

import "time"

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Rating represents a single restaurant visit as stored in the database.
type Rating struct {
	ID                int64
	RestaurantName    string
	RestaurantType    string
	RestaurantAddress string
	Value             int
	Meal              string
	Calories          int
	City              string
	UserID            *int64
	DatePosted        time.Time
}

// EnrichedRating pairs a stored rating with the events found near its city.
// Events are computed per request and never written back.
type EnrichedRating struct {
	Rating Rating
	Events []Event
}

// RestaurantAverage is the mean rating of every visit to one restaurant name.
type RestaurantAverage struct {
	RestaurantName string
	Average        float64
}

// ValidRating reports whether v is an accepted score.
func ValidRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}
