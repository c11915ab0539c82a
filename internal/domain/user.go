package domain

import "time"

// User owns zero or more ratings.
type User struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}
