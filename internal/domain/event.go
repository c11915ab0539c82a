package domain

// Event is the summary of an upcoming event shown next to a rating.
type Event struct {
	ID   string
	Name string
	URL  string
}

// EventDetail extends the summary with scheduling and venue information.
type EventDetail struct {
	Event
	LocalDate string
	LocalTime string
	Venues    []string
}
