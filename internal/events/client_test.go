package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchFixture = `{
  "_embedded": {
    "events": [
      {"id": "e1", "name": "Jazz Night", "url": "https://tm.example/e1"},
      {"id": "e2", "name": "Rock Show", "url": "https://tm.example/e2"},
      {"id": "e3", "name": "Folk Fest", "url": "https://tm.example/e3"},
      {"id": "e4", "name": "Late Set", "url": "https://tm.example/e4"}
    ]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(srv.URL+"/discovery/v2/", "key-123", 2*time.Second, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestHTTPClientSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discovery/v2/events.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "key-123", q.Get("apikey"))
		assert.Equal(t, "Springfield", q.Get("city"))
		assert.Equal(t, "3", q.Get("size"))
		assert.Equal(t, "date,asc", q.Get("sort"))
		assert.Equal(t, "Music", q.Get("classificationName"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	})

	got, err := client.Search(context.Background(), SearchParams{City: "Springfield", Size: 3, Classification: "Music"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "Jazz Night", got[0].Name)
	assert.Equal(t, "https://tm.example/e1", got[0].URL)
	assert.Equal(t, "e3", got[2].ID)
}

func TestHTTPClientSearchOmitsEmptyClassification(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["classificationName"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{}`))
	})

	got, err := client.Search(context.Background(), SearchParams{City: "Springfield", Size: 3})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHTTPClientSearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"_embedded": [`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Search(context.Background(), SearchParams{City: "Springfield", Size: 3})
			require.Error(t, err)
		})
	}
}

func TestHTTPClientDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/discovery/v2/events/e1.json":
			_, _ = w.Write([]byte(`{
			  "id": "e1", "name": "Jazz Night", "url": "https://tm.example/e1",
			  "dates": {"start": {"localDate": "2026-11-01", "localTime": "20:00:00"}},
			  "_embedded": {"venues": [{"name": "Blue Room"}, {"name": ""}]}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	detail, err := client.Details(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", detail.Name)
	assert.Equal(t, "2026-11-01", detail.LocalDate)
	assert.Equal(t, "20:00:00", detail.LocalTime)
	assert.Equal(t, []string{"Blue Room"}, detail.Venues)

	_, err = client.Details(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNewHTTPClientRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPClient("discovery/v2", "key", time.Second, zerolog.Nop())
	require.Error(t, err)
}
