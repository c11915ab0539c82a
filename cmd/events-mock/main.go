package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/restaurant-ratings/internal/logging"
)

// mockEvent mirrors the subset of a Discovery API event the service reads.
type mockEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime,omitempty"`
		} `json:"start"`
	} `json:"dates"`
	Embedded struct {
		Venues []struct {
			Name string `json:"name"`
		} `json:"venues"`
	} `json:"_embedded"`
}

type searchResponse struct {
	Embedded *struct {
		Events []mockEvent `json:"events"`
	} `json:"_embedded,omitempty"`
	Page struct {
		TotalElements int `json:"totalElements"`
	} `json:"page"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-events.json", "path to mock data file keyed by city")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	logger, err := logging.New("events-mock", "info", "console", os.Stderr)
	if err != nil {
		panic(err)
	}

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.Fatal().Err(err).Msg("read mock data")
	}

	var byCity map[string][]mockEvent
	if err := json.Unmarshal(file, &byCity); err != nil {
		logger.Fatal().Err(err).Msg("parse mock data")
	}
	byID := make(map[string]mockEvent)
	lowered := make(map[string][]mockEvent, len(byCity))
	for city, evts := range byCity {
		lowered[strings.ToLower(city)] = evts
		for _, evt := range evts {
			byID[evt.ID] = evt
		}
	}

	r := chi.NewRouter()
	if *verbose {
		r.Use(logging.RequestLogger(logger))
	}
	r.Get("/events.json", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("apikey") == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		evts := lowered[strings.ToLower(req.URL.Query().Get("city"))]
		if size, err := strconv.Atoi(req.URL.Query().Get("size")); err == nil && size >= 0 && len(evts) > size {
			evts = evts[:size]
		}
		var resp searchResponse
		resp.Page.TotalElements = len(evts)
		if len(evts) > 0 {
			resp.Embedded = &struct {
				Events []mockEvent `json:"events"`
			}{Events: evts}
		}
		writeJSON(w, logger, resp)
	})
	r.Get("/events/{file}", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSuffix(chi.URLParam(req, "file"), ".json")
		evt, ok := byID[id]
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		writeJSON(w, logger, evt)
	})

	addr := ":" + *port
	logger.Info().Str("addr", addr).Int("cities", len(byCity)).Int("events", len(byID)).Msg("mock events listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error().Err(err).Msg("encode response")
	}
}
