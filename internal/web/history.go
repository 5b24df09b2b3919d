package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ppiankov/rangerwatch/internal/history"
)

const defaultHistoryLimit = 50

// HistoryHandler returns the most recent check cycle summaries as JSON.
func HistoryHandler(hs *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := hs.List(limitParam(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, summaries)
	}
}

// TrendHandler returns recorded outcomes of one check as JSON.
func TrendHandler(hs *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check := r.URL.Query().Get("check")
		if check == "" {
			http.Error(w, "check query parameter is required", http.StatusBadRequest)
			return
		}

		points, err := hs.Trend(check, limitParam(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, points)
	}
}

func limitParam(r *http.Request) int {
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			return n
		}
	}
	return defaultHistoryLimit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
