package web

import (
	"encoding/json"
	"net/http"

	"github.com/sweeney/proxtrend/internal/dashboard"
)

// ResultJSON is the response to an operator control.
type ResultJSON struct {
	State    string  `json:"state"`
	Label    string  `json:"label,omitempty"`
	Cursor   int     `json:"cursor"`
	PausedAt float64 `json:"paused_at"`
	ViewTime float64 `json:"view_time"`
}

// ErrorJSON is the body of a failed request.
type ErrorJSON struct {
	Error string `json:"error"`
}

func formatResult(res dashboard.Result) []byte {
	rj := ResultJSON{
		State:  string(res.State),
		Label:  res.Label(),
		Cursor: -1,
	}
	if res.Label() != "" {
		rj.Cursor = res.View.Cursor
		rj.PausedAt = res.View.PausedAt
		rj.ViewTime = res.View.ViewTime
	}
	data, _ := json.Marshal(rj)
	return data
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	data, _ := json.Marshal(ErrorJSON{Error: msg})
	w.Write(data)
}
