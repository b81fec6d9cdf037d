package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string       `json:"event,omitempty"`
	Controller      string       `json:"controller"`
	ControllerLabel string       `json:"controller_label,omitempty"`
	Bed             string       `json:"bed"`
	Tags            TagsJSON     `json:"tags"`
	State           string       `json:"state"`
	Label           string       `json:"label,omitempty"`
	Cursor          int          `json:"cursor"`
	PausedAt        float64      `json:"paused_at"`
	ViewTime        float64      `json:"view_time"`
	Prox1           string       `json:"prox1"`
	Prox2           string       `json:"prox2"`
	Ready           bool         `json:"ready"`
	Ticks           uint64       `json:"ticks"`
	HistorySamples  int          `json:"history_samples"`
	Source          SourceStatus `json:"source"`
	Counts          CountsJSON   `json:"edge_counts"`
	Notices         []NoticeJSON `json:"notices"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	StartTime       string       `json:"start_time"`
	Timestamp       string       `json:"timestamp"`
	Config          ConfigJSON   `json:"config"`
}

// TagsJSON names the sampled tags.
type TagsJSON struct {
	Prox1 string `json:"prox1,omitempty"`
	Prox2 string `json:"prox2,omitempty"`
}

// SourceStatus reports the controller connection.
type SourceStatus struct {
	Kind      string `json:"kind,omitempty"`
	Connected bool   `json:"connected"`
}

// CountsJSON is the JSON representation of edge counts.
type CountsJSON struct {
	Prox1Rising  int `json:"prox1_rising"`
	Prox1Falling int `json:"prox1_falling"`
	Prox2Rising  int `json:"prox2_rising"`
	Prox2Falling int `json:"prox2_falling"`
	Total        int `json:"total"`
}

// NoticeJSON is the JSON representation of an operator notice.
type NoticeJSON struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// ConfigJSON is the JSON representation of dashboard config.
type ConfigJSON struct {
	IntervalMs float64 `json:"interval_ms"`
	WindowMs   float64 `json:"window_ms"`
	RedrawMs   float64 `json:"redraw_ms"`
	DebounceMs float64 `json:"debounce_ms"`
	HTTPAddr   string  `json:"http_addr"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if !snap.Selected() {
		state = "IDLE"
	}

	notices := make([]NoticeJSON, 0, len(snap.Notices))
	for _, n := range snap.Notices {
		notices = append(notices, NoticeJSON{
			Time:    n.Time.UTC().Format(time.RFC3339),
			Message: n.Message,
		})
	}

	return StatusInner{
		Controller:      snap.Controller,
		ControllerLabel: snap.ControllerLabel,
		Bed:             snap.Tags.Bed,
		Tags:            TagsJSON{Prox1: snap.Tags.Prox1, Prox2: snap.Tags.Prox2},
		State:           state,
		Label:           snap.Label(),
		Cursor:          snap.Cursor,
		PausedAt:        snap.PausedAt,
		ViewTime:        snap.ViewTime,
		Prox1:           orUnknown(string(snap.Prox1)),
		Prox2:           orUnknown(string(snap.Prox2)),
		Ready:           snap.Baselined,
		Ticks:           snap.Ticks,
		HistorySamples:  snap.HistoryLen,
		Source:          SourceStatus{Kind: snap.SourceKind, Connected: snap.SourceConnected},
		Counts: CountsJSON{
			Prox1Rising:  snap.Counts.Prox1Rising,
			Prox1Falling: snap.Counts.Prox1Falling,
			Prox2Rising:  snap.Counts.Prox2Rising,
			Prox2Falling: snap.Counts.Prox2Falling,
			Total:        snap.Counts.Total(),
		},
		Notices:       notices,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			IntervalMs: ms(snap.Config.Interval),
			WindowMs:   ms(snap.Config.Window),
			RedrawMs:   ms(snap.Config.Redraw),
			DebounceMs: ms(snap.Config.Debounce),
			HTTPAddr:   snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatEvent returns compact JSON status tagged with event, for websocket
// push.
func FormatEvent(snap Snapshot, event string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
