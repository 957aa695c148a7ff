// Package status exposes a running pipeline over HTTP.
package status

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"adcpipe/core"
	"adcpipe/protocol"
)

// Source is the read side of a pipeline
type Source interface {
	Status() core.Status
	Stats() core.Stats
	Errors(dst []core.ErrorRecord) []core.ErrorRecord
	History(dst []core.Sample) []core.Sample
	ClearErrors()
}

// ErrorJSON is an error record as served
type ErrorJSON struct {
	Code      uint8  `json:"code"`
	Name      string `json:"name"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp uint32 `json:"timestamp_ms"`
}

// StatusJSON is the body of GET /status
type StatusJSON struct {
	Version   string     `json:"version"`
	Running   bool       `json:"running"`
	UptimeMS  uint32     `json:"uptime_ms"`
	Consumed  uint32     `json:"consumed"`
	Dropped   uint32     `json:"dropped"`
	Retained  int        `json:"retained"`
	Capacity  int        `json:"capacity"`
	Errors    uint32     `json:"errors"`
	Critical  bool       `json:"critical"`
	LastError *ErrorJSON `json:"last_error,omitempty"`
}

// SampleJSON is one retained sample
type SampleJSON struct {
	Raw   uint16 `json:"raw"`
	MV    uint32 `json:"mv"`
	Volts string `json:"volts"`
}

// HistoryJSON is the body of GET /history
type HistoryJSON struct {
	Count   int          `json:"count"`
	MinMV   uint32       `json:"min_mv"`
	MaxMV   uint32       `json:"max_mv"`
	MeanMV  uint32       `json:"mean_mv"`
	Samples []SampleJSON `json:"samples"`
}

func errorJSON(r core.ErrorRecord) ErrorJSON {
	return ErrorJSON{
		Code:      uint8(r.Code),
		Name:      r.Code.String(),
		Severity:  r.Severity.String(),
		Message:   r.Message,
		Timestamp: r.Timestamp,
	}
}

// NewRouter builds the routes:
//
//	GET  /status
//	GET  /errors
//	POST /errors/clear
//	GET  /history
func NewRouter(src Source) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		st := src.Status()
		body := StatusJSON{
			Version:  protocol.Version,
			Running:  st.Running,
			UptimeMS: st.UptimeMS,
			Consumed: st.Consumed,
			Dropped:  st.Dropped,
			Retained: st.Retained,
			Capacity: st.Capacity,
			Errors:   st.Errors,
			Critical: st.Critical,
		}
		if st.Errors > 0 {
			last := errorJSON(st.LastError)
			body.LastError = &last
		}
		writeJSON(w, body)
	})
	r.Get("/errors", func(w http.ResponseWriter, r *http.Request) {
		records := src.Errors(nil)
		out := make([]ErrorJSON, 0, len(records))
		for _, rec := range records {
			out = append(out, errorJSON(rec))
		}
		writeJSON(w, out)
	})
	r.Post("/errors/clear", func(w http.ResponseWriter, r *http.Request) {
		src.ClearErrors()
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
		st := src.Stats()
		samples := src.History(nil)
		body := HistoryJSON{
			Count:   st.Count,
			MinMV:   st.MinMV,
			MaxMV:   st.MaxMV,
			MeanMV:  st.MeanMV,
			Samples: make([]SampleJSON, 0, len(samples)),
		}
		for _, s := range samples {
			body.Samples = append(body.Samples, SampleJSON{
				Raw:   s.Raw,
				MV:    s.MilliVolts,
				Volts: protocol.FormatVolts(s.MilliVolts),
			})
		}
		writeJSON(w, body)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
