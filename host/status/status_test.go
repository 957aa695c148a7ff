package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"adcpipe/core"
)

type fakeSource struct {
	status  core.Status
	records []core.ErrorRecord
	samples []core.Sample
	cleared bool
}

func (f *fakeSource) Status() core.Status { return f.status }

func (f *fakeSource) Stats() core.Stats {
	return core.Stats{Count: len(f.samples), MinMV: 0, MaxMV: 3300, MeanMV: 1650}
}

func (f *fakeSource) Errors(dst []core.ErrorRecord) []core.ErrorRecord {
	return append(dst[:0], f.records...)
}

func (f *fakeSource) History(dst []core.Sample) []core.Sample {
	return append(dst[:0], f.samples...)
}

func (f *fakeSource) ClearErrors() { f.cleared = true }

func get(t *testing.T, h http.Handler, method, path string, v interface{}) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if v != nil && rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
			t.Fatalf("%s %s: bad JSON: %v", method, path, err)
		}
	}
	return rec.Code
}

func TestStatusRoute(t *testing.T) {
	rec := core.ErrorRecord{Code: core.ErrTransferFailed, Severity: core.SeverityCritical, Message: "bus", Timestamp: 12}
	src := &fakeSource{status: core.Status{Running: true, UptimeMS: 4000, Consumed: 10, Dropped: 2, Errors: 1, Critical: true, LastError: rec}}
	h := NewRouter(src)

	var body StatusJSON
	if code := get(t, h, http.MethodGet, "/status", &body); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !body.Running || body.UptimeMS != 4000 || body.Consumed != 10 || body.Dropped != 2 || !body.Critical {
		t.Errorf("Unexpected status body %+v", body)
	}
	if body.LastError == nil || body.LastError.Name != "DMA transfer failed" || body.LastError.Code != 0x02 {
		t.Errorf("Unexpected last error %+v", body.LastError)
	}
}

func TestStatusOmitsLastErrorWhenClean(t *testing.T) {
	h := NewRouter(&fakeSource{})
	var body map[string]interface{}
	get(t, h, http.MethodGet, "/status", &body)
	if _, ok := body["last_error"]; ok {
		t.Error("last_error should be omitted without errors")
	}
}

func TestErrorsRoutes(t *testing.T) {
	src := &fakeSource{records: []core.ErrorRecord{
		{Code: core.ErrOutputFailed, Severity: core.SeverityError, Message: "a"},
		{Code: core.ErrBufferOverflow, Severity: core.SeverityWarning, Message: "b"},
	}}
	h := NewRouter(src)

	var body []ErrorJSON
	get(t, h, http.MethodGet, "/errors", &body)
	if len(body) != 2 || body[1].Name != "Buffer overflow" {
		t.Errorf("Unexpected errors body %+v", body)
	}

	if code := get(t, h, http.MethodGet, "/errors/clear", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET on clear should be rejected, got %d", code)
	}
	if code := get(t, h, http.MethodPost, "/errors/clear", nil); code != http.StatusOK || !src.cleared {
		t.Errorf("POST clear failed: code=%d cleared=%v", code, src.cleared)
	}
}

func TestHistoryRoute(t *testing.T) {
	src := &fakeSource{samples: []core.Sample{{Raw: 0, MilliVolts: 0}, {Raw: 2048, MilliVolts: 1650}}}
	h := NewRouter(src)

	var body HistoryJSON
	get(t, h, http.MethodGet, "/history", &body)
	if body.Count != 2 || len(body.Samples) != 2 {
		t.Fatalf("Unexpected history body %+v", body)
	}
	if body.Samples[1].Volts != "1.650" || body.Samples[1].Raw != 2048 {
		t.Errorf("Unexpected sample %+v", body.Samples[1])
	}
}
