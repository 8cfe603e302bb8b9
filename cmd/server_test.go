//go:build !integration

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-finder/internal/export"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/monitoring"
	"github.com/sells-group/contact-finder/internal/session"
	"github.com/sells-group/contact-finder/internal/store"
	"github.com/sells-group/contact-finder/internal/stream"
)

func newTestServer(t *testing.T, mgr *session.Manager, st store.Store) http.Handler {
	t.Helper()
	s := &server{
		sessions:      mgr,
		store:         st,
		publisher:     stream.NewPublisher(time.Second, nil),
		lookupReady:   true,
		lookbackHours: 24,
	}
	if st != nil {
		s.collector = monitoring.NewCollector(st, mgr)
	}
	return buildRouter(s)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func startSearch(t *testing.T, h http.Handler, domains, roles []string) string {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/search", searchRequest{Domains: domains, Roles: roles})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id, _ := decodeBody(t, rr)["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func streamEvents(t *testing.T, h http.Handler, id string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/search/stream/"+id, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req.WithContext(ctx))

	var events []map[string]any
	sc := bufio.NewScanner(strings.NewReader(rr.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return rr, events
}

func eventTypes(events []map[string]any) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev["type"].(string))
	}
	return out
}

func TestRouter_Health(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestRouter_SearchAndStream(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	id := startSearch(t, h, []string{"acme.com"}, []string{"CFO", "CTO"})
	rr, events := streamEvents(t, h, id)

	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, []string{"init", "progress", "result", "progress", "result", "complete"}, eventTypes(events))
	assert.Equal(t, id, events[0]["session_id"])
	assert.EqualValues(t, 2, events[0]["total"])
	assert.Equal(t, "CFO", events[1]["role"])

	last := events[len(events)-1]
	assert.EqualValues(t, 2, last["processed"])
	assert.Len(t, last["results"], 2)

	// Delivered sessions are evicted.
	rr = doJSON(t, h, http.MethodGet, "/search/stream/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_SearchValidation(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	tests := []struct {
		name string
		body any
		want string
	}{
		{name: "bad json", body: "{not json", want: "invalid request body"},
		{name: "no domains", body: searchRequest{Domains: []string{" "}, Roles: []string{"CFO"}}, want: "no domains provided"},
		{name: "no roles", body: searchRequest{Domains: []string{"acme.com"}}, want: "no roles provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, decodeBody(t, rr)["error"], tt.want)
		})
	}
}

func TestRouter_BodyTooLarge(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	big := `{"domains":["` + strings.Repeat("a", maxSearchBody) + `"],"roles":["CFO"]}`
	rr := doJSON(t, h, http.MethodPost, "/search", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "request body too large", decodeBody(t, rr)["error"])

	big = `{"results":[{"domain":"` + strings.Repeat("a", maxExportBody) + `"}]}`
	rr = doJSON(t, h, http.MethodPost, "/export-csv", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/stop-search", `{"session_id":"`+strings.Repeat("a", maxSearchBody)+`"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_SearchLookupNotConfigured(t *testing.T) {
	mgr := newTestManager(t, fakeRunner(nil), nil)
	h := buildRouter(&server{sessions: mgr, publisher: stream.NewPublisher(time.Second, nil)})

	rr := doJSON(t, h, http.MethodPost, "/search", searchRequest{Domains: []string{"acme.com"}, Roles: []string{"CFO"}})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Empty(t, mgr.Live())
}

func TestRouter_StreamUnknownSession(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	rr := doJSON(t, h, http.MethodGet, "/search/stream/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "invalid session id")
}

func TestRouter_StreamSecondConsumerConflicts(t *testing.T) {
	gate := make(chan struct{})
	mgr := newTestManager(t, fakeRunner(gate), nil)
	h := newTestServer(t, mgr, nil)

	id := startSearch(t, h, []string{"acme.com"}, []string{"CFO"})
	first, err := mgr.Stream(id)
	require.NoError(t, err)

	rr := doJSON(t, h, http.MethodGet, "/search/stream/"+id, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	first.Close()
	close(gate)
}

func TestRouter_StopSearch(t *testing.T) {
	gate := make(chan struct{})
	mgr := newTestManager(t, fakeRunner(gate), nil)
	h := newTestServer(t, mgr, nil)

	id := startSearch(t, h, []string{"acme.com", "globex.com"}, []string{"CFO"})

	rr := doJSON(t, h, http.MethodPost, "/stop-search", map[string]string{"session_id": id})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody(t, rr)["success"])
	close(gate)

	_, events := streamEvents(t, h, id)
	assert.Equal(t, []string{"init", "stopped"}, eventTypes(events))
	assert.EqualValues(t, 0, events[1]["processed"])
	assert.Equal(t, []any{}, events[1]["results"])
}

func TestRouter_StopSearchAlwaysOK(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	for _, body := range []any{map[string]string{"session_id": "unknown"}, "{bad", nil} {
		rr := doJSON(t, h, http.MethodPost, "/stop-search", body)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, true, decodeBody(t, rr)["success"])
	}
}

var exportRows = []model.ContactRow{
	{Domain: "acme.com", Name: "Jane Doe", Title: "CFO", Email: "jane@acme.com", LinkedInURL: "https://www.linkedin.com/in/janedoe", MatchedRole: "CFO"},
}

func TestRouter_ExportCSV(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	rr := doJSON(t, h, http.MethodPost, "/export-csv", exportRequest{Results: exportRows})
	require.Equal(t, http.StatusOK, rr.Code)
	csv, _ := decodeBody(t, rr)["csv"].(string)
	assert.Equal(t,
		"domain,name,title,email,linkedin_url,matched_role\n"+
			"acme.com,Jane Doe,CFO,jane@acme.com,https://www.linkedin.com/in/janedoe,CFO\n",
		csv)

	rr = doJSON(t, h, http.MethodPost, "/export-csv", exportRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "no results to export")
}

func TestRouter_ExportXLSX(t *testing.T) {
	h := newTestServer(t, newTestManager(t, fakeRunner(nil), nil), nil)

	rr := doJSON(t, h, http.MethodPost, "/export-xlsx", exportRequest{Results: exportRows})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, export.ContentTypeXLSX, rr.Header().Get("Content-Type"))

	f, err := xlsx.OpenBinary(rr.Body.Bytes())
	require.NoError(t, err)
	sheet := f.Sheet[export.SheetName]
	require.NotNil(t, sheet)
	assert.Equal(t, "Jane Doe", sheet.Rows[1].Cells[1].String())
}

func TestRouter_SessionsHistory(t *testing.T) {
	st := newTestStore(t)
	mgr := newTestManager(t, fakeRunner(nil), st)
	h := newTestServer(t, mgr, st)

	id := startSearch(t, h, []string{"acme.com"}, []string{"CFO"})
	streamEvents(t, h, id)

	// The finish hook runs on the runner goroutine; wait for it.
	require.NoError(t, mgr.Shutdown(context.Background()))

	rr := doJSON(t, h, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Live    []model.SessionRecord `json:"live"`
		History []model.SessionRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.History, 1)
	assert.Equal(t, id, list.History[0].ID)
	assert.Equal(t, model.SessionCompleted, list.History[0].Status)

	rr = doJSON(t, h, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rec model.SessionRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, 1, rec.Processed)
	require.Len(t, rec.Results, 1)
	assert.Equal(t, "jane@acme.com", rec.Results[0].Email)

	rr = doJSON(t, h, http.MethodGet, "/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/monitoring/snapshot", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeBody(t, rr)
	assert.EqualValues(t, 1, snap["sessions_total"])
	assert.EqualValues(t, 1, snap["emails_found"])
}

func TestRouter_LiveSessionWithoutStore(t *testing.T) {
	gate := make(chan struct{})
	mgr := newTestManager(t, fakeRunner(gate), nil)
	h := newTestServer(t, mgr, nil)

	id := startSearch(t, h, []string{"acme.com"}, []string{"CFO"})

	rr := doJSON(t, h, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(model.SessionRunning), decodeBody(t, rr)["status"])

	rr = doJSON(t, h, http.MethodGet, "/monitoring/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	close(gate)
}
