package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"converter/internal/domain"
	"converter/internal/poller"
	"converter/internal/providers/convert"
	"converter/internal/session"
)

// fakeService mimics the remote conversion API.
type fakeService struct {
	mu         sync.Mutex
	batchCalls int
	gate       chan struct{}
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/convert", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ URL string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(body.URL, "private"):
			_, _ = w.Write([]byte(`{"status":"failed","error":"Video is private"}`))
			return
		case strings.Contains(body.URL, "broken"):
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid URL"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","title":"Track A","download_url":"/api/download/a.mp3"}`))
	})
	mux.HandleFunc("/api/convert/batch", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.batchCalls++
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"job_id":"job-7"}`))
	})
	mux.HandleFunc("/api/status/job-7", func(w http.ResponseWriter, r *http.Request) {
		if f.gate != nil {
			<-f.gate
		}
		_, _ = w.Write([]byte(`{"status":"completed","progress":100,"results":[
			{"url":"https://youtu.be/a","status":"success","file_id":"a.mp3"},
			{"url":"https://youtu.be/b","status":"failed","error":"Video unavailable"}]}`))
	})
	mux.HandleFunc("/api/download/a.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Disposition", `attachment; filename="Track A.mp3"`)
		_, _ = w.Write([]byte("ID3-audio"))
	})
	return mux
}

func newTestApp(t *testing.T, svc *fakeService) (*App, http.Handler) {
	t.Helper()
	remote := httptest.NewServer(svc.handler(t))
	t.Cleanup(remote.Close)

	client := convert.NewClient(convert.Options{BaseURL: remote.URL, RequestTimeout: 2 * time.Second})
	mgr := session.NewManager(session.Options{
		Dispatcher: client,
		Poller:     poller.New(client, 5*time.Millisecond),
	})
	t.Cleanup(mgr.Close)

	app := NewApp(mgr, client, nil)
	r := chi.NewRouter()
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/session", app.GetSession)
	r.Post("/v1/session", app.SubmitSession)
	r.Delete("/v1/session", app.CancelSession)
	r.Get("/v1/downloads/*", app.Download)
	return app, r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) domain.Session {
	t.Helper()
	var s domain.Session
	if err := json.NewDecoder(rr.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return s
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var payload struct {
		Error errorBody `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error
}

func waitSettled(t *testing.T, app *App) domain.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s, err := app.Sessions.Wait(ctx)
	if err != nil {
		t.Fatalf("session never settled: %v", err)
	}
	return s
}

func TestHealth(t *testing.T) {
	_, h := newTestApp(t, &fakeService{})
	rr := do(t, h, http.MethodGet, "/v1/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" || body["phase"] != "idle" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSubmitSingleSettlesImmediately(t *testing.T) {
	_, h := newTestApp(t, &fakeService{})
	rr := do(t, h, http.MethodPost, "/v1/session", `{"mode":"single","url":"https://youtu.be/a","format":"MP3","quality":"320"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: got %d, want 202 (%s)", rr.Code, rr.Body.String())
	}
	s := decodeSession(t, rr)
	if s.Phase != domain.PhaseSucceeded || s.Item == nil {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Item.Title != "Track A" || s.Item.DownloadRef != "/api/download/a.mp3" {
		t.Fatalf("unexpected item: %+v", s.Item)
	}
	if s.Request.Format != domain.FormatMP3 {
		t.Fatalf("format = %q, want mp3", s.Request.Format)
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{"malformed json", `{"mode":`, http.StatusBadRequest, "bad_request", "invalid payload"},
		{"unknown mode", `{"mode":"album","url":"https://youtu.be/a"}`, http.StatusUnprocessableEntity, "validation", "unsupported mode"},
		{"invalid url", `{"mode":"single","url":"https://vimeo.com/1"}`, http.StatusUnprocessableEntity, "validation", "Invalid YouTube URL"},
		{"invalid playlist", `{"mode":"playlist","url":"nope"}`, http.StatusUnprocessableEntity, "validation", "Invalid playlist URL"},
		{"empty batch", `{"mode":"batch","batch":"foo\nbar"}`, http.StatusUnprocessableEntity, "validation", "Enter valid YouTube URLs"},
		{"bad quality", `{"mode":"single","url":"https://youtu.be/a","quality":"128"}`, http.StatusUnprocessableEntity, "validation", "unsupported quality"},
		{"service rejects", `{"mode":"single","url":"https://youtu.be/broken"}`, http.StatusBadGateway, "dispatch_failed", "Invalid URL"},
		{"item fails", `{"mode":"single","url":"https://youtu.be/private"}`, http.StatusAccepted, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, h := newTestApp(t, &fakeService{})
			rr := do(t, h, http.MethodPost, "/v1/session", tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("unexpected status code: got %d, want %d (%s)", rr.Code, tc.wantCode, rr.Body.String())
			}
			if tc.wantKind == "" {
				return
			}
			e := decodeError(t, rr)
			if e.Code != tc.wantKind || !strings.Contains(e.Message, tc.wantMsg) {
				t.Fatalf("unexpected error body: %+v", e)
			}
		})
	}
}

func TestSubmitSingleItemFailureIsReported(t *testing.T) {
	_, h := newTestApp(t, &fakeService{})
	rr := do(t, h, http.MethodPost, "/v1/session", `{"mode":"single","url":"https://youtu.be/private"}`)
	s := decodeSession(t, rr)
	if s.Phase != domain.PhaseFailed || s.Item == nil || s.Item.Error != "Video is private" {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestSubmitBatchPollsToCompletion(t *testing.T) {
	svc := &fakeService{}
	app, h := newTestApp(t, svc)
	rr := do(t, h, http.MethodPost, "/v1/session", `{"mode":"batch","batch":"https://youtu.be/a\nnot-a-url\n\nhttps://youtu.be/b"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: got %d, want 202 (%s)", rr.Code, rr.Body.String())
	}
	s := decodeSession(t, rr)
	if len(s.Rejected) != 1 || s.Rejected[0] != "not-a-url" {
		t.Fatalf("rejected = %v", s.Rejected)
	}
	if s.Job == nil || s.Job.ID != "job-7" || len(s.Job.Items) != 2 {
		t.Fatalf("unexpected job: %+v", s.Job)
	}

	final := waitSettled(t, app)
	if final.Phase != domain.PhasePartiallyFailed {
		t.Fatalf("final phase = %s", final.Phase)
	}

	rr = do(t, h, http.MethodGet, "/v1/session", "")
	got := decodeSession(t, rr)
	if got.Job.Items[0].DownloadRef != "/api/download/a.mp3" || got.Job.Items[1].Error != "Video unavailable" {
		t.Fatalf("unexpected items: %+v", got.Job.Items)
	}
}

func TestSubmitBusyAndCancel(t *testing.T) {
	svc := &fakeService{gate: make(chan struct{})}
	_, h := newTestApp(t, svc)
	t.Cleanup(func() { close(svc.gate) })

	body := `{"mode":"batch","urls":["https://youtu.be/a","https://youtu.be/b"]}`
	if rr := do(t, h, http.MethodPost, "/v1/session", body); rr.Code != http.StatusAccepted {
		t.Fatalf("first submit: %d", rr.Code)
	}
	rr := do(t, h, http.MethodPost, "/v1/session", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("unexpected status code: got %d, want 409", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "busy" {
		t.Fatalf("unexpected error body: %+v", e)
	}

	rr = do(t, h, http.MethodDelete, "/v1/session", "")
	s := decodeSession(t, rr)
	if s.Phase != domain.PhaseFailed || s.Error != domain.ErrCancelled.Error() {
		t.Fatalf("unexpected cancelled session: %+v", s)
	}

	if rr := do(t, h, http.MethodPost, "/v1/session", body); rr.Code != http.StatusAccepted {
		t.Fatalf("submit after cancel: %d", rr.Code)
	}
	svc.mu.Lock()
	calls := svc.batchCalls
	svc.mu.Unlock()
	if calls != 2 {
		t.Fatalf("batch calls = %d, want 2", calls)
	}
}

func TestDownloadProxy(t *testing.T) {
	_, h := newTestApp(t, &fakeService{})

	rr := do(t, h, http.MethodGet, "/v1/downloads/api/download/a.mp3", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("download before any result: got %d, want 404", rr.Code)
	}

	do(t, h, http.MethodPost, "/v1/session", `{"mode":"single","url":"https://youtu.be/a"}`)
	rr = do(t, h, http.MethodGet, "/v1/downloads/api/download/a.mp3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "ID3-audio" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "Track A.mp3") {
		t.Fatalf("content disposition = %q", cd)
	}

	rr = do(t, h, http.MethodGet, "/v1/downloads/api/download/other.mp3", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown reference: got %d, want 404", rr.Code)
	}
}

func TestSubmitSingleAcceptsURLsArray(t *testing.T) {
	_, h := newTestApp(t, &fakeService{})
	rr := do(t, h, http.MethodPost, "/v1/session", `{"mode":"single","urls":["https://youtu.be/a"]}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: got %d, want 202 (%s)", rr.Code, rr.Body.String())
	}
	s := decodeSession(t, rr)
	if s.Phase != domain.PhaseSucceeded || len(s.Request.URLs) != 1 || s.Request.URLs[0] != "https://youtu.be/a" {
		t.Fatalf("unexpected session: %+v", s)
	}
}
