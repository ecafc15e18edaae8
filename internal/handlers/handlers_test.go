package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/catalog/catalogtest"
	"github.com/tenteen/tenteen/internal/ingest"
	"github.com/tenteen/tenteen/internal/logger"
	"github.com/tenteen/tenteen/internal/media"
	"github.com/tenteen/tenteen/internal/moderation"
	"github.com/tenteen/tenteen/internal/ratelimit"
	"github.com/tenteen/tenteen/internal/server"
	"github.com/tenteen/tenteen/internal/settings"
	"github.com/tenteen/tenteen/internal/storage"
	"github.com/tenteen/tenteen/internal/storage/storagetest"
)

const testSecret = "handlers-test-secret"

type policyStore struct {
	mu     sync.Mutex
	policy settings.Policy
}

func (s *policyStore) Load(context.Context) (settings.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy, nil
}

func (s *policyStore) Save(_ context.Context, p settings.Policy) (settings.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	s.policy = p
	return p, nil
}

type testAPI struct {
	echo  *echo.Echo
	store *catalogtest.Store
	blobs *storagetest.Provider
}

func newTestAPI(t *testing.T, backend storage.Backend, cfg ingest.Config) testAPI {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	log := logger.Discard()
	store := catalogtest.New()
	blobs := storagetest.New(backend)
	set := storage.NewSet(blobs)
	if backend == storage.BackendLocal {
		set.AddRangeReader(backend, blobs)
	} else {
		set.AddDirectURLer(backend, blobs)
	}
	policy := settings.NewService(log, &policyStore{policy: settings.DefaultPolicy()}, nil, 0)
	pipeline := ingest.NewPipeline(log, store, set, media.NewExtractor(log), policy, cfg)
	srv := server.NewServer(log, "", testSecret,
		NewPingHandler(log, nil),
		NewUploadHandler(log, pipeline, policy, ratelimit.New(0), cfg),
		NewStreamHandler(log, store, set),
		NewAdminHandler(log, moderation.NewService(log, store, set), policy, nil),
	)
	return testAPI{echo: srv.Echo(), store: store, blobs: blobs}
}

func token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	tok, _, err := auth.GenerateToken(userID, role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func (a testAPI) do(req *http.Request, tok string) *httptest.ResponseRecorder {
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if data != nil {
		writePart(t, w, "audio", filename, contentType, data)
	}
	return closeUpload(t, w, &body)
}

func uploadWithCover(t *testing.T, audio, cover []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	writePart(t, w, "audio", "song.mp3", "audio/mpeg", audio)
	writePart(t, w, "coverImage", "cover.png", "image/png", cover)
	return closeUpload(t, w, &body)
}

func writePart(t *testing.T, w *multipart.Writer, field, filename, contentType string, data []byte) {
	t.Helper()
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
}

func closeUpload(t *testing.T, w *multipart.Writer, body *bytes.Buffer) *http.Request {
	t.Helper()
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload/audio", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

type uploadBody struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	SongID  string `json:"song_id"`
	Song    struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Status   string `json:"status"`
		Language string `json:"language"`
	} `json:"song"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) uploadBody {
	t.Helper()
	var out uploadBody
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func TestUploadModerateAndStreamScenario(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{MaxUploadBytes: 1 << 20})
	owner := token(t, "owner", auth.RoleUser)
	listener := token(t, "listener", auth.RoleUser)
	admin := token(t, "admin", auth.RoleAdmin)
	data := payload(64)

	rec := api.do(uploadRequest(t, "First Song.mp3", "audio/mpeg", data, map[string]string{"tags": "rock,live"}), owner)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	created := decode(t, rec)
	id := created.Song.ID
	if created.Status != "pending" || created.Song.Title != "First Song" || created.Song.Language != "Unknown" {
		t.Fatalf("unexpected upload response %+v", created)
	}
	stored, err := api.store.Get(context.Background(), id)
	if err != nil || strings.Contains(rec.Body.String(), stored.AudioLocator) {
		t.Fatalf("response leaks a storage locator: %s", rec.Body.String())
	}

	rec = api.do(httptest.NewRequest(http.MethodGet, "/stream/"+id, nil), owner)
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentLength) != "64" || !bytes.Equal(rec.Body.Bytes(), data) {
		t.Fatalf("owner stream: %d len=%s", rec.Code, rec.Header().Get(echo.HeaderContentLength))
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" || rec.Header().Get("Cache-Control") != "no-cache" || rec.Header().Get(echo.HeaderContentType) != "audio/mpeg" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}

	rec = api.do(httptest.NewRequest(http.MethodGet, "/stream/"+id, nil), listener)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("pending song visible to other users: %d", rec.Code)
	}

	rec = api.do(uploadRequest(t, "copy.mp3", "audio/mpeg", data, nil), listener)
	if rec.Code != http.StatusConflict || decode(t, rec).SongID != id {
		t.Fatalf("duplicate: %d %s", rec.Code, rec.Body.String())
	}
	if api.blobs.Count(storage.CategoryAudio) != 1 {
		t.Fatal("duplicate upload stored a second blob")
	}

	rec = api.do(httptest.NewRequest(http.MethodPost, "/admin/approve/"+id, nil), listener)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("approve as user: %d", rec.Code)
	}
	rec = api.do(httptest.NewRequest(http.MethodPost, "/admin/approve/"+id, nil), admin)
	if rec.Code != http.StatusOK || decode(t, rec).Song.Status != "approved" {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/stream/"+id, nil)
	req.Header.Set("Range", "bytes=0-9")
	rec = api.do(req, listener)
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("range: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-9/64" {
		t.Fatalf("Content-Range = %q", got)
	}
	if rec.Header().Get(echo.HeaderContentLength) != "10" || !bytes.Equal(rec.Body.Bytes(), data[:10]) {
		t.Fatalf("range body = %q", rec.Body.String())
	}

	stored, err = api.store.Get(context.Background(), id)
	if err != nil || stored.Plays != 2 {
		t.Fatalf("plays = %d, %v", stored.Plays, err)
	}
}

func TestStreamRangeEdgeCases(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{})
	admin := token(t, "admin", auth.RoleAdmin)
	data := payload(100)
	rec := api.do(uploadRequest(t, "a.wav", "audio/wav", data, nil), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	id := decode(t, rec).Song.ID

	cases := []struct {
		rangeHeader  string
		status       int
		contentRange string
		body         []byte
	}{
		{"bytes=100-110", http.StatusRequestedRangeNotSatisfiable, "bytes */100", nil},
		{"bytes=0-100", http.StatusRequestedRangeNotSatisfiable, "bytes */100", nil},
		{"bytes=90-", http.StatusPartialContent, "bytes 90-99/100", data[90:]},
		{"bytes=99-99", http.StatusPartialContent, "bytes 99-99/100", data[99:]},
		{"bytes=5-2", http.StatusBadRequest, "", nil},
		{"bytes=-5", http.StatusBadRequest, "", nil},
		{"bytes=0-1,4-5", http.StatusBadRequest, "", nil},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/stream/"+id, nil)
		req.Header.Set("Range", tc.rangeHeader)
		rec := api.do(req, admin)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.rangeHeader, rec.Code, tc.status)
		}
		if got := rec.Header().Get("Content-Range"); got != tc.contentRange {
			t.Fatalf("%s: Content-Range %q, want %q", tc.rangeHeader, got, tc.contentRange)
		}
		if tc.status == http.StatusRequestedRangeNotSatisfiable && rec.Body.Len() != 0 {
			t.Fatalf("%s: 416 must have an empty body", tc.rangeHeader)
		}
		if tc.body != nil && !bytes.Equal(rec.Body.Bytes(), tc.body) {
			t.Fatalf("%s: body mismatch", tc.rangeHeader)
		}
	}

	var joined []byte
	for start := 0; start < len(data); start += 30 {
		end := min(start+29, len(data)-1)
		req := httptest.NewRequest(http.MethodGet, "/stream/"+id, nil)
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
		joined = append(joined, api.do(req, admin).Body.Bytes()...)
	}
	if !bytes.Equal(joined, data) {
		t.Fatal("partitioned ranges do not reconstruct the blob")
	}

	head := api.do(httptest.NewRequest(http.MethodHead, "/stream/"+id, nil), admin)
	if head.Code != http.StatusOK || head.Header().Get(echo.HeaderContentLength) != "100" || head.Body.Len() != 0 {
		t.Fatalf("HEAD: %d %v", head.Code, head.Header())
	}
	if head.Header().Get(echo.HeaderContentType) != "audio/wav" {
		t.Fatalf("HEAD content type %q", head.Header().Get(echo.HeaderContentType))
	}
}

func TestStreamAuthentication(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{})
	admin := token(t, "admin", auth.RoleAdmin)
	rec := api.do(uploadRequest(t, "a.mp3", "audio/mpeg", payload(20), nil), admin)
	id := decode(t, rec).Song.ID

	if rec := api.do(httptest.NewRequest(http.MethodGet, "/stream/"+id, nil), ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/stream/"+id+"?token="+admin, nil), ""); rec.Code != http.StatusOK {
		t.Fatalf("query token: %d", rec.Code)
	}
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/stream/missing", nil), admin); rec.Code != http.StatusNotFound {
		t.Fatalf("missing record: %d", rec.Code)
	}
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/ping", nil), ""); rec.Code != http.StatusOK {
		t.Fatalf("ping: %d", rec.Code)
	}

	rec = api.do(httptest.NewRequest(http.MethodGet, "/media/"+id+"/url", nil), admin)
	var resp MediaURLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.URL != "/stream/"+id+"?token="+admin || resp.StorageBackend != storage.BackendLocal {
		t.Fatalf("media url = %+v", resp)
	}
}

func TestStreamMissingBlob(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{})
	admin := token(t, "admin", auth.RoleAdmin)
	rec := api.do(uploadRequest(t, "a.mp3", "audio/mpeg", payload(20), nil), admin)
	id := decode(t, rec).Song.ID
	stored, _ := api.store.Get(context.Background(), id)
	_ = api.blobs.Delete(context.Background(), stored.AudioLocator, storage.CategoryAudio)

	if rec := api.do(httptest.NewRequest(http.MethodGet, "/stream/"+id, nil), admin); rec.Code != http.StatusNotFound {
		t.Fatalf("missing blob: %d", rec.Code)
	}
}

func TestRemoteRecordsRedirect(t *testing.T) {
	api := newTestAPI(t, storage.BackendS3, ingest.Config{})
	api.blobs.URLBase = "https://cdn.example.com"
	admin := token(t, "admin", auth.RoleAdmin)
	rec := api.do(uploadRequest(t, "a.m4a", "audio/mp4", payload(20), nil), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	id := decode(t, rec).Song.ID

	rec = api.do(httptest.NewRequest(http.MethodGet, "/stream/"+id, nil), admin)
	location := rec.Header().Get(echo.HeaderLocation)
	if rec.Code != http.StatusFound || !strings.HasPrefix(location, "https://cdn.example.com/") || !strings.HasSuffix(location, ".m4a") {
		t.Fatalf("redirect: %d %q", rec.Code, location)
	}

	api.blobs.URLBase = ""
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/stream/"+id, nil), admin); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no direct url: %d", rec.Code)
	}
}

func mediaURL(t *testing.T, api testAPI, id, tok string) MediaURLResponse {
	t.Helper()
	rec := api.do(httptest.NewRequest(http.MethodGet, "/media/"+id+"/url", nil), tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("media url: %d %s", rec.Code, rec.Body.String())
	}
	var resp MediaURLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestCoverServedFromLocalBackend(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{})
	owner := token(t, "owner", auth.RoleUser)
	other := token(t, "other", auth.RoleUser)
	cover := []byte("\x89PNG fake cover bytes")

	rec := api.do(uploadWithCover(t, payload(30), cover), owner)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	id := decode(t, rec).Song.ID

	resp := mediaURL(t, api, id, owner)
	if resp.CoverURL != "/media/"+id+"/cover?token="+owner {
		t.Fatalf("cover url = %q", resp.CoverURL)
	}

	rec = api.do(httptest.NewRequest(http.MethodGet, "/media/"+id+"/cover", nil), owner)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), cover) {
		t.Fatalf("cover: %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	rec = api.do(httptest.NewRequest(http.MethodGet, "/media/"+id+"/cover?token="+owner, nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cover via query token: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/media/"+id+"/cover", nil)
	req.Header.Set("Range", "bytes=0-3")
	rec = api.do(req, owner)
	if rec.Code != http.StatusPartialContent || rec.Body.String() != string(cover[:4]) {
		t.Fatalf("cover range: %d %q", rec.Code, rec.Body.String())
	}

	// Pending covers follow the song's visibility.
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/media/"+id+"/cover", nil), other); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign pending cover: %d", rec.Code)
	}

	stored, err := api.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Plays != 0 {
		t.Fatalf("cover fetches must not count plays, got %d", stored.Plays)
	}

	rec = api.do(uploadRequest(t, "bare.mp3", "audio/mpeg", payload(31), nil), owner)
	bare := decode(t, rec).Song.ID
	if resp := mediaURL(t, api, bare, owner); resp.CoverURL != "" {
		t.Fatalf("cover url without cover = %q", resp.CoverURL)
	}
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/media/"+bare+"/cover", nil), owner); rec.Code != http.StatusNotFound {
		t.Fatalf("missing cover: %d", rec.Code)
	}
}

func TestCoverRedirectsForRemoteBackend(t *testing.T) {
	api := newTestAPI(t, storage.BackendS3, ingest.Config{})
	api.blobs.URLBase = "https://cdn.example.com"
	admin := token(t, "admin", auth.RoleAdmin)

	rec := api.do(uploadWithCover(t, payload(30), []byte("cover")), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	id := decode(t, rec).Song.ID

	rec = api.do(httptest.NewRequest(http.MethodGet, "/media/"+id+"/cover", nil), admin)
	location := rec.Header().Get(echo.HeaderLocation)
	if rec.Code != http.StatusFound || !strings.HasPrefix(location, "https://cdn.example.com/") || !strings.HasSuffix(location, ".png") {
		t.Fatalf("cover redirect: %d %q", rec.Code, location)
	}
	if resp := mediaURL(t, api, id, admin); resp.CoverURL != location {
		t.Fatalf("cover url = %q, want %q", resp.CoverURL, location)
	}

	api.blobs.URLBase = ""
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/media/"+id+"/cover", nil), admin); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no direct url: %d", rec.Code)
	}
}

func TestUploadRejectsMalformedReferenceIDs(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{})
	user := token(t, "u", auth.RoleUser)

	for _, field := range []string{"artistId", "albumId"} {
		rec := api.do(uploadRequest(t, "a.mp3", "audio/mpeg", payload(12), map[string]string{field: "abc"}), user)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d %s", field, rec.Code, rec.Body.String())
		}
	}
	if n := api.blobs.Saves; n != 0 {
		t.Fatalf("rejected uploads wrote %d blobs", n)
	}

	artist := "6f1c2c1e-3b9a-4f57-9a43-0b6c3f3f3a10"
	rec := api.do(uploadRequest(t, "a.mp3", "audio/mpeg", payload(12), map[string]string{"artistId": artist}), user)
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid artist id: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadValidationErrors(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{MaxUploadBytes: 32})
	user := token(t, "u", auth.RoleUser)

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"missing audio", uploadRequest(t, "", "", nil, map[string]string{"title": "x"}), http.StatusBadRequest},
		{"not audio", uploadRequest(t, "a.mp3", "text/plain", payload(8), nil), http.StatusBadRequest},
		{"bad extension", uploadRequest(t, "a.flac", "audio/flac", payload(8), nil), http.StatusBadRequest},
		{"empty", uploadRequest(t, "a.mp3", "audio/mpeg", []byte{}, nil), http.StatusBadRequest},
		{"too large", uploadRequest(t, "a.mp3", "audio/mpeg", payload(33), nil), http.StatusRequestEntityTooLarge},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/upload/audio", strings.NewReader("x")), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := api.do(tc.req, user); rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d (%s)", tc.name, rec.Code, tc.status, rec.Body.String())
		}
	}
	if api.store.Len() != 0 || api.blobs.Saves != 0 {
		t.Fatal("rejected uploads must leave no trace")
	}
	if rec := api.do(uploadRequest(t, "a.mp3", "audio/mpeg", payload(8), nil), ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous upload: %d", rec.Code)
	}
}

func TestAdminSettingsDrivePolicy(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{})
	user := token(t, "u", auth.RoleUser)
	reviewer := token(t, "r", auth.RoleReviewer)

	req := httptest.NewRequest(http.MethodPost, "/admin/settings", strings.NewReader(`{"auto_approve_uploads":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := api.do(req, reviewer); rec.Code != http.StatusOK {
		t.Fatalf("update settings: %d %s", rec.Code, rec.Body.String())
	}
	rec := api.do(httptest.NewRequest(http.MethodGet, "/upload/settings", nil), user)
	var policy settings.Policy
	if err := json.Unmarshal(rec.Body.Bytes(), &policy); err != nil || !policy.AutoApprove {
		t.Fatalf("policy = %+v, %v", policy, err)
	}
	rec = api.do(uploadRequest(t, "a.mp3", "audio/mpeg", payload(10), nil), user)
	if rec.Code != http.StatusCreated || decode(t, rec).Status != "approved" {
		t.Fatalf("auto-approved upload: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/settings", strings.NewReader(`{"allowed_formats":["flac"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := api.do(req, reviewer); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid format setting: %d", rec.Code)
	}
}

func TestAdminReviewQueue(t *testing.T) {
	api := newTestAPI(t, storage.BackendLocal, ingest.Config{})
	user := token(t, "u", auth.RoleUser)
	admin := token(t, "admin", auth.RoleAdmin)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := api.do(uploadRequest(t, fmt.Sprintf("s%d.mp3", i), "audio/mpeg", payload(10+i), nil), user)
		ids = append(ids, decode(t, rec).Song.ID)
	}

	rec := api.do(httptest.NewRequest(http.MethodGet, "/admin/pending?page=1&limit=2", nil), admin)
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Items[0].ID != ids[2] {
		t.Fatalf("pending page = %+v", page)
	}
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/admin/pending?page=x", nil), admin); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad page: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPatch, "/admin/edit/"+ids[0], strings.NewReader(`{"title":"Renamed","tags":["a","a","b"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = api.do(req, admin)
	if rec.Code != http.StatusOK || decode(t, rec).Song.Title != "Renamed" {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	req = httptest.NewRequest(http.MethodPatch, "/admin/edit/"+ids[0], strings.NewReader(`{"title":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := api.do(req, admin); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank title: %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodPatch, "/admin/edit/"+ids[0], strings.NewReader(`{"albumId":"abc"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := api.do(req, admin); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed album id: %d", rec.Code)
	}

	rec = api.do(httptest.NewRequest(http.MethodDelete, "/admin/reject/"+ids[1], nil), admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: %d", rec.Code)
	}
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/stream/"+ids[1], nil), admin); rec.Code != http.StatusNotFound {
		t.Fatalf("rejected song still streams: %d", rec.Code)
	}
	if api.blobs.Count(storage.CategoryAudio) != 2 {
		t.Fatalf("rejected blob not removed: %d blobs", api.blobs.Count(storage.CategoryAudio))
	}
	if rec := api.do(httptest.NewRequest(http.MethodDelete, "/admin/reject/"+ids[1], nil), admin); rec.Code != http.StatusNotFound {
		t.Fatalf("second reject: %d", rec.Code)
	}

	rec = api.do(httptest.NewRequest(http.MethodPost, "/admin/approve-all", nil), admin)
	var bulk struct {
		Count int64 `json:"count"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &bulk)
	if rec.Code != http.StatusOK || bulk.Count != 2 {
		t.Fatalf("approve-all: %d %s", rec.Code, rec.Body.String())
	}
	if rec := api.do(httptest.NewRequest(http.MethodGet, "/stream/"+ids[0], nil), token(t, "other", auth.RoleUser)); rec.Code != http.StatusOK {
		t.Fatalf("approved song not public: %d", rec.Code)
	}
}

func TestHealthReportsDependencies(t *testing.T) {
	e := echo.New()
	NewPingHandler(logger.Discard(), map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return io.ErrClosedPipe }),
	}).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"redis":"down"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD /health: %d", rec.Code)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
