package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glanburn/music-manager/internal/auth"
	"github.com/glanburn/music-manager/internal/blob"
	"github.com/glanburn/music-manager/internal/model"
	"github.com/glanburn/music-manager/internal/store"
	"github.com/glanburn/music-manager/internal/token"
)

type testEnv struct {
	srv   *Server
	h     http.Handler
	store *store.Store
	blobs *blob.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := store.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := store.New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	blobs, err := blob.Open(filepath.Join(dir, "blobs.db"))
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	authSvc := auth.New(s, time.Hour)
	tokens := token.NewIssuer(time.Minute)
	srv := New(s, blobs, tokens, authSvc, Options{})
	return &testEnv{srv: srv, h: srv.Handler(), store: s, blobs: blobs}
}

func (e *testEnv) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode JSON: %v\nbody: %s", err, rr.Body.String())
	}
	return result
}

// registerAndLogin creates a user and returns its session token and id.
// When admin is set, the role is granted directly through the store.
func (e *testEnv) registerAndLogin(t *testing.T, email string, admin bool) (string, string) {
	t.Helper()
	rr := e.do(t, "POST", "/api/auth/register", "",
		`{"email":"`+email+`","display_name":"Mary Thompson","password":"secret-password"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	id := decodeMap(t, rr)["id"].(string)

	if admin {
		if err := e.store.UpdateUserRole(t.Context(), id, model.RoleAdmin); err != nil {
			t.Fatalf("grant admin: %v", err)
		}
	}

	rr = e.do(t, "POST", "/api/auth/login", "",
		`{"email":"`+email+`","password":"secret-password"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	return decodeMap(t, rr)["token"].(string), id
}

// setupCompetition creates a competition and grade as admin, returning
// their ids.
func (e *testEnv) setupCompetition(t *testing.T, adminTok string) (string, string) {
	t.Helper()
	rr := e.do(t, "POST", "/api/competitions", adminTok,
		`{"name":"Glanburn Club Comp","year":2024,"location":"Glanburn"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create competition: %d %s", rr.Code, rr.Body.String())
	}
	compID := decodeMap(t, rr)["id"].(string)

	rr = e.do(t, "POST", "/api/grades", adminTok,
		`{"competition_id":"`+compID+`","category":"Junior","segment":"Free Skate","max_duration_seconds":210}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create grade: %d %s", rr.Code, rr.Body.String())
	}
	return compID, decodeMap(t, rr)["id"].(string)
}

// upload posts a multipart music file for the grade.
func (e *testEnv) upload(t *testing.T, bearer, gradeID, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("grade_id", gradeID)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/artifacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, "GET", "/api/competitions", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list = %d, want 401", rr.Code)
	}
}

func TestAdminGuard(t *testing.T) {
	e := newTestEnv(t)
	competitorTok, _ := e.registerAndLogin(t, "skater@example.com", false)

	rr := e.do(t, "POST", "/api/competitions", competitorTok, `{"name":"X","year":2024}`)
	if rr.Code != http.StatusForbidden {
		t.Errorf("competitor create competition = %d, want 403", rr.Code)
	}
	rr = e.do(t, "GET", "/api/users", competitorTok, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("competitor list users = %d, want 403", rr.Code)
	}
}

func TestCompetitionLifecycle(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	compID, gradeID := e.setupCompetition(t, adminTok)

	rr := e.do(t, "GET", "/api/competitions", adminTok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}

	rr = e.do(t, "PUT", "/api/competitions/"+compID, adminTok, `{"location":"New Rink"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rr.Code, rr.Body.String())
	}
	if decodeMap(t, rr)["location"] != "New Rink" {
		t.Error("location not updated")
	}

	// Grade listing by competition.
	rr = e.do(t, "GET", "/api/grades?competition_id="+compID, adminTok, "")
	var grades []map[string]any
	json.Unmarshal(rr.Body.Bytes(), &grades)
	if len(grades) != 1 || grades[0]["id"] != gradeID {
		t.Errorf("grades = %v", grades)
	}

	// Deleting competitions with grades but no artifacts cascades.
	rr = e.do(t, "DELETE", "/api/competitions/"+compID, adminTok, "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rr.Code)
	}
}

func TestUploadComposesDisplayName(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	_, gradeID := e.setupCompetition(t, adminTok)
	skaterTok, _ := e.registerAndLogin(t, "mary@example.com", false)

	rr := e.upload(t, skaterTok, gradeID, "My Track (final).mp3", []byte("mp3 bytes"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rr.Code, rr.Body.String())
	}
	art := decodeMap(t, rr)
	if art["display_name"] != "2024-glanburn-club-comp-junior-free-skate-mary-t" {
		t.Errorf("display_name = %q", art["display_name"])
	}
	if art["original_name"] != "My Track (final).mp3" {
		t.Errorf("original_name = %q", art["original_name"])
	}
	if art["status"] != model.StatusUploaded {
		t.Errorf("status = %q, want UPLOADED", art["status"])
	}
}

func TestUpload_RejectsExtension(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	_, gradeID := e.setupCompetition(t, adminTok)

	rr := e.upload(t, adminTok, gradeID, "virus.exe", []byte("nope"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("upload .exe = %d, want 400", rr.Code)
	}
}

func TestUpload_ReplacesPrevious(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	_, gradeID := e.setupCompetition(t, adminTok)
	skaterTok, skaterID := e.registerAndLogin(t, "mary@example.com", false)

	first := e.upload(t, skaterTok, gradeID, "v1.mp3", []byte("first"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first upload: %d", first.Code)
	}
	firstStorage := decodeMap(t, first)["storage_id"].(string)

	second := e.upload(t, skaterTok, gradeID, "v2.mp3", []byte("second"))
	if second.Code != http.StatusCreated {
		t.Fatalf("second upload: %d %s", second.Code, second.Body.String())
	}

	// Only one artifact remains for the (grade, owner) pair.
	arts, err := e.store.ListArtifacts(t.Context(), model.ArtifactFilter{OwnerID: skaterID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(arts) != 1 || arts[0].OriginalName != "v2.mp3" {
		t.Errorf("artifacts = %+v, want single v2.mp3", arts)
	}

	// The replaced blob is gone.
	if _, err := e.blobs.Get(firstStorage); err == nil {
		t.Error("replaced blob should be deleted")
	}
}

func TestCompetitorSeesOnlyOwnArtifacts(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	compID, gradeID := e.setupCompetition(t, adminTok)

	maryTok, _ := e.registerAndLogin(t, "mary@example.com", false)
	otherTok, _ := e.registerAndLogin(t, "other@example.com", false)
	e.upload(t, maryTok, gradeID, "mary.mp3", []byte("a"))

	rr := e.do(t, "GET", "/api/artifacts?competition_id="+compID, otherTok, "")
	var arts []map[string]any
	json.Unmarshal(rr.Body.Bytes(), &arts)
	if len(arts) != 0 {
		t.Errorf("other competitor sees %d artifacts, want 0", len(arts))
	}

	rr = e.do(t, "GET", "/api/artifacts?competition_id="+compID, adminTok, "")
	json.Unmarshal(rr.Body.Bytes(), &arts)
	if len(arts) != 1 {
		t.Errorf("admin sees %d artifacts, want 1", len(arts))
	}
}

func TestLinkAndDownload(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	_, gradeID := e.setupCompetition(t, adminTok)
	skaterTok, _ := e.registerAndLogin(t, "mary@example.com", false)

	content := []byte("mp3 content here")
	rr := e.upload(t, skaterTok, gradeID, "song.mp3", content)
	artID := decodeMap(t, rr)["id"].(string)

	// Resolve a short-lived link.
	rr = e.do(t, "POST", "/api/artifacts/"+artID+"/link", skaterTok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("link: %d %s", rr.Code, rr.Body.String())
	}
	link := decodeMap(t, rr)
	fileURL := link["url"].(string)
	if !strings.HasPrefix(fileURL, "/files/") {
		t.Fatalf("url = %q", fileURL)
	}

	// The link serves the content, unauthenticated, with the canonical
	// filename (extension re-attached from the original name).
	rr = e.do(t, "GET", fileURL, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("download: %d %s", rr.Code, rr.Body.String())
	}
	body, _ := io.ReadAll(rr.Body)
	if !bytes.Equal(body, content) {
		t.Error("downloaded content differs from upload")
	}
	cd := rr.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "2024-glanburn-club-comp-junior-free-skate-mary-t.mp3") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	// Other competitors cannot mint links for it.
	otherTok, _ := e.registerAndLogin(t, "other@example.com", false)
	rr = e.do(t, "POST", "/api/artifacts/"+artID+"/link", otherTok, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("foreign link = %d, want 403", rr.Code)
	}
}

func TestDownload_UnknownToken(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, "GET", "/files/not-a-token", "", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown token = %d, want 404", rr.Code)
	}
}

func TestDeleteArtifact_RemovesBlob(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	_, gradeID := e.setupCompetition(t, adminTok)
	skaterTok, _ := e.registerAndLogin(t, "mary@example.com", false)

	rr := e.upload(t, skaterTok, gradeID, "song.mp3", []byte("bytes"))
	art := decodeMap(t, rr)
	artID := art["id"].(string)
	storageID := art["storage_id"].(string)

	rr = e.do(t, "DELETE", "/api/artifacts/"+artID, skaterTok, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
	if _, err := e.blobs.Get(storageID); err == nil {
		t.Error("blob should be deleted with the artifact")
	}
}

func TestUpdateDisplayName(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	_, gradeID := e.setupCompetition(t, adminTok)
	maryTok, maryID := e.registerAndLogin(t, "mary@example.com", false)
	otherTok, _ := e.registerAndLogin(t, "other@example.com", false)

	rr := e.upload(t, maryTok, gradeID, "song.mp3", []byte("bytes"))
	artID := decodeMap(t, rr)["id"].(string)

	rr = e.do(t, "PATCH", "/api/users/"+maryID, maryTok, `{"display_name":"Mary Smith"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("rename self = %d %s", rr.Code, rr.Body.String())
	}
	if decodeMap(t, rr)["display_name"] != "Mary Smith" {
		t.Error("display name not updated")
	}

	// Filenames composed before the rename are frozen.
	art, err := e.store.GetArtifact(t.Context(), artID)
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if art.OwnerName != "Mary Thompson" {
		t.Errorf("owner snapshot = %q, want original name", art.OwnerName)
	}

	rr = e.do(t, "PATCH", "/api/users/"+maryID, otherTok, `{"display_name":"Hacked"}`)
	if rr.Code != http.StatusForbidden {
		t.Errorf("rename by other user = %d, want 403", rr.Code)
	}
}

func TestRoleUpdate(t *testing.T) {
	e := newTestEnv(t)
	adminTok, _ := e.registerAndLogin(t, "admin@example.com", true)
	_, skaterID := e.registerAndLogin(t, "mary@example.com", false)

	rr := e.do(t, "PATCH", "/api/users/"+skaterID+"/role", adminTok, `{"role":"admin"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("role update = %d %s", rr.Code, rr.Body.String())
	}

	u, err := e.store.GetUser(t.Context(), skaterID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !u.IsAdmin() {
		t.Error("user should be admin after role grant")
	}

	rr = e.do(t, "PATCH", "/api/users/"+skaterID+"/role", adminTok, `{"role":"overlord"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad role = %d, want 400", rr.Code)
	}
}
