package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/inbox/internal/models"
	"github.com/starford/inbox/internal/noteservice"
	"github.com/starford/inbox/internal/sse"
	"github.com/starford/inbox/internal/store"
	"github.com/starford/inbox/internal/testutil"
)

// testEnv sets up a temp SQLite DB, service, and router for testing.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*store.DB, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	svc := noteservice.NewService(db, nil)
	router := NewRouter(svc, Options{AuthEnabled: authToken != "", Token: authToken})
	return db, router
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]any{"content": "Buy milk", "tags": []string{"errand"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.Note](t, w)
	if created.ID != 1 || created.Content != "Buy milk" {
		t.Errorf("created = %+v", created)
	}

	w = do(t, router, http.MethodGet, "/notes/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"tags":["errand"]`) {
		t.Errorf("body = %s", w.Body.String())
	}
	got := decode[models.Note](t, w)
	if got.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at not UTC: %v", got.CreatedAt)
	}
}

func TestCreateNote_BackDated(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/notes", map[string]any{
		"content":    "from yesterday",
		"created_at": "2024-03-01T10:00:00+02:00",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"created_at":"2024-03-01T08:00:00Z"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCreateNote_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	cases := map[string]any{
		"blank content": map[string]any{"content": "   "},
		"blank tag":     map[string]any{"content": "x", "tags": []string{""}},
		"unknown field": map[string]any{"content": "x", "path": "a.md"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/notes", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/notes", nil)
	if resp := decode[NoteListResponse](t, w); resp.Count != 0 {
		t.Errorf("rejected creates persisted %d notes", resp.Count)
	}
}

func TestUpdateNote(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/notes", map[string]any{"content": "draft"})

	w := do(t, router, http.MethodPut, "/notes/1", map[string]any{"content": "final", "tags": []string{"done"}})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	n := decode[models.Note](t, w)
	if n.Content != "final" || len(n.Tags) != 1 || n.Tags[0] != "done" {
		t.Errorf("updated = %+v", n)
	}
	if n.UpdatedAt.Before(n.CreatedAt) {
		t.Errorf("updated_at %v before created_at %v", n.UpdatedAt, n.CreatedAt)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/notes/7", map[string]any{"content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestGetNote_BadAndMissingID(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("zero id = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/42", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestDeleteNoteCascades(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/notes", map[string]any{"content": "bye"})
	do(t, router, http.MethodPost, "/notes/1/comments", map[string]any{"content": "c1"})

	if w := do(t, router, http.MethodDelete, "/notes/1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/notes/1", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/1", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w := do(t, router, http.MethodGet, "/notes/1/comments", nil)
	if resp := decode[CommentListResponse](t, w); len(resp.Comments) != 0 {
		t.Errorf("comments survived: %+v", resp.Comments)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	for i, at := range []string{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", "2024-01-03T00:00:00Z"} {
		tags := []string{"odd"}
		if i == 1 {
			tags = []string{"even"}
		}
		do(t, router, http.MethodPost, "/notes", map[string]any{"content": "n", "tags": tags, "created_at": at})
	}

	resp := decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes", nil))
	if resp.Count != 3 || resp.Notes[0].ID != 3 || resp.Notes[2].ID != 1 {
		t.Errorf("all = %+v", resp.Notes)
	}

	resp = decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes?tag=odd&limit=1", nil))
	if resp.Count != 1 || resp.Notes[0].ID != 3 {
		t.Errorf("odd limit 1 = %+v", resp.Notes)
	}

	resp = decode[NoteListResponse](t, do(t, router, http.MethodGet,
		"/notes?created_after=2024-01-02T00:00:00Z&created_before=2024-01-03T00:00:00Z", nil))
	if resp.Count != 1 || resp.Notes[0].ID != 2 {
		t.Errorf("range = %+v", resp.Notes)
	}

	for _, q := range []string{"limit=x", "limit=-1", "created_after=yesterday",
		"created_after=2024-02-01T00:00:00Z&created_before=2024-01-01T00:00:00Z"} {
		if w := do(t, router, http.MethodGet, "/notes?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", q, w.Code)
		}
	}
}

func TestComments(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/notes", map[string]any{"content": "parent"})

	w := do(t, router, http.MethodPost, "/notes/1/comments", map[string]any{"content": "done"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add = %d, body = %s", w.Code, w.Body.String())
	}
	added := decode[AddCommentResponse](t, w)
	if added.Comment.ID != 1 || added.Comment.NoteID != 1 || added.Note != nil {
		t.Errorf("added = %+v", added)
	}

	w = do(t, router, http.MethodPost, "/notes/1/comments?mirror=true", map[string]any{"content": "also a note"})
	mirrored := decode[AddCommentResponse](t, w)
	if mirrored.Note == nil || mirrored.Note.ID != 2 || mirrored.Note.Content != "also a note" {
		t.Errorf("mirrored = %+v", mirrored)
	}

	list := decode[CommentListResponse](t, do(t, router, http.MethodGet, "/notes/1/comments", nil))
	if len(list.Comments) != 2 || list.Comments[0].Content != "done" {
		t.Errorf("comments = %+v", list.Comments)
	}

	if w := do(t, router, http.MethodPost, "/notes/999/comments", map[string]any{"content": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("orphan comment = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes/1/comments", map[string]any{"content": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("blank comment = %d, want 400", w.Code)
	}
}

func TestTagEndpoints(t *testing.T) {
	db, router := testEnv(t, "")
	err := store.NewCatalogSeeder(db).Apply(context.Background(), []models.CatalogEntry{
		{Name: "work", Path: "work"},
		{Name: "urgent", Path: "work/urgent", ParentPath: "work"},
	}, "test")
	if err != nil {
		t.Fatal(err)
	}
	do(t, router, http.MethodPost, "/notes", map[string]any{"content": "a", "tags": []string{"b", "a"}})

	search := decode[TagListResponse](t, do(t, router, http.MethodGet, "/tags/search?q=wo", nil))
	if len(search.Tags) != 2 || search.Tags[1].FullPath != "work/urgent" {
		t.Errorf("search = %+v", search.Tags)
	}
	if w := do(t, router, http.MethodGet, "/tags/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty search = %d, want 400", w.Code)
	}

	roots := decode[TagListResponse](t, do(t, router, http.MethodGet, "/tags", nil))
	if len(roots.Tags) != 1 || roots.Tags[0].Name != "work" {
		t.Fatalf("roots = %+v", roots.Tags)
	}
	kids := decode[TagListResponse](t, do(t, router, http.MethodGet, "/tags?parent_id=1", nil))
	if len(kids.Tags) != 1 || kids.Tags[0].Name != "urgent" {
		t.Errorf("children = %+v", kids.Tags)
	}
	if w := do(t, router, http.MethodGet, "/tags?parent_id=99", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown parent = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/tags?parent_id=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad parent = %d, want 400", w.Code)
	}

	all := decode[FlatTagsResponse](t, do(t, router, http.MethodGet, "/tags/all", nil))
	if strings.Join(all.Tags, ",") != "a,b" {
		t.Errorf("all = %v", all.Tags)
	}
	detailed := decode[DetailedTagsResponse](t, do(t, router, http.MethodGet, "/tags/detailed", nil))
	if len(detailed.Tags) != 2 || detailed.Tags[0].Count != 1 {
		t.Errorf("detailed = %+v", detailed.Tags)
	}
}

func TestStorageErrorsAreHidden(t *testing.T) {
	db, router := testEnv(t, "")
	db.Close()

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"internal error"`) {
		t.Errorf("body leaks details: %s", w.Body.String())
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestCORS(t *testing.T) {
	db := testutil.TestDB(t)
	router := NewRouter(noteservice.NewService(db, nil), Options{
		AuthEnabled: true,
		Token:       "tok",
		CORSOrigins: []string{"http://localhost:5600"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/notes", nil)
	req.Header.Set("Origin", "http://localhost:5600")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5600" {
		t.Errorf("preflight allow-origin = %q", got)
	}
	if w.Code == http.StatusUnauthorized {
		t.Error("preflight must not require auth")
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	db := testutil.TestDB(t)
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := NewRouter(noteservice.NewService(db, broker), Options{AuthEnabled: true, Token: "tok", Events: broker})

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("events without token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_StreamsNoteChanges(t *testing.T) {
	db := testutil.TestDB(t)
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := NewRouter(noteservice.NewService(db, broker), Options{Events: broker})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	do(t, router, http.MethodPost, "/notes", map[string]any{"content": "live"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.created") || !strings.Contains(body, "event: tags.updated") {
		t.Errorf("stream = %q", body)
	}
}
