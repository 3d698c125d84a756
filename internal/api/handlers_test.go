package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppinheiro86/doctalk/internal/auth"
	"github.com/ppinheiro86/doctalk/internal/blob"
	"github.com/ppinheiro86/doctalk/internal/chat"
	"github.com/ppinheiro86/doctalk/internal/pipeline"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

type mockCompleter struct {
	answer string
	err    error
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

type testEnv struct {
	store     *storage.Store
	server    *httptest.Server
	completer *mockCompleter
	blobDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobDir := t.TempDir()
	blobs, err := blob.NewLocal(blobDir)
	if err != nil {
		t.Fatalf("creating blob store: %v", err)
	}

	completer := &mockCompleter{answer: "grounded answer"}
	handler := NewHandler(Deps{
		Store: store,
		Auth:  auth.NewService(store, auth.NewHasher("test-pepper")),
		Blobs: blobs,
		Chat:  chat.New(store, completer),
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testEnv{store: store, server: srv, completer: completer, blobDir: blobDir}
}

// doJSON performs a JSON request and decodes the response body into out (when
// non-nil).
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp
}

// registerAndLogin creates an account and returns its bearer token and user ID.
func (e *testEnv) registerAndLogin(t *testing.T, email string) (token, userID string) {
	t.Helper()

	var reg map[string]string
	resp := e.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "hunter2hunter2",
	}, &reg)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	if reg["token"] == "" {
		t.Fatal("register returned no token")
	}

	var login map[string]string
	resp = e.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "hunter2hunter2",
	}, &login)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}

	user, err := e.store.GetUserByEmail(email)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	return login["token"], user.ID
}

// postPDF posts a small fake PDF and returns the raw response.
func (e *testEnv) postPDF(t *testing.T, token, fileName string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName)}
	hdr["Content-Type"] = []string{"application/pdf"}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("creating multipart part: %v", err)
	}
	part.Write([]byte("%PDF-1.4 fake content"))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/documents", &buf)
	if err != nil {
		t.Fatalf("creating upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// uploadPDF posts a small fake PDF and returns the created document.
func (e *testEnv) uploadPDF(t *testing.T, token, fileName string) documentResponse {
	t.Helper()

	resp := e.postPDF(t, token, fileName)
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d, want 201; body: %s", resp.StatusCode, body)
	}

	var doc documentResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return doc
}

// completeDocument runs the claim/complete transition directly on the store.
func (e *testEnv) completeDocument(t *testing.T, docID, text string) {
	t.Helper()
	if err := e.store.ClaimDocument(docID); err != nil {
		t.Fatalf("ClaimDocument: %v", err)
	}
	if err := e.store.CompleteDocument(docID, text); err != nil {
		t.Fatalf("CompleteDocument: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]string
	resp := env.doJSON(t, http.MethodGet, "/health", "", nil, &body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"]); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", body["timestamp"], err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "ana@example.com")

	resp := env.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "hunter2hunter2",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "hunter2hunter2",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad email: status = %d, want 400", resp.StatusCode)
	}

	resp = env.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "short",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short password: status = %d, want 400", resp.StatusCode)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "ana@example.com")

	resp := env.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestDocuments_RequireAuth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.doJSON(t, http.MethodGet, "/documents", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")

	doc := env.uploadPDF(t, token, "lease.pdf")
	if doc.Status != storage.StatusUploaded {
		t.Errorf("Status = %q, want %q", doc.Status, storage.StatusUploaded)
	}
	if doc.FileName != "lease.pdf" {
		t.Errorf("FileName = %q", doc.FileName)
	}

	// An extraction job is queued for the new document.
	job, err := env.store.ClaimNextJob([]string{pipeline.JobTypeExtract})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("no extraction job enqueued")
	}
	var payload pipeline.ExtractPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatalf("decoding job payload: %v", err)
	}
	if payload.DocumentID != doc.ID {
		t.Errorf("job DocumentID = %q, want %q", payload.DocumentID, doc.ID)
	}
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="notes.txt"`},
		"Content-Type":        {"text/plain"},
	}
	part, _ := mw.CreatePart(hdr)
	part.Write([]byte("plain text"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// TestUpload_BlobRemovedOnInsertFailure: a file whose document record cannot
// be written must not stay behind in blob storage.
func TestUpload_BlobRemovedOnInsertFailure(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")

	orig := newDocumentID
	newDocumentID = func() string { return "doc-collision" }
	t.Cleanup(func() { newDocumentID = orig })

	env.uploadPDF(t, token, "first.pdf")

	// The second insert collides on the document id after its blob is stored.
	resp := env.postPDF(t, token, "second.pdf")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	if got := countBlobFiles(t, env.blobDir); got != 1 {
		t.Errorf("blob dir holds %d files after failed upload, want 1", got)
	}
}

func countBlobFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", dir, err)
	}
	return n
}

func TestListAndGetDocuments(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "lease.pdf")

	var list []documentResponse
	resp := env.doJSON(t, http.MethodGet, "/documents", token, nil, &list)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	if len(list) != 1 || list[0].ID != doc.ID {
		t.Errorf("list = %+v, want one document %s", list, doc.ID)
	}

	var got documentResponse
	resp = env.doJSON(t, http.MethodGet, "/documents/"+doc.ID, token, nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	if got.ID != doc.ID {
		t.Errorf("ID = %q, want %q", got.ID, doc.ID)
	}
}

// TestGetDocument_ForeignIs404: another user's document looks like a missing
// one.
func TestGetDocument_ForeignIs404(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.registerAndLogin(t, "owner@example.com")
	doc := env.uploadPDF(t, ownerToken, "private.pdf")

	intruderToken, _ := env.registerAndLogin(t, "intruder@example.com")
	resp := env.doJSON(t, http.MethodGet, "/documents/"+doc.ID, intruderToken, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateMessage(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "lease.pdf")
	env.completeDocument(t, doc.ID, "the rent is 900 euros per month")

	var msg messageResponse
	resp := env.doJSON(t, http.MethodPost, "/documents/"+doc.ID+"/messages", token, map[string]string{
		"content": "How much is the rent?",
	}, &msg)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if msg.Role != storage.RoleAssistant {
		t.Errorf("Role = %q, want %q", msg.Role, storage.RoleAssistant)
	}
	if msg.Content != "grounded answer" {
		t.Errorf("Content = %q", msg.Content)
	}
}

func TestCreateMessage_DocumentNotReady(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "pending.pdf")

	resp := env.doJSON(t, http.MethodPost, "/documents/"+doc.ID+"/messages", token, map[string]string{
		"content": "ready yet?",
	}, nil)
	if resp.StatusCode != http.StatusTooEarly {
		t.Errorf("status = %d, want 425", resp.StatusCode)
	}
}

func TestCreateMessage_UpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "lease.pdf")
	env.completeDocument(t, doc.ID, "text")
	env.completer.err = errors.New("rate limit exceeded")

	resp := env.doJSON(t, http.MethodPost, "/documents/"+doc.ID+"/messages", token, map[string]string{
		"content": "hello?",
	}, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestCreateMessage_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")

	resp := env.doJSON(t, http.MethodPost, "/documents/no-such-doc/messages", token, map[string]string{
		"content": "hello?",
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateMessage_EmptyContent(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "lease.pdf")

	resp := env.doJSON(t, http.MethodPost, "/documents/"+doc.ID+"/messages", token, map[string]string{
		"content": "   ",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListMessages_Pagination(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "lease.pdf")
	env.completeDocument(t, doc.ID, "text")

	// Two exchanges produce four messages.
	for _, q := range []string{"first question", "second question"} {
		resp := env.doJSON(t, http.MethodPost, "/documents/"+doc.ID+"/messages", token, map[string]string{
			"content": q,
		}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("ask status = %d, want 201", resp.StatusCode)
		}
	}

	var page1 messageListResponse
	resp := env.doJSON(t, http.MethodGet, "/documents/"+doc.ID+"/messages?limit=3", token, nil, &page1)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(page1.Messages) != 3 {
		t.Fatalf("page 1: got %d messages, want 3", len(page1.Messages))
	}
	if page1.NextCursor == "" {
		t.Fatal("page 1: NextCursor empty with messages remaining")
	}
	if page1.Messages[0].Content != "first question" {
		t.Errorf("messages[0].Content = %q, want the first question", page1.Messages[0].Content)
	}

	var page2 messageListResponse
	resp = env.doJSON(t, http.MethodGet, "/documents/"+doc.ID+"/messages?limit=3&cursor="+page1.NextCursor, token, nil, &page2)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("page 2 status = %d, want 200", resp.StatusCode)
	}
	if len(page2.Messages) != 1 {
		t.Errorf("page 2: got %d messages, want 1", len(page2.Messages))
	}
	if page2.NextCursor != "" {
		t.Errorf("page 2: NextCursor = %q, want empty", page2.NextCursor)
	}
}

func TestListMessages_InvalidCursor(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "lease.pdf")

	resp := env.doJSON(t, http.MethodGet, "/documents/"+doc.ID+"/messages?cursor=bogus", token, nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ana@example.com")
	doc := env.uploadPDF(t, token, "lease.pdf")
	env.completeDocument(t, doc.ID, "the rent is 900 euros per month")

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/documents/"+doc.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.HasPrefix(string(body), "%PDF") {
		t.Error("response body is not a PDF")
	}
}
