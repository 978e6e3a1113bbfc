package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quad/cmd/internal/auth/code"
	"quad/cmd/internal/auth/session"
	"quad/cmd/internal/directory"

	paseto "aidanwoods.dev/go-paseto"
)

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *captureNotifier) Send(_ context.Context, identityKey, c string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = make(map[string]string)
	}
	n.codes[identityKey] = c
	return nil
}

func (n *captureNotifier) last(identityKey string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[identityKey]
}

type testEnv struct {
	srv      *httptest.Server
	notifier *captureNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	identities := directory.NewInMemoryStore()

	notifier := &captureNotifier{}
	codes, err := code.NewService(code.NewInMemoryStore(), notifier)
	if err != nil {
		t.Fatalf("code.NewService: %v", err)
	}

	sessions, err := session.NewPasetoV4PublicIssuer(session.Config{
		Issuer:               "quad",
		TTL:                  time.Hour,
		ClockSkew:            30 * time.Second,
		PasetoV4SecretKeyHex: paseto.NewV4AsymmetricSecretKey().ExportHex(),
	})
	if err != nil {
		t.Fatalf("session issuer: %v", err)
	}

	h, err := NewHandler(log, DefaultConfig(), identities, codes, sessions)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, notifier: notifier}
}

func (e *testEnv) post(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, path, token, body)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) login(t *testing.T, email string) codeVerifyResponse {
	t.Helper()

	resp := e.post(t, "/auth/code/request", "", codeRequestRequest{Email: email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code request status = %d", resp.StatusCode)
	}

	c := e.notifier.last(directory.NormalizeEmail(email))
	if c == "" {
		t.Fatal("no code delivered")
	}

	resp = e.post(t, "/auth/code/verify", "", codeVerifyRequest{Email: email, Code: c})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	return decodeBody[codeVerifyResponse](t, resp)
}

func TestCodeRequestRejectsForeignDomain(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/auth/code/request", "", codeRequestRequest{Email: "someone@gmail.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody[errorResponse](t, resp)
	if body.Error.Code != "invalid_email" {
		t.Fatalf("error code = %q", body.Error.Code)
	}
}

func TestCodeRequestConflictWhilePending(t *testing.T) {
	e := newTestEnv(t)

	if resp := e.post(t, "/auth/code/request", "", codeRequestRequest{Email: "alice@cuchd.in"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", resp.StatusCode)
	}
	resp := e.post(t, "/auth/code/request", "", codeRequestRequest{Email: "Alice@CUCHD.IN"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second request status = %d, want 409", resp.StatusCode)
	}
}

func TestLoginFlowIssuesSessionAndProfile(t *testing.T) {
	e := newTestEnv(t)

	out := e.login(t, "Alice@cuchd.in")
	if out.Session.Token == "" {
		t.Fatal("empty session token")
	}
	if out.User.StableID == "" || out.User.DisplayAlias == "" {
		t.Fatalf("user = %+v", out.User)
	}
	if !out.User.Verified {
		t.Fatal("user not verified after code verify")
	}
	if d := time.Until(out.Session.ExpiresAt); d < 55*time.Minute || d > 65*time.Minute {
		t.Fatalf("session expiry %s away, want about 1h", d)
	}

	resp := e.do(t, http.MethodGet, "/me", out.Session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/me status = %d", resp.StatusCode)
	}
	me := decodeBody[meResponse](t, resp)
	if me.User.StableID != out.User.StableID {
		t.Fatalf("/me stable id = %q, want %q", me.User.StableID, out.User.StableID)
	}
}

func TestVerifyMismatchKeepsCodeUsable(t *testing.T) {
	e := newTestEnv(t)

	if resp := e.post(t, "/auth/code/request", "", codeRequestRequest{Email: "bob@cuchd.in"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("request status = %d", resp.StatusCode)
	}

	resp := e.post(t, "/auth/code/verify", "", codeVerifyRequest{Email: "bob@cuchd.in", Code: "000000"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatch status = %d, want 400", resp.StatusCode)
	}

	// The real code still works after a failed guess.
	real := e.notifier.last("bob@cuchd.in")
	resp = e.post(t, "/auth/code/verify", "", codeVerifyRequest{Email: "bob@cuchd.in", Code: real})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify after mismatch status = %d, want 200", resp.StatusCode)
	}
}

func TestVerifyIsSingleUse(t *testing.T) {
	e := newTestEnv(t)
	e.login(t, "carol@cuchd.in")

	used := e.notifier.last("carol@cuchd.in")
	resp := e.post(t, "/auth/code/verify", "", codeVerifyRequest{Email: "carol@cuchd.in", Code: used})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("replayed code status = %d, want 400", resp.StatusCode)
	}
}

func TestReloginKeepsStableIdentity(t *testing.T) {
	e := newTestEnv(t)

	first := e.login(t, "dave@cuchd.in")
	second := e.login(t, "DAVE@cuchd.in")

	if second.User.StableID != first.User.StableID {
		t.Fatalf("stable id changed across logins: %q vs %q", first.User.StableID, second.User.StableID)
	}
	if second.User.DisplayAlias != first.User.DisplayAlias {
		t.Fatalf("alias changed across logins: %q vs %q", first.User.DisplayAlias, second.User.DisplayAlias)
	}
}

func TestMeRequiresBearer(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/me", "v4.public.not-a-real-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", resp.StatusCode)
	}
}

func TestMeUpdateChangesAlias(t *testing.T) {
	e := newTestEnv(t)
	out := e.login(t, "erin@cuchd.in")

	alias := "night-owl-eng"
	year := 2027
	resp := e.do(t, http.MethodPatch, "/me", out.Session.Token, meUpdateRequest{
		DisplayAlias:   &alias,
		GraduationYear: &year,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PATCH /me status = %d", resp.StatusCode)
	}
	me := decodeBody[meResponse](t, resp)
	if me.User.DisplayAlias != alias {
		t.Fatalf("alias = %q, want %q", me.User.DisplayAlias, alias)
	}
	if me.User.GraduationYear == nil || *me.User.GraduationYear != year {
		t.Fatalf("graduation year = %v, want %d", me.User.GraduationYear, year)
	}
}
