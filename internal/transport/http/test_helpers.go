package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uniadvisor/advisory-server/internal/auth"
	"github.com/uniadvisor/advisory-server/internal/chat"
	"github.com/uniadvisor/advisory-server/internal/config"
	"github.com/uniadvisor/advisory-server/internal/log"
	"github.com/uniadvisor/advisory-server/internal/mail"
	"github.com/uniadvisor/advisory-server/internal/store"
	"github.com/uniadvisor/advisory-server/internal/store/sqlite"
)

// testEnv bundles the wired server and its collaborators for tests.
type testEnv struct {
	ts       *httptest.Server
	store    store.Store
	auth     *auth.Service
	presence *chat.Registry
	mailer   *mail.Recorder
}

// startTestServer wires a full router over an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := createTestAuthService(t, st, "test-secret-change-me")
	svc := chat.NewService(st)
	presence := chat.NewRegistry()
	mailer := &mail.Recorder{}
	logger := log.NewWithOutput("error", io.Discard)

	router := NewRouter(svc, presence, authService, mailer, st, config.Default(), logger)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		store:    st,
		auth:     authService,
		presence: presence,
		mailer:   mailer,
	}
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// registerUser creates an account directly through the auth service and
// returns the stored user and a valid token for it.
func (e *testEnv) registerUser(t *testing.T, username string, role store.Role) (*store.User, string) {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, "password123", "", "", role)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}

	user, err := e.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("look up %s: %v", username, err)
	}

	return user, token
}

// registerAdmin provisions an admin account directly in the store, the
// way an operator would: admin is not a self-service role.
func (e *testEnv) registerAdmin(t *testing.T, username string) (*store.User, string) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := e.store.CreateUser(context.Background(), username, hash, "", "", store.RoleAdmin)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	token, err := e.auth.Login(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}

	return user, token
}

// doJSON performs a request against the test server with an optional
// bearer token and JSON body, and decodes the JSON response into out.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response of %s %s: %v", method, path, err)
		}
	}

	return resp.StatusCode
}
