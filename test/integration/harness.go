// Package integration provides a reusable test harness for end-to-end
// integration testing of the Greenlight approval server. It starts a full
// HTTP server with in-memory stores and a test JWT issuer.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/greenlight/internal/audit"
	"github.com/pitabwire/greenlight/internal/config"
	"github.com/pitabwire/greenlight/internal/engine"
	"github.com/pitabwire/greenlight/internal/observability"
	"github.com/pitabwire/greenlight/internal/template"
	"github.com/pitabwire/greenlight/internal/transport"
	"github.com/pitabwire/greenlight/model"
)

// TestTenant is the tenant all default test claims belong to.
const TestTenant = "acme-media"

// TestHarness encapsulates a fully wired approval server instance for
// integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	TemplateStore    *template.MemoryStore
	WorkflowStore    *engine.MemoryWorkflowStore
	IdempotencyStore *engine.MemoryIdempotencyStore
	Engine           *engine.Engine

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	handlerTimeout     time.Duration
	idempotencyEnabled bool
	urgencyWindow      time.Duration
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithIdempotency enables idempotency checking with an in-memory store.
func WithIdempotency() HarnessOption {
	return func(c *harnessConfig) {
		c.idempotencyEnabled = true
	}
}

// WithUrgencyWindow overrides the due-date window used to flag workflows
// urgent in listings.
func WithUrgencyWindow(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.urgencyWindow = d
	}
}

// NewTestHarness creates and starts a full approval server test instance.
// The server is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		urgencyWindow:  48 * time.Hour,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{
		t:                t,
		TemplateStore:    template.NewMemoryStore(),
		WorkflowStore:    engine.NewMemoryWorkflowStore(),
		IdempotencyStore: engine.NewMemoryIdempotencyStore(),
	}

	// Step 1: Create the JWT issuer.
	h.issuer = newTokenIssuer(t)

	// Step 2: Build the engine.
	h.Engine = engine.NewEngine(h.TemplateStore, h.WorkflowStore, audit.NopSink{}, zap.NewNop(),
		engine.WithUrgencyWindow(hc.urgencyWindow))

	// Step 3: Build config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity = config.IdentityConfig{
		Issuer:     h.issuer.Issuer(),
		Audience:   h.issuer.Audience(),
		JWKSURL:    h.issuer.JWKSURL(),
		Algorithms: []string{"RS256"},
	}
	h.cfg.Idempotency.Enabled = hc.idempotencyEnabled

	// Step 4: Build the router with the full middleware chain.
	jwks := transport.NewJWKSClient(h.issuer.JWKSURL(), 1*time.Hour, nil)

	var idem engine.IdempotencyStore
	if hc.idempotencyEnabled {
		idem = h.IdempotencyStore
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Logger:       zap.NewNop(),
		Engine:       h.Engine,
		Templates:    h.TemplateStore,
		Idempotency:  idem,
		Metrics:      observability.InitMetrics(prometheus.NewRegistry()),
		Authenticate: transport.JWTAuthenticator(h.cfg.Identity, jwks),
		Readiness: observability.ReadinessChecks{
			TemplatesLoaded: func() bool { return h.TemplateStore.Len() > 0 },
		},
	})

	// Step 5: Start the test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// SeedTemplate validates the template and inserts it into the template store
// under the test tenant.
func (h *TestHarness) SeedTemplate(tpl model.WorkflowTemplate) model.WorkflowTemplate {
	h.t.Helper()

	created, err := template.New(tpl, TestTenant, "seed")
	if err != nil {
		h.t.Fatalf("seed template %s: %v", tpl.ID, err)
	}
	if err := h.TemplateStore.Create(context.Background(), created); err != nil {
		h.t.Fatalf("store seed template %s: %v", tpl.ID, err)
	}
	return created
}

// SeedArticleTemplate inserts the standard two-step article review template:
// an editorial step needing two approvals from three editors, then a legal
// sign-off step needing one approval.
func (h *TestHarness) SeedArticleTemplate() model.WorkflowTemplate {
	h.t.Helper()

	return h.SeedTemplate(model.WorkflowTemplate{
		ID:                     "tpl-article-review",
		Name:                   "Article Review",
		ApplicableContentTypes: []string{"article"},
		IsDefault:              true,
		Steps: []model.StepDefinition{
			{
				ID:                "editorial",
				Name:              "Editorial Review",
				RequiredApprovals: 2,
				AssignedUserIDs:   []string{"editor-1", "editor-2", "editor-3"},
				Order:             0,
				IsParallel:        true,
			},
			{
				ID:                "legal",
				Name:              "Legal Sign-off",
				RequiredApprovals: 1,
				AssignedUserIDs:   []string{"legal-1"},
				Order:             1,
			},
		},
	})
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// POSTWithHeaders performs an authenticated POST request with additional headers.
func (h *TestHarness) POSTWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, headers)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, token, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// AssertErrorCode checks the response status and the error envelope code.
func (h *TestHarness) AssertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()

	var body map[string]any
	h.AssertJSON(t, resp, status, &body)

	errObj, _ := body["error"].(map[string]any)
	if errObj == nil {
		t.Fatalf("expected error envelope, got: %s", FormatJSON(body))
	}
	if errObj["code"] != code {
		t.Errorf("error.code = %v, want %s", errObj["code"], code)
	}
}

// --- Default test claims ---

// AuthorClaims returns TestClaims for the content author who submits work.
func AuthorClaims() TestClaims {
	return TestClaims{
		SubjectID: "author-1",
		Name:      "Alice Author",
		TenantID:  TestTenant,
		Email:     "alice@acme.example.com",
		Roles:     []string{"author"},
	}
}

// EditorClaims returns TestClaims for one of the editorial reviewers.
func EditorClaims(sub string) TestClaims {
	return TestClaims{
		SubjectID: sub,
		Name:      "Editor " + sub,
		TenantID:  TestTenant,
		Email:     sub + "@acme.example.com",
		Roles:     []string{"editor"},
	}
}

// LegalClaims returns TestClaims for the legal sign-off reviewer.
func LegalClaims() TestClaims {
	return TestClaims{
		SubjectID: "legal-1",
		Name:      "Larry Legal",
		TenantID:  TestTenant,
		Email:     "legal@acme.example.com",
		Roles:     []string{"legal"},
	}
}

// --- Helpers ---

func assertEqual(t *testing.T, got, want any, label string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", label, got, want)
	}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
