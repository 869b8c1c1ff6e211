package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/bizlinkhq/wa-engine/core/config"
	"github.com/bizlinkhq/wa-engine/infrastructure/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/contactcache"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging/fake"
	"github.com/bizlinkhq/wa-engine/session"
	"github.com/bizlinkhq/wa-engine/ui/rest/middleware"
	"github.com/bizlinkhq/wa-engine/usecase"
)

type envelope struct {
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()

	cfg := config.Default()
	repo := chatstorage.NewMemoryRepository()
	registry := session.NewRegistry()
	factory := fake.NewFactory()
	manager := session.NewManager(registry, factory, cfg, nil)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	resolver := session.NewResolver(registry, contactcache.NewMemoryStore(cfg.Messaging.ContactCacheTTL), cfg)

	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestApp(app, usecase.NewAppService(manager, cfg))
	InitRestSend(app, usecase.NewSendService(manager, resolver, repo, cfg))
	InitRestSettings(app, usecase.NewSettingsService(repo))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func TestStatusOfUnknownTenantIsIdle(t *testing.T) {
	app := newTestServer(t)

	status, env := doJSON(t, app, http.MethodGet, "/app/tenant-1/status", nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if env.Code != "SUCCESS" {
		t.Fatalf("unexpected code %q", env.Code)
	}

	var results struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Results, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.Status != "idle" {
		t.Fatalf("expected idle status, got %q", results.Status)
	}
}

func TestQRWithoutPairingInProgressIsNotFound(t *testing.T) {
	app := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/app/tenant-1/qr", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSendTextWithoutReadySessionIsConflict(t *testing.T) {
	app := newTestServer(t)

	status, env := doJSON(t, app, http.MethodPost, "/send/tenant-1/text", map[string]any{
		"recipient": "201234567890",
		"message": "hello",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if env.Code != "SESSION_NOT_READY" {
		t.Fatalf("unexpected code %q", env.Code)
	}
}

func TestSendTextValidationFailureIsBadRequest(t *testing.T) {
	app := newTestServer(t)

	status, env := doJSON(t, app, http.MethodPost, "/send/tenant-1/text", map[string]any{
		"message": "missing phone",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if env.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected code %q", env.Code)
	}
}

func TestSettingsRoundTripHidesSecret(t *testing.T) {
	app := newTestServer(t)

	status, _ := doJSON(t, app, http.MethodPut, "/settings/tenant-1", map[string]any{
		"webhook_url":    "https://example.com/hook",
		"webhook_secret": "super-secret",
	})
	if status != http.StatusOK {
		t.Fatalf("unexpected save status %d", status)
	}

	status, env := doJSON(t, app, http.MethodGet, "/settings/tenant-1", nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected get status %d", status)
	}

	var results map[string]any
	if err := json.Unmarshal(env.Results, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results["webhook_url"] != "https://example.com/hook" {
		t.Fatalf("unexpected webhook url %v", results["webhook_url"])
	}
	if results["webhook_secret_set"] != true {
		t.Fatalf("expected webhook_secret_set to be true")
	}
	if _, leaked := results["webhook_secret"]; leaked {
		t.Fatalf("webhook secret must not be echoed back")
	}
}
