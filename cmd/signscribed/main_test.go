package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"signscribe/internal/catalog"
	"signscribe/internal/logging"
	"signscribe/internal/notifications"
	"signscribe/internal/predict"
	"signscribe/internal/testsupport"
)

func TestPredictServiceWithoutModelIsNotReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, closeFn, err := buildPredictService(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildPredictService: %v", err)
	}
	defer closeFn()
	if svc.Ready() {
		t.Fatal("service without model must not report ready")
	}
	if _, err := svc.Predict(context.Background(), "s", "data:image/jpeg;base64,AAAA"); !errors.Is(err, predict.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestPredictServiceFallsBackWhenModelMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Predict.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	svc, closeFn, err := buildPredictService(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildPredictService: %v", err)
	}
	defer closeFn()
	if svc.Ready() {
		t.Fatal("unloadable model must leave the service not ready")
	}
}

func TestSeedCatalogUsesConfiguredFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seed := filepath.Join(t.TempDir(), "videos.yaml")
	if err := os.WriteFile(seed, []byte("- id: one\n  title: One\n  category: basics\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	cfg.Catalog.SeedFile = seed
	ctx := context.Background()

	if err := seedCatalog(ctx, cfg, store, logging.NewNop()); err != nil {
		t.Fatalf("seedCatalog: %v", err)
	}
	if err := seedCatalog(ctx, cfg, store, logging.NewNop()); err != nil {
		t.Fatalf("second seedCatalog: %v", err)
	}
	count, err := store.Count(ctx, catalog.Collection)
	if err != nil || count != 1 {
		t.Fatalf("count = %d, %v; want 1", count, err)
	}

	cfg.Catalog.SeedFile = filepath.Join(t.TempDir(), "absent.yaml")
	if err := seedCatalog(ctx, cfg, store, logging.NewNop()); err == nil {
		t.Fatal("expected missing seed file to fail")
	}
}

func TestAuthProviderRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider, err := buildAuthProvider(cfg, store, notifications.NewService(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("buildAuthProvider: %v", err)
	}
	identity, err := provider.SignUp(context.Background(), "Ana", "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := provider.Verify(context.Background(), identity.Token); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestAuthProviderPublishesResetTokens(t *testing.T) {
	bodies := make(chan string, 1)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
	}))
	defer ntfy.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ntfy.URL
	store := testsupport.MustOpenStore(t, cfg)
	provider, err := buildAuthProvider(cfg, store, notifications.NewService(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("buildAuthProvider: %v", err)
	}
	ctx := context.Background()
	if _, err := provider.SignUp(ctx, "Ana", "ana@example.com", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := provider.ResetPassword(ctx, "ana@example.com"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	var body string
	select {
	case body = <-bodies:
	default:
		t.Fatal("expected the reset token to be published")
	}
	var token string
	for _, line := range strings.Split(body, "\n") {
		if rest, ok := strings.CutPrefix(line, "Token: "); ok {
			token = rest
		}
	}
	if token == "" {
		t.Fatalf("no token in notification %q", body)
	}
	if err := provider.ConfirmReset(ctx, token, "secret2"); err != nil {
		t.Fatalf("ConfirmReset with published token: %v", err)
	}
}

func TestLogPreflightCountsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if n := logPreflight(context.Background(), cfg, logging.NewNop()); n != 0 {
		t.Fatalf("expected clean preflight, got %d failures", n)
	}
	cfg.Predict.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	if n := logPreflight(context.Background(), cfg, logging.NewNop()); n != 1 {
		t.Fatalf("expected one failure for the missing model, got %d", n)
	}
}
