package database

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"ytsummarizer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestProviderSettingsMissingUser(t *testing.T) {
	db := newTestDatabase(t)

	settings, err := db.ProviderSettings(context.Background(), 42)
	if err != nil {
		t.Fatalf("ProviderSettings() error: %v", err)
	}

	if settings.UserID != 42 || settings.Configured() {
		t.Fatalf("expected empty settings, got %+v", settings)
	}
}

func TestUpsertProviderSettings(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	err := db.UpsertProviderSettings(ctx, domain.ProviderSettings{
		UserID:   1,
		Provider: domain.ProviderOpenAI,
		APIKey:   " sk-1 ",
		Model:    "gpt-4o-mini",
		BaseURL:  "https://api.example.com/v1",
	})
	if err != nil {
		t.Fatalf("UpsertProviderSettings() error: %v", err)
	}

	got, err := db.ProviderSettings(ctx, 1)
	if err != nil {
		t.Fatalf("ProviderSettings() error: %v", err)
	}

	want := domain.ProviderSettings{
		UserID:   1,
		Provider: domain.ProviderOpenAI,
		APIKey:   "sk-1",
		Model:    "gpt-4o-mini",
		BaseURL:  "https://api.example.com/v1",
	}
	if got != want {
		t.Fatalf("unexpected settings %+v", got)
	}

	err = db.UpsertProviderSettings(ctx, domain.ProviderSettings{
		UserID:   1,
		Provider: domain.ProviderOpenAI,
		Model:    "other-model",
		BaseURL:  "https://api.example.com/v1",
	})
	if err != nil {
		t.Fatalf("UpsertProviderSettings() error: %v", err)
	}

	got, _ = db.ProviderSettings(ctx, 1)
	if got.APIKey != "sk-1" || got.Model != "other-model" {
		t.Fatalf("expected key kept and model updated, got %+v", got)
	}

	err = db.UpsertProviderSettings(ctx, domain.ProviderSettings{UserID: 1, Provider: domain.ProviderAnthropic})
	if err != nil {
		t.Fatalf("UpsertProviderSettings() error: %v", err)
	}

	got, _ = db.ProviderSettings(ctx, 1)
	if got.Provider != domain.ProviderAnthropic || got.APIKey != "" {
		t.Fatalf("expected key dropped on provider change, got %+v", got)
	}

	if err = db.ClearProviderSettings(ctx, 1); err != nil {
		t.Fatalf("ClearProviderSettings() error: %v", err)
	}

	got, _ = db.ProviderSettings(ctx, 1)
	if got.Provider != "" {
		t.Fatalf("expected cleared settings, got %+v", got)
	}
}

func TestLegacySettingsAreMigrated(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open DB: %v", err)
	}

	m, err := newMigrate(legacy)
	if err != nil {
		t.Fatalf("newMigrate() error: %v", err)
	}

	if err = m.Migrate(1); err != nil {
		t.Fatalf("migrate to legacy layout: %v", err)
	}

	_, err = legacy.ExecContext(ctx, `insert into legacy_settings
		(user_id, provider, anthropic_api_key, openai_api_key, openai_base_url, openai_model)
		values
		(1, 'anthropic', 'ak-1', 'sk-unused', '', ''),
		(2, 'openai', '', 'sk-2', 'https://api.moonshot.ai/v1', ''),
		(3, 'openai', '', 'sk-3', 'https://openrouter.ai/api/v1', 'meta/llama')`)
	if err != nil {
		t.Fatalf("insert legacy rows: %v", err)
	}

	if err = legacy.Close(); err != nil {
		t.Fatalf("close legacy DB: %v", err)
	}

	db, err := New(ctx, dbPath, testLogger())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tests := []struct {
		userID int64
		want   domain.ProviderSettings
	}{
		{1, domain.ProviderSettings{UserID: 1, Provider: domain.ProviderAnthropic, APIKey: "ak-1", Model: "claude-sonnet-4-20250514"}},
		{2, domain.ProviderSettings{UserID: 2, Provider: domain.ProviderOpenAI, APIKey: "sk-2", Model: "kimi-k2-0905-preview", BaseURL: "https://api.moonshot.ai/v1"}},
		{3, domain.ProviderSettings{UserID: 3, Provider: domain.ProviderOpenAI, APIKey: "sk-3", Model: "meta/llama", BaseURL: "https://openrouter.ai/api/v1"}},
	}

	for _, test := range tests {
		got, err := db.ProviderSettings(ctx, test.userID)
		if err != nil {
			t.Fatalf("ProviderSettings(%d) error: %v", test.userID, err)
		}

		if got != test.want {
			t.Fatalf("user %d: got %+v, want %+v", test.userID, got, test.want)
		}
	}

	var legacyTables int
	err = db.db.QueryRowContext(ctx,
		"select count(*) from sqlite_master where type = 'table' and name = 'legacy_settings'").Scan(&legacyTables)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}

	if legacyTables != 0 {
		t.Fatalf("expected legacy table to be dropped")
	}
}
