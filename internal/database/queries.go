package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ytsummarizer/internal/domain"
)

// ProviderSettings returns the stored settings for userID. A user without
// a row gets zero settings and no error.
func (d *Database) ProviderSettings(ctx context.Context, userID int64) (domain.ProviderSettings, error) {
	query := "select provider, api_key, model, base_url from provider_settings where user_id = ?"

	settings := domain.ProviderSettings{UserID: userID}

	var provider string

	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&provider,
		&settings.APIKey,
		&settings.Model,
		&settings.BaseURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return domain.ProviderSettings{}, fmt.Errorf("failed to execute query: %w", err)
	}

	settings.Provider, err = domain.ParseProvider(provider)
	if err != nil {
		return domain.ProviderSettings{}, fmt.Errorf("failed to parse provider: %w", err)
	}

	return settings, nil
}

// UpsertProviderSettings stores settings. An empty API key keeps the stored
// one as long as the provider does not change.
func (d *Database) UpsertProviderSettings(ctx context.Context, settings domain.ProviderSettings) error {
	if settings.Provider == "" {
		return errors.New("provider is empty")
	}

	query := `insert into provider_settings (user_id, provider, api_key, model, base_url)
	values (?, ?, ?, ?, ?)
	on conflict (user_id) do update set
		api_key = case
			when excluded.api_key = '' and provider_settings.provider = excluded.provider
			then provider_settings.api_key
			else excluded.api_key
		end,
		provider = excluded.provider,
		model = excluded.model,
		base_url = excluded.base_url,
		updated_at = current_timestamp`

	_, err := d.db.ExecContext(ctx, query,
		settings.UserID,
		string(settings.Provider),
		strings.TrimSpace(settings.APIKey),
		strings.TrimSpace(settings.Model),
		strings.TrimSpace(settings.BaseURL),
	)

	return err
}

func (d *Database) ClearProviderSettings(ctx context.Context, userID int64) error {
	query := "delete from provider_settings where user_id = ?"

	_, err := d.db.ExecContext(ctx, query, userID)

	return err
}
