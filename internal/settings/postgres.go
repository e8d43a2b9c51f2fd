package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"checkout/internal/pidl/models"
	txcontext "checkout/pkg/platform/tx"
)

// Schema creates the partner settings table. Country is '' for partner-wide
// rows.
const Schema = `
CREATE TABLE IF NOT EXISTS partner_settings (
	partner             TEXT NOT NULL,
	country             TEXT NOT NULL DEFAULT '',
	template            TEXT NOT NULL DEFAULT '',
	redirection_pattern TEXT NOT NULL DEFAULT '',
	features            JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (partner, country)
)`

// PostgresProvider reads partner settings managed outside the service.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed settings provider.
func NewPostgres(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *PostgresProvider) executor(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

// EnsureSchema creates the settings table if it does not exist.
func (p *PostgresProvider) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create partner_settings: %w", err)
	}
	return nil
}

func (p *PostgresProvider) GetSetting(ctx context.Context, partner, country string) (*models.PartnerExperienceSetting, error) {
	partner, country = normalize(partner), normalize(country)
	query := `
		SELECT partner, country, template, redirection_pattern, features
		FROM partner_settings
		WHERE partner = $1 AND country = ANY($2)
		ORDER BY country DESC
		LIMIT 1
	`
	var (
		s        models.PartnerExperienceSetting
		features []byte
	)
	err := p.executor(ctx).QueryRowContext(ctx, query, partner, pq.Array([]string{country, ""})).
		Scan(&s.Partner, &s.Country, &s.Template, &s.RedirectionPattern, &features)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get partner setting: %w", err)
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &s.Features); err != nil {
			return nil, fmt.Errorf("decode features for partner %s: %w", partner, err)
		}
	}
	if len(s.Features) == 0 {
		s.Features = nil
	}
	s.Source = "postgres:" + s.Partner
	if s.Country != "" {
		s.Source += "/" + s.Country
	}
	return &s, nil
}

// Upsert writes a setting, replacing any existing row for its scope.
func (p *PostgresProvider) Upsert(ctx context.Context, setting *models.PartnerExperienceSetting) error {
	if setting == nil || normalize(setting.Partner) == "" {
		return fmt.Errorf("partner setting requires a partner")
	}
	features := setting.Features
	if features == nil {
		features = map[string]models.FeatureSetting{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	return txcontext.Run(ctx, p.db, func(ctx context.Context) error {
		query := `
			INSERT INTO partner_settings (partner, country, template, redirection_pattern, features, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (partner, country) DO UPDATE SET
				template = EXCLUDED.template,
				redirection_pattern = EXCLUDED.redirection_pattern,
				features = EXCLUDED.features,
				updated_at = EXCLUDED.updated_at
		`
		_, err := p.executor(ctx).ExecContext(ctx, query,
			normalize(setting.Partner), normalize(setting.Country),
			setting.Template, setting.RedirectionPattern, raw)
		if err != nil {
			return fmt.Errorf("upsert partner setting: %w", err)
		}
		return nil
	})
}

// Delete removes the setting for partner and country.
func (p *PostgresProvider) Delete(ctx context.Context, partner, country string) error {
	_, err := p.executor(ctx).ExecContext(ctx,
		`DELETE FROM partner_settings WHERE partner = $1 AND country = $2`,
		normalize(partner), normalize(country))
	if err != nil {
		return fmt.Errorf("delete partner setting: %w", err)
	}
	return nil
}
