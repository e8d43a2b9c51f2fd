package settings

import (
	"context"
	"log/slog"
	"sync"

	"checkout/internal/engine/ports"
	"checkout/internal/pidl/models"
	"checkout/pkg/platform/circuit"
)

// GuardedProvider fronts a remote provider with a circuit breaker. Every
// answer is remembered per scope; once the breaker opens, a failed lookup is
// served from that memory. A scope never answered before still fails.
type GuardedProvider struct {
	primary ports.SettingsProvider
	breaker *circuit.Breaker
	logger  *slog.Logger

	mu   sync.RWMutex
	last map[scope]*models.PartnerExperienceSetting
}

// NewGuarded wraps primary.
func NewGuarded(primary ports.SettingsProvider, breaker *circuit.Breaker, logger *slog.Logger) *GuardedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedProvider{
		primary: primary,
		breaker: breaker,
		logger:  logger,
		last:    map[scope]*models.PartnerExperienceSetting{},
	}
}

func (g *GuardedProvider) GetSetting(ctx context.Context, partner, country string) (*models.PartnerExperienceSetting, error) {
	key := scope{partner: normalize(partner), country: normalize(country)}
	s, err := g.primary.GetSetting(ctx, partner, country)
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "settings circuit closed", "breaker", g.breaker.Name())
		}
		g.mu.Lock()
		g.last[key] = s.Clone()
		g.mu.Unlock()
		return s, nil
	}

	useFallback, change := g.breaker.RecordFailure()
	if change.Opened {
		g.logger.WarnContext(ctx, "settings circuit opened", "breaker", g.breaker.Name(), "error", err)
	}
	if !useFallback {
		return nil, err
	}
	g.mu.RLock()
	cached, ok := g.last[key]
	g.mu.RUnlock()
	if !ok {
		return nil, err
	}
	g.logger.DebugContext(ctx, "serving remembered setting",
		"partner", key.partner,
		"country", key.country,
		"breaker", g.breaker.Name(),
	)
	return cached.Clone(), nil
}
