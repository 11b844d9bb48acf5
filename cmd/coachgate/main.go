// Package main is the entry point for the coachgate service.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/howard-nolan/coachgate/internal/config"
	"github.com/howard-nolan/coachgate/internal/fallback"
	"github.com/howard-nolan/coachgate/internal/gateway"
	"github.com/howard-nolan/coachgate/internal/logging"
	"github.com/howard-nolan/coachgate/internal/persona"
	"github.com/howard-nolan/coachgate/internal/provider"
	"github.com/howard-nolan/coachgate/internal/server"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(nil, cfg.Logging.Level)

	// Build the two provider slots. The wire format in config selects the
	// codec; everything else is connection settings.
	primary, err := buildProvider(cfg.Providers.Primary)
	if err != nil {
		log.Fatal().Err(err).Msg("building primary provider")
	}
	secondary, err := buildProvider(cfg.Providers.Secondary)
	if err != nil {
		log.Fatal().Err(err).Msg("building secondary provider")
	}
	log.Info().
		Str("primary", cfg.Providers.Primary.Wire).
		Bool("secondary", secondary != nil).
		Msg("providers configured")

	policy := fallback.NewPolicy(fallback.Ordering(cfg.Fallback.Ordering), cfg.Fallback.RetryOn)

	gw := gateway.New(primary, secondary, policy, logging.Sub(log, "gateway"))

	// Load the active character. A missing profile file falls back to the
	// built-in default; a missing taunt book just disables canned lines.
	profile := persona.DefaultProfile()
	if cfg.Persona.Profile != "" {
		p, err := persona.LoadProfile(cfg.Persona.Profile)
		if err != nil {
			log.Fatal().Err(err).Msg("loading character profile")
		}
		profile = *p
	}

	var book *persona.Book
	if profile.Taunts.Enabled && profile.Taunts.File != "" {
		book, err = persona.LoadBook(profile.Taunts.File)
		if err != nil {
			log.Warn().Err(err).Str("file", profile.Taunts.File).
				Msg("taunt book unavailable, canned fallback disabled")
			book = nil
		} else {
			log.Info().Str("file", profile.Taunts.File).Int("lines", book.Len()).
				Msg("taunt book loaded")
		}
	}

	srv := server.New(gw, &profile, book, logging.Sub(log, "server"))

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     srv,
		ReadTimeout: cfg.Server.ReadTimeout,
		// Note: no WriteTimeout — it would cut off long narration
		// streams. Streaming responses are bounded by the client
		// disconnecting or the provider finishing.
	}

	log.Info().Int("port", cfg.Server.Port).Str("character", profile.ID).
		Msg("coachgate listening")

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// buildProvider turns a provider config block into an adapter. A nil block
// (no secondary configured) returns a nil provider, which the gateway
// treats as "slot empty".
func buildProvider(pc *config.ProviderConfig) (provider.Provider, error) {
	if pc == nil {
		return nil, nil
	}

	tiers := make(map[provider.Effort]string, len(pc.Tiers))
	for effort, model := range pc.Tiers {
		tiers[provider.Effort(effort)] = model
	}

	settings := provider.Settings{
		BaseURL:     pc.BaseURL,
		APIKey:      pc.APIKey,
		Model:       pc.Model,
		Tiers:       tiers,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
		TopP:        pc.TopP,
	}

	switch pc.Wire {
	case "responses":
		return provider.NewResponsesProvider(settings, http.DefaultClient), nil
	case "chat":
		return provider.NewChatProvider(settings, http.DefaultClient), nil
	default:
		return nil, fmt.Errorf("unknown wire format %q (want \"responses\" or \"chat\")", pc.Wire)
	}
}
