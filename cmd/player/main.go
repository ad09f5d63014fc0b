// Package main provides the player daemon entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/api/httpapi"
	"github.com/neobelieve/tonhub/internal/app/player"
	"github.com/neobelieve/tonhub/internal/app/queue"
	"github.com/neobelieve/tonhub/internal/app/remote"
	"github.com/neobelieve/tonhub/internal/app/resolver"
	"github.com/neobelieve/tonhub/internal/app/service"
	"github.com/neobelieve/tonhub/internal/domain/track"
	"github.com/neobelieve/tonhub/internal/infra/backend"
	"github.com/neobelieve/tonhub/internal/infra/config"
	"github.com/neobelieve/tonhub/internal/infra/logger"
	"github.com/neobelieve/tonhub/internal/infra/peer"
	"github.com/neobelieve/tonhub/internal/infra/spotify"
	"github.com/neobelieve/tonhub/internal/infra/state"
)

var (
	app        = kingpin.New("tonhub", "tonhub music player daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()
	instanceID := uuid.New().String()

	store := state.NewStore(cfg.State.File)

	backendClient, err := backend.New(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.Timeout(),
		SearchTimeout: cfg.Backend.SearchTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	// Cover lookup is optional; the resolver works without it.
	var covers resolver.CoverLookup
	if cfg.Spotify.Enabled() {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
		covers = spotifyClient
		zlog.Info().Msg("Spotify cover lookup enabled")
	}

	surface := player.New()
	defer surface.Close()

	q := queue.New(store)
	q.Load()

	// After a single-track play the queue repopulates itself from the
	// backend's recent history, keeping "next" meaningful.
	res := resolver.New(resolver.Config{
		Backend: backendClient,
		Covers:  covers,
		OnRecent: func(tracks []track.Track) {
			var currentID string
			if cur := surface.Current(); cur != nil {
				currentID = cur.ID
			}
			q.Refill(tracks, currentID)
		},
	})

	peerClient := peer.New(peer.Config{
		Timeout:  cfg.Remote.ProbeTimeout(),
		PlayerID: instanceID,
	})

	remoteCtl := remote.New(remote.Config{
		Peer:         peerClient,
		Local:        surface,
		Store:        store,
		PollInterval: cfg.Remote.PollInterval(),
	})
	defer remoteCtl.Close()
	remoteCtl.Load()

	svc := service.New(service.Config{
		Queue:    q,
		Surface:  surface,
		Resolver: res,
		Remote:   remoteCtl,
		Store:    store,
	})
	svc.Start()
	defer svc.Close()

	handler := httpapi.New(httpapi.Config{
		Player:     svc,
		Lyrics:     backendClient,
		Name:       cfg.Player.Name,
		DeviceType: cfg.Player.DeviceType,
		InstanceID: instanceID,
	})
	server := httpapi.NewServer(cfg.Server.Addr, handler)
	serverErrCh := server.Start()

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	if err := server.Shutdown(context.Background()); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Player stopped")
	return nil
}
