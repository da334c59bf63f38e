package main

import (
	"context"
	"fmt"

	"github.com/Moonflower2022/pair-programming-challenges/go/internal/bridge"
	"github.com/Moonflower2022/pair-programming-challenges/go/internal/room"
	"github.com/Moonflower2022/pair-programming-challenges/go/internal/storage"
	"github.com/Moonflower2022/pair-programming-challenges/go/internal/timer"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// roomStore is a timer store the process owns and must close on shutdown.
type roomStore interface {
	timer.Store
	Close() error
}

// Services wires the store, room manager, and optional cross-node bridge.
type Services struct {
	Store   roomStore
	Manager *room.Manager
	Handler *room.Handler
	Bridge  *bridge.Bridge
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	store, err := setupStore(ctx, config)
	if err != nil {
		return nil, err
	}

	var (
		eventBridge *bridge.Bridge
		relay       room.RelayPublisher
	)
	if config.NATS.URL != "" {
		bridgeConfig := bridge.DefaultConfig()
		bridgeConfig.URL = config.NATS.URL
		nodeID := uuid.New().String()[:8]

		eventBridge, err = bridge.New(nodeID, bridgeConfig)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create room event bridge: %w", err)
		}
		relay = eventBridge
		log.Info().Str("node_id", nodeID).Str("nats_url", config.NATS.URL).Msg("room event bridge enabled")
	}

	manager := room.NewManager(room.DefaultConnectionConfig(), store, clockwork.NewRealClock(), relay)

	return &Services{
		Store:   store,
		Manager: manager,
		Handler: room.NewHandler(manager),
		Bridge:  eventBridge,
	}, nil
}

func setupStore(ctx context.Context, config *Config) (roomStore, error) {
	switch config.Storage.Backend {
	case "postgres":
		store, err := storage.NewPostgresStore(ctx, config.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		log.Info().Msg("using postgres timer store")
		return store, nil
	default:
		store, err := storage.OpenBolt(config.Storage.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		log.Info().Str("path", config.Storage.BoltPath).Msg("using bolt timer store")
		return store, nil
	}
}
