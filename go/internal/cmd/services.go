package main

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyv/supplybot/go/clients"
	"github.com/andreyv/supplybot/go/clients/ozon"
	"github.com/andreyv/supplybot/go/internal/engine"
	"github.com/andreyv/supplybot/go/internal/events"
	"github.com/andreyv/supplybot/go/internal/gateway"
	"github.com/andreyv/supplybot/go/internal/store"
)

// Services bundles everything the HTTP surface and the runners share.
type Services struct {
	Engine     *engine.Orchestrator
	Bus        *events.ChannelBus
	Gateway    *gateway.ConnectionManager
	WSHandler  *gateway.WebSocketHandler
	APIFactory engine.APIFactory

	natsBus *events.NATSBus
}

func setupServices(cfg *ServiceConfig, stores *store.Postgres) (*Services, error) {
	retry := clients.RetryPolicy{
		Attempts:  uint(cfg.HTTP.RetryAttempts),
		BaseDelay: time.Duration(cfg.HTTP.RetryBaseMS) * time.Millisecond,
	}
	newAPI := func(creds ozon.Credentials) engine.MarketplaceAPI {
		return ozon.NewClient(cfg.Ozon.BaseURL, creds,
			ozon.WithTimeout(cfg.HTTPTimeout()),
			ozon.WithRetryPolicy(retry),
		)
	}

	channelBus := events.NewChannelBus(256)
	var bus events.Bus = channelBus
	var natsBus *events.NATSBus
	if cfg.NATS.Enabled {
		nb, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect event bus: %w", err)
		}
		natsBus = nb
		bus = events.MultiBus{channelBus, nb}
	}

	orch := engine.NewOrchestrator(newAPI, stores, stores, bus, engine.ConfigFromEnv(), nil)

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	return &Services{
		Engine:     orch,
		Bus:        channelBus,
		Gateway:    cm,
		WSHandler:  gateway.NewWebSocketHandler(cm),
		APIFactory: newAPI,
		natsBus:    natsBus,
	}, nil
}

// RelayEvents feeds the in-process bus into the websocket gateway until the
// context ends.
func (s *Services) RelayEvents(ctx context.Context) {
	gateway.RelayBus(ctx, s.Bus, s.Gateway)
}

func (s *Services) Close() {
	if s.natsBus != nil {
		s.natsBus.Close()
	}
}
