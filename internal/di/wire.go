//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketMood/pkg/config"
	"MarketMood/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideStateStore,
		ProvidePersistence,
		ProvideClickHouseClient,
		ProvideCache,
		ProvideKafkaPublisher,

		// Sources and analytics
		ProvideRegistry,
		ProvideSnapshotSource,
		ProvideFetcher,
		ProvideAnalyticsEngine,

		// Use cases
		ProvideSnapshotService,
		ProvideHub,
		ProvideRetentionService,
		ProvidePipelineRunner,
		ProvideScheduler,
		ProvideHistoryService,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
