//go:build wireinject
// +build wireinject

package di

import (
	"TradeGate/pkg/config"
	"TradeGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Foundation
		ProvideLogger,
		ProvideMetrics,
		ProvideBreakerRegistry,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories and service clients
		ProvideAuditStore,
		ProvideEventSink,
		ProvideAnalysisSource,
		ProvideBridgeSession,
		ProvideConnectors,
		ProvideStreamClient,

		// Core domain
		ProvideRouter,
		ProvideCombiner,
		ProvideEngine,
		ProvideGateway,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
