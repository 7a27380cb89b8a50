package di

import (
	"context"
	"fmt"
	"time"

	"TradeGate/internal/broker"
	"TradeGate/internal/broker/venues"
	"TradeGate/internal/domain/repository"
	"TradeGate/internal/engine"
	"TradeGate/internal/handler/api"
	internalrepo "TradeGate/internal/repository"
	"TradeGate/internal/service/analysis"
	bridgesvc "TradeGate/internal/service/bridge"
	"TradeGate/internal/service/cache"
	"TradeGate/internal/service/stream"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/breaker"
	pkgch "TradeGate/pkg/clickhouse"
	"TradeGate/pkg/config"
	xhttp "TradeGate/pkg/http"
	pkgkafka "TradeGate/pkg/kafka"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
	"TradeGate/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBreakerRegistry creates the shared circuit-breaker registry.
func ProvideBreakerRegistry(cfg *config.Config) *breaker.Registry {
	return breaker.NewRegistry(
		breaker.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		breaker.WithSuccessThreshold(cfg.Breaker.SuccessThreshold),
		breaker.WithTimeout(cfg.Breaker.Timeout),
	)
}

// ProvideConnectors builds one venue connector per configured broker.
func ProvideConnectors(cfg *config.Config) ([]repository.BrokerConnector, error) {
	out := make([]repository.BrokerConnector, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		vcfg := venues.Config{
			Name:    b.Name,
			BaseURL: b.BaseURL,
			APIKey:  b.APIKey,
			Account: b.Account,
			Mode:    b.Mode,
			Timeout: b.Timeout,
		}
		switch b.Type {
		case "bridge-a":
			out = append(out, venues.NewBridgeA(vcfg))
		case "bridge-b":
			out = append(out, venues.NewBridgeB(vcfg))
		case "institutional":
			out = append(out, venues.NewInstitutional(vcfg))
		case "ecn":
			out = append(out, venues.NewECN(vcfg))
		default:
			return nil, fmt.Errorf("unknown broker type %q", b.Type)
		}
	}
	return out, nil
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// audit backend is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := internalrepo.SchemaStatements(cfg.ClickHouse.Database, cfg.ClickHouse.Table)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideAuditStore creates the persistent audit store, or nil when
// ClickHouse is disabled (the router's in-memory ring still applies).
func ProvideAuditStore(chClient *pkgch.Client, cfg *config.Config) repository.AuditStore {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseAuditStore(chClient.DB(), cfg.ClickHouse.Table)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when events are
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventSink creates the gateway event sink, or nil when Kafka is
// disabled (publishing degrades to a no-op).
func ProvideEventSink(producer *pkgkafka.Producer, cfg *config.Config) repository.EventSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventSink(producer, cfg.Kafka.Topic)
}

// ProvideCache creates the shared bytes cache: Redis when configured,
// in-process TTL cache otherwise.
func ProvideCache(cfg *config.Config) cache.BytesCache {
	if cfg.Redis.Enabled {
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return cache.NewTTLCache()
}

// ProvideAnalysisSource creates the HTTP analysis-source client.
func ProvideAnalysisSource(cfg *config.Config, c cache.BytesCache, log *logger.Logger) repository.AnalysisSource {
	return analysis.New(analysis.Config{
		BaseURL:  cfg.Analysis.BaseURL,
		Timeout:  cfg.Analysis.Timeout,
		CacheTTL: cfg.Analysis.CacheTTL,
	}, c, log)
}

// ProvideBridgeSession creates the terminal-bridge session, or nil when
// disabled (brokers are then treated as connected).
func ProvideBridgeSession(cfg *config.Config, c cache.BytesCache, log *logger.Logger) repository.BridgeSession {
	if !cfg.Bridge.Enabled {
		return nil
	}
	return bridgesvc.New(bridgesvc.Config{
		BaseURL:  cfg.Bridge.BaseURL,
		APIKey:   cfg.Bridge.APIKey,
		Timeout:  cfg.Bridge.Timeout,
		CacheTTL: cfg.Bridge.CacheTTL,
	}, c, log)
}

// ProvideRouter creates the broker router over all configured venues.
func ProvideRouter(
	connectors []repository.BrokerConnector,
	breakers *breaker.Registry,
	store repository.AuditStore,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *broker.Router {
	opts := []broker.RouterOption{
		broker.WithAuditCap(cfg.Router.AuditCap),
		broker.WithKillSwitch(cfg.Router.KillSwitch),
	}
	if cfg.Gateway.DefaultBroker != "" {
		opts = append(opts, broker.WithDefaultBroker(cfg.Gateway.DefaultBroker))
	}
	if store != nil {
		opts = append(opts, broker.WithAuditStore(store))
	}
	return broker.NewRouter(connectors, breakers, m, log, opts...)
}

// ProvideCombiner creates the signal combiner.
func ProvideCombiner(cfg *config.Config, m repository.Metrics) *usecase.Combiner {
	return usecase.NewCombiner(usecase.CombinerConfig{
		EconomicWeight:     cfg.Combiner.EconomicWeight,
		NewsWeight:         cfg.Combiner.NewsWeight,
		TechnicalWeight:    cfg.Combiner.TechnicalWeight,
		Gain:               cfg.Combiner.Gain,
		DirectionThreshold: cfg.Combiner.DirectionThreshold,
		ConfidenceFloor:    cfg.Combiner.ConfidenceFloor,
		StopATRMultiple:    cfg.Combiner.StopATRMultiple,
		TargetATRMultiple:  cfg.Combiner.TargetATRMultiple,
	}, m)
}

// ProvideEngine creates the default trading engine.
func ProvideEngine(
	cfg *config.Config,
	sources repository.AnalysisSource,
	combiner *usecase.Combiner,
	rt *broker.Router,
	bridge repository.BridgeSession,
	m repository.Metrics,
	log *logger.Logger,
) repository.TradingEngine {
	return engine.New(engine.Config{
		Units:       cfg.Engine.Units,
		QuoteMaxAge: cfg.Engine.QuoteMaxAge,
	}, sources, combiner, rt, bridge, m, log)
}

// ProvideGateway creates the auto-trading gateway.
func ProvideGateway(
	cfg *config.Config,
	eng repository.TradingEngine,
	bridge repository.BridgeSession,
	events repository.EventSink,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Gateway {
	return usecase.NewGateway(usecase.GatewayConfig{
		Pairs:                cfg.Gateway.Pairs,
		DefaultBroker:        cfg.Gateway.DefaultBroker,
		SignalCheckInterval:  cfg.Gateway.SignalCheckInterval,
		MonitorInterval:      cfg.Gateway.MonitorInterval,
		RealtimeDebounce:     cfg.Gateway.RealtimeDebounce,
		TradeCooldown:        cfg.Gateway.TradeCooldown,
		MaxNewTradesPerCycle: cfg.Gateway.MaxNewTradesPerCycle,
		MaxOrdersPerMinute:   cfg.Gateway.MaxOrdersPerMinute,
		BridgeMaxAge:         cfg.Gateway.BridgeMaxAge,
		Gate: usecase.GateConfig{
			AllowedAssetClasses: cfg.Gateway.Gate.AllowedAssetClasses,
			MinConfidence:       cfg.Gateway.Gate.MinConfidence,
			MinStrength:         cfg.Gateway.Gate.MinStrength,
			RequireReadiness:    cfg.Gateway.Gate.RequireReadiness,
			MinReadyLayers:      cfg.Gateway.Gate.MinReadyLayers,
			MinConfluence:       cfg.Gateway.Gate.MinConfluence,
		},
	}, eng, bridge, events, m, log)
}

// ProvideStreamClient creates the realtime signal-stream client, or nil
// when the stream is disabled.
func ProvideStreamClient(cfg *config.Config, log *logger.Logger) *stream.Client {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.New(stream.Config{
		URL:            cfg.Stream.URL,
		APIKey:         cfg.Stream.APIKey,
		Pairs:          cfg.Gateway.Pairs,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		PingInterval:   cfg.Stream.PingInterval,
	}, log)
}

// ProvideHTTPHandler creates the auto-trading API handler.
func ProvideHTTPHandler(log *logger.Logger, gw *usecase.Gateway, rt *broker.Router) xhttp.Handler {
	return api.NewAutoTradeHandler(log, gw, rt)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	gw *usecase.Gateway,
	streamCli *stream.Client,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, gw, streamCli, producer, chClient, handler)
}
