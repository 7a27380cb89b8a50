package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// BrokerConfig declares one venue connector.
type BrokerConfig struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"` // bridge-a, bridge-b, institutional, ecn
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Account string        `yaml:"account"`
	Mode    string        `yaml:"mode" default:"demo"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Gateway struct {
		Pairs                []string      `yaml:"pairs"`
		DefaultBroker        string        `yaml:"default_broker"`
		SignalCheckInterval  time.Duration `yaml:"signal_check_interval" default:"15m"`
		MonitorInterval      time.Duration `yaml:"monitor_interval" default:"10s"`
		RealtimeDebounce     time.Duration `yaml:"realtime_debounce" default:"500ms"`
		TradeCooldown        time.Duration `yaml:"trade_cooldown" default:"3m"`
		MaxNewTradesPerCycle int           `yaml:"max_new_trades_per_cycle" default:"1"`
		MaxOrdersPerMinute   float64       `yaml:"max_orders_per_minute" default:"6"`
		BridgeMaxAge         time.Duration `yaml:"bridge_max_age" default:"90s"`
		Gate                 struct {
			AllowedAssetClasses []string `yaml:"allowed_asset_classes"`
			MinConfidence       float64  `yaml:"min_confidence" default:"55"`
			MinStrength         float64  `yaml:"min_strength" default:"50"`
			RequireReadiness    bool     `yaml:"require_readiness"`
			MinReadyLayers      int      `yaml:"min_ready_layers" default:"3"`
			MinConfluence       float64  `yaml:"min_confluence" default:"60"`
		} `yaml:"gate"`
	} `yaml:"gateway"`
	Combiner struct {
		EconomicWeight     float64 `yaml:"economic_weight" default:"0.28"`
		NewsWeight         float64 `yaml:"news_weight" default:"0.32"`
		TechnicalWeight    float64 `yaml:"technical_weight" default:"0.40"`
		Gain               float64 `yaml:"gain" default:"1.15"`
		DirectionThreshold float64 `yaml:"direction_threshold" default:"20"`
		ConfidenceFloor    float64 `yaml:"confidence_floor" default:"35"`
		StopATRMultiple    float64 `yaml:"stop_atr_multiple" default:"1.5"`
		TargetATRMultiple  float64 `yaml:"target_atr_multiple" default:"2.5"`
	} `yaml:"combiner"`
	Engine struct {
		Units       float64       `yaml:"units" default:"10000"`
		QuoteMaxAge time.Duration `yaml:"quote_max_age" default:"30s"`
	} `yaml:"engine"`
	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold" default:"5"`
		SuccessThreshold int           `yaml:"success_threshold" default:"2"`
		Timeout          time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"breaker"`
	Router struct {
		AuditCap   int  `yaml:"audit_cap" default:"500"`
		KillSwitch bool `yaml:"kill_switch"`
	} `yaml:"router"`
	Brokers []BrokerConfig `yaml:"brokers"`
	Kafka   struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"tradegate.events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tradegate"`
		Table            string        `yaml:"table" default:"tradegate.order_audit"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"stream"`
	Analysis struct {
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout" default:"10s"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"60s"`
	} `yaml:"analysis"`
	Bridge struct {
		Enabled  bool          `yaml:"enabled"`
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"2s"`
	} `yaml:"bridge"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Fill unset fields from struct tags
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("PAIRS"); v != "" {
		c.Gateway.Pairs = strings.Split(v, ",")
	}
	if v := os.Getenv("ANALYSIS_URL"); v != "" {
		c.Analysis.BaseURL = v
	}
	if v := os.Getenv("BRIDGE_API_KEY"); v != "" {
		c.Bridge.APIKey = v
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Analysis.BaseURL == "" {
		return fmt.Errorf("analysis.base_url is required")
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("at least one broker must be configured")
	}
	for i, b := range c.Brokers {
		if b.Name == "" {
			return fmt.Errorf("brokers[%d].name is required", i)
		}
		switch b.Type {
		case "bridge-a", "bridge-b", "institutional", "ecn":
		default:
			return fmt.Errorf("brokers[%d].type must be one of bridge-a, bridge-b, institutional, ecn, got %q", i, b.Type)
		}
		if b.BaseURL == "" {
			return fmt.Errorf("brokers[%d].base_url is required", i)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when stream is enabled")
	}
	return nil
}
