package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STOREFRONT_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		GRPCAddr string `koanf:"grpc_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Database struct {
		Driver          string        `koanf:"driver"` // mysql | sqlite
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"database"`

	Redis struct {
		Enabled  bool   `koanf:"enabled"`
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL                time.Duration `koanf:"ttl"`
		InvalidationWindow time.Duration `koanf:"invalidation_window"`
	} `koanf:"cache"`

	Rabbit struct {
		Enabled  bool   `koanf:"enabled"`
		URL      string `koanf:"url"`
		Exchange string `koanf:"exchange"`
		Prefetch int    `koanf:"prefetch"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Enabled  bool     `koanf:"enabled"`
		Brokers  []string `koanf:"brokers"`
		GroupID  string   `koanf:"group_id"`
		ClientID string   `koanf:"client_id"`
		Topic    string   `koanf:"topic"`
	} `koanf:"kafka"`

	GRPC struct {
		CertFile       string        `koanf:"cert_file"`
		KeyFile        string        `koanf:"key_file"`
		HealthInterval time.Duration `koanf:"health_interval"`
	} `koanf:"grpc"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		RSAPubPEM string        `koanf:"rsa_pub_pem"`
		RSAPriPEM string        `koanf:"rsa_pri_pem"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Orders struct {
		StrictTransitions bool `koanf:"strict_transitions"`
		MaxPageSize       int  `koanf:"max_page_size"`
		DefaultPageSize   int  `koanf:"default_page_size"`
	} `koanf:"orders"`

	Seed struct {
		AdminUsername string `koanf:"admin_username"`
		AdminPassword string `koanf:"admin_password"`
		AdminEmail    string `koanf:"admin_email"`
	} `koanf:"seed"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix STOREFRONT_, nested with __)
	// e.g. STOREFRONT_DATABASE__DSN, STOREFRONT_REDIS__PASSWORD
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	// comma separated list when overridden from the environment
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "mysql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver %q unsupported (mysql|sqlite)", c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Driver == "mysql" {
		return fmt.Errorf("database.dsn required")
	}
	if c.Security.JWTSecret == "" && c.Security.RSAPubPEM == "" {
		return fmt.Errorf("security.jwt_secret or security.rsa_pub_pem required")
	}
	if c.Orders.MaxPageSize <= 0 {
		return fmt.Errorf("orders.max_page_size must be > 0")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required when redis is enabled")
	}
	if c.Rabbit.Enabled && c.Rabbit.URL == "" {
		return fmt.Errorf("rabbitmq.url required when rabbitmq is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic required when kafka is enabled")
	}
	return nil
}
