package config

import (
	// Go Internal Packages
	"time"

	// Local Packages
	errors "sslpay/errors"
)

var DefaultConfig = []byte(`
application: "sslpay"

logger:
  level: "debug"

is_prod_mode: false

server:
  addr: ":8080"

mongo:
  uri: "mongodb://localhost:27017"
  database: "sslpay"

redis:
  uri: "localhost:6379"
  password: ""

kafka:
  enabled: false
  brokers:
    - "localhost:9092"
  topic: "payment-events"
  client_name: "sslpay-producer"

gateway:
  store_id: ""
  store_password: ""
  sandbox: true
  timeout_seconds: 30
  verify_ssl: true
  log_requests: false
  auto_validate_ipn: true
  base_url: ""
  success_url: ""
  fail_url: ""
  cancel_url: ""
  ipn_url: ""
`)

type Config struct {
	Application string  `koanf:"application"`
	Logger      Logger  `koanf:"logger"`
	IsProdMode  bool    `koanf:"is_prod_mode"`
	Server      Server  `koanf:"server"`
	Mongo       Mongo   `koanf:"mongo"`
	Redis       Redis   `koanf:"redis"`
	Kafka       Kafka   `koanf:"kafka"`
	Gateway     Gateway `koanf:"gateway"`
}

type Logger struct {
	Level string `koanf:"level"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Mongo struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type Redis struct {
	URI      string `koanf:"uri"`
	Password string `koanf:"password"`
}

type Kafka struct {
	Enabled    bool     `koanf:"enabled"`
	Brokers    []string `koanf:"brokers"`
	Topic      string   `koanf:"topic"`
	ClientName string   `koanf:"client_name"`
}

// Gateway holds the SSLCommerz store credentials and call policy. The
// core never mutates this; multi-store setups construct one client per
// Gateway value instead of sharing process-wide state.
type Gateway struct {
	StoreID        string `koanf:"store_id"`
	StorePassword  string `koanf:"store_password"`
	Sandbox        bool   `koanf:"sandbox"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	VerifySSL      bool   `koanf:"verify_ssl"`
	LogRequests    bool   `koanf:"log_requests"`
	AutoValidate   bool   `koanf:"auto_validate_ipn"`

	// BaseURL overrides the sandbox/production host selection; used by
	// tests and local gateway simulators.
	BaseURL string `koanf:"base_url"`

	SuccessURL string `koanf:"success_url"`
	FailURL    string `koanf:"fail_url"`
	CancelURL  string `koanf:"cancel_url"`
	IPNURL     string `koanf:"ipn_url"`
}

// Timeout returns the bounded outbound-call timeout, defaulting to 30s.
func (g Gateway) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ve := errors.ValidationErrs()

	if c.Application == "" {
		ve.Add("application", "cannot be empty")
	}
	if c.Logger.Level == "" {
		ve.Add("logger.level", "cannot be empty")
	}
	if c.Server.Addr == "" {
		ve.Add("server.addr", "cannot be empty")
	}
	if c.Mongo.URI == "" {
		ve.Add("mongo.uri", "cannot be empty")
	}
	if c.Mongo.Database == "" {
		ve.Add("mongo.database", "cannot be empty")
	}
	if c.Redis.URI == "" {
		ve.Add("redis.uri", "cannot be empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		ve.Add("kafka.brokers", "cannot be empty")
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		ve.Add("kafka.topic", "cannot be empty")
	}
	if c.Gateway.StoreID == "" {
		ve.Add("gateway.store_id", "cannot be empty")
	}
	if c.Gateway.StorePassword == "" {
		ve.Add("gateway.store_password", "cannot be empty")
	}

	return ve.Err()
}
