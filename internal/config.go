package internal

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreBadger = "badger"
	StoreMongo  = "mongo"
)

type Config struct {
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080"`
	GrpcPort          int           `env:"GRPC_PORT,default=9090"`
	DebugPort         int           `env:"DEBUG_PORT"`
	StoreBackend      string        `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,default=./data/badger"`
	MongoURI          string        `env:"MONGO_URI"`
	MongoDatabase     string        `env:"MONGO_DATABASE,default=messenger"`
	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	PresenceDebounce     time.Duration `env:"PRESENCE_DEBOUNCE,default=0s"`
	TypingTTL            time.Duration `env:"TYPING_TTL,default=5s"`
	AuthTimeout          time.Duration `env:"AUTH_TIMEOUT,default=10s"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait            time.Duration `env:"WRITE_WAIT,default=10s"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=65536"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=5000"`
	ConversationLimit    int           `env:"CONVERSATION_LIMIT,default=100"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL,default=messenger.presence"`
	NatsURL      string `env:"NATS_URL"`
	NatsSubject  string `env:"NATS_SUBJECT,default=presence"`

	// BridgeTimeout bounds each publish so a slow broker cannot stall presence.
	BridgeTimeout time.Duration `env:"BRIDGE_TIMEOUT,default=500ms"`

	OtelEnabled     bool          `env:"OTEL_ENABLED,default=false"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=15s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	SeedDemoUsers   bool          `env:"SEED_DEMO_USERS,default=false"`
	DemoUsers       string        `env:"DEMO_USERS,default=alice bob carol"`
}

// Validate catches settings that decode fine but cannot run.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreBadger:
		if c.BadgerFilepath == "" {
			return fmt.Errorf("BADGER_FILEPATH is required with the %s store", StoreBadger)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required with the %s store", StoreMongo)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBadger, StoreMongo, c.StoreBackend)
	}
	if c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.PresenceDebounce < 0 {
		return fmt.Errorf("PRESENCE_DEBOUNCE must not be negative, got %s", c.PresenceDebounce)
	}
	if len(c.JwtSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	return nil
}

func (c Config) DemoUserNames() []string {
	return strings.Fields(strings.ReplaceAll(c.DemoUsers, ",", " "))
}

func (c Config) AllowedOriginList() []string {
	return strings.Fields(strings.ReplaceAll(c.AllowedOrigins, ",", " "))
}
