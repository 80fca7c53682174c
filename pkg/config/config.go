package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	WebSocket   WebSocketConfig   `mapstructure:"websocket"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	ICE         ICEConfig         `mapstructure:"ice"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type WebSocketConfig struct {
	ReadLimit  int64         `mapstructure:"readLimit"`
	PongWait   time.Duration `mapstructure:"pongWait"`
	PingPeriod time.Duration `mapstructure:"pingPeriod"`
	WriteWait  time.Duration `mapstructure:"writeWait"`
	SendBuffer int           `mapstructure:"sendBuffer"`
}

type MatchmakingConfig struct {
	RepairDelay   time.Duration `mapstructure:"repairDelay"`
	AnonymousName string        `mapstructure:"anonymousName"`
	MaxNameLength int           `mapstructure:"maxNameLength"`
	MailboxSize   int           `mapstructure:"mailboxSize"`
}

type KafkaConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BootstrapServers string `mapstructure:"bootstrapServers"`
	Topic            string `mapstructure:"topic"`
	ClientID         string `mapstructure:"clientId"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	KeyTTL   time.Duration `mapstructure:"keyTTL"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("WSMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket pingPeriod (%s) must be shorter than pongWait (%s)",
			c.WebSocket.PingPeriod, c.WebSocket.PongWait)
	}
	if c.Matchmaking.RepairDelay < 0 {
		return fmt.Errorf("matchmaking repairDelay must not be negative")
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when kafka is enabled")
	}
	return c.ICE.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 30*time.Second)

	v.SetDefault("websocket.readLimit", 64*1024)
	v.SetDefault("websocket.pongWait", 60*time.Second)
	v.SetDefault("websocket.pingPeriod", 30*time.Second)
	v.SetDefault("websocket.writeWait", 10*time.Second)
	v.SetDefault("websocket.sendBuffer", 256)

	v.SetDefault("matchmaking.repairDelay", 100*time.Millisecond)
	v.SetDefault("matchmaking.anonymousName", "Stranger")
	v.SetDefault("matchmaking.maxNameLength", 32)
	v.SetDefault("matchmaking.mailboxSize", 1024)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.bootstrapServers", "localhost:9092")
	v.SetDefault("kafka.topic", "matchmaking-events")
	v.SetDefault("kafka.clientId", "ws-matchmaker")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyTTL", 24*time.Hour)

	v.SetDefault("metrics.namespace", "ws_matchmaker")

	v.SetDefault("ice.servers", []map[string]interface{}{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
