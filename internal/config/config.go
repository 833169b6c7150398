package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type MediaConfig struct {
	ListenIP    string `mapstructure:"listen_ip"`
	AnnouncedIP string `mapstructure:"announced_ip"`
	MinPort     uint16 `mapstructure:"min_port"`
	MaxPort     uint16 `mapstructure:"max_port"`
	Workers     int    `mapstructure:"workers"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	Secret        string        `mapstructure:"secret"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	EngineTimeout time.Duration `mapstructure:"engine_timeout"`
	WorkerGrace   time.Duration `mapstructure:"worker_grace"`
	ChatRateLimit int           `mapstructure:"chat_rate_limit"`
	ChatRateEvery time.Duration `mapstructure:"chat_rate_every"`
	Store         string        `mapstructure:"store"`
	Media         MediaConfig   `mapstructure:"media"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "huddle-session")
	v.SetDefault("jwt_secret", "huddle-dev-secret")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("engine_timeout", "10s")
	v.SetDefault("worker_grace", "5s")
	v.SetDefault("chat_rate_limit", 20)
	v.SetDefault("chat_rate_every", "10s")
	v.SetDefault("store", "memory")
	v.SetDefault("media.listen_ip", "0.0.0.0")
	v.SetDefault("media.min_port", 40000)
	v.SetDefault("media.max_port", 49999)
	v.SetDefault("media.workers", 1)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Store: %s\n", cfg.Mode, cfg.Port, cfg.Store)
	return &cfg, nil
}
