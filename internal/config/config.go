package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	YouTube   YouTubeConfig
	Scheduler SchedulerConfig
	Mimir     MimirConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port        string
	Mode        string
	JWTSecret   string
	MetricsPort string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
	AutoMigrate    bool
}

type YouTubeConfig struct {
	APIKey            string
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

type SchedulerConfig struct {
	SupervisorInterval time.Duration
	OutOfRangeDelay    time.Duration
	PollDelay          time.Duration
	ErrorDelay         time.Duration
	Timezone           string
}

// Location returns the zone every date and wall-clock comparison is made in.
func (s SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

type MimirConfig struct {
	URL           string
	TenantHeader  string
	TenantID      string
	BatchSize     int
	FlushInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("STREAMMETER")
	// scheduler.timezone is read from STREAMMETER_SCHEDULER_TIMEZONE.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if key := os.Getenv("YOUTUBE_API_KEY"); key != "" {
		cfg.YouTube.APIKey = key
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Mimir.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.metricsport", "9100")
	v.SetDefault("database.maxconnections", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.automigrate", true)
	v.SetDefault("youtube.baseurl", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.requesttimeout", "15s")
	v.SetDefault("youtube.requestspersecond", 5.0)
	v.SetDefault("youtube.burst", 10)
	v.SetDefault("scheduler.supervisorinterval", "60s")
	v.SetDefault("scheduler.outofrangedelay", "120s")
	v.SetDefault("scheduler.polldelay", "30s")
	v.SetDefault("scheduler.errordelay", "30s")
	v.SetDefault("scheduler.timezone", "America/Argentina/Buenos_Aires")
	v.SetDefault("mimir.tenantheader", "X-Scope-OrgID")
	v.SetDefault("mimir.tenantid", "stream-meter")
	v.SetDefault("mimir.batchsize", 1000)
	v.SetDefault("mimir.flushinterval", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate reports the first setting that would stop the worker from running.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database url is required")
	}
	if c.YouTube.APIKey == "" {
		return errors.New("youtube api key is required")
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Scheduler.SupervisorInterval <= 0 || c.Scheduler.OutOfRangeDelay <= 0 || c.Scheduler.PollDelay <= 0 {
		return errors.New("scheduler delays must be positive")
	}
	return nil
}
