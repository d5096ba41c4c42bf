package backend

import (
	"fmt"
	"time"

	"freelance/internal/config"
)

// BackendType selects the record store.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	// AMQP is optional.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CacheBackend  string
	RedisURL      string
	StatsCacheTTL time.Duration
	StatsCacheMax int
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
		CacheBackend:  appConfig.CacheBackend,
		RedisURL:      appConfig.RedisURL,
		StatsCacheTTL: appConfig.StatsCacheTTL,
		StatsCacheMax: 1000,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	switch c.CacheBackend {
	case "", config.BackendMemory:
	case config.BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.CacheBackend)
	}
	return nil
}

// GetBackendTypeStrings returns all valid store backend names.
func GetBackendTypeStrings() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String()}
}
