package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации сервиса.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Display DisplayConfig `mapstructure:"display"`
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

// SourceConfig описывает удаленный API сенсоров и поведение Fetch Gateway.
type SourceConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`   // Жесткий таймаут на каждый запрос
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // Время жизни записи в кэше

	RateLimit float64 `mapstructure:"rate_limit"` // Запросов в секунду к источнику
	RateBurst int     `mapstructure:"rate_burst"`

	// Настройки Circuit Breaker для транспорта
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// PollerConfig настраивает цикл опроса.
type PollerConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	StatsHours        int           `mapstructure:"stats_hours"`
	ThreatsPerPage    int           `mapstructure:"threats_per_page"`
	AttackersPerPage  int           `mapstructure:"attackers_per_page"`
	CriticalThreshold int           `mapstructure:"critical_threshold"`
	TrendHours        int           `mapstructure:"trend_hours"`
	MaxRangeHours     int           `mapstructure:"max_range_hours"` // Верхняя граница окна, запрошенного клиентом

	StartupProbeAttempts uint          `mapstructure:"startup_probe_attempts"`
	StartupProbeDelay    time.Duration `mapstructure:"startup_probe_delay"`
}

// DisplayConfig: зона, в которой режутся часовые корзины.
type DisplayConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// ServerConfig описывает настройки HTTP-сервера для дашбордов.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub). Пустой Addr: Redis выключен.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// SOURCE_BASE_URL=http://api:5000 перекроет source.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет: работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "http://localhost:5000")
	v.SetDefault("source.timeout", 5*time.Second)
	v.SetDefault("source.cache_ttl", 1*time.Minute)
	v.SetDefault("source.rate_limit", 20.0)
	v.SetDefault("source.rate_burst", 10)
	v.SetDefault("source.breaker_failures", 5)
	v.SetDefault("source.breaker_timeout", 30*time.Second)

	v.SetDefault("poller.interval", 5*time.Second)
	v.SetDefault("poller.stats_hours", 24)
	v.SetDefault("poller.threats_per_page", 20)
	v.SetDefault("poller.attackers_per_page", 10)
	v.SetDefault("poller.critical_threshold", 8)
	v.SetDefault("poller.trend_hours", 12)
	v.SetDefault("poller.max_range_hours", 720)
	v.SetDefault("poller.startup_probe_attempts", 5)
	v.SetDefault("poller.startup_probe_delay", 1*time.Second)

	v.SetDefault("display.timezone", "Europe/Paris")

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate проверяет значения, без которых сервис не может стартовать.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return errors.New("config: source.base_url is required")
	}
	if c.Source.Timeout <= 0 {
		return errors.New("config: source.timeout must be positive")
	}
	if c.Source.CacheTTL <= 0 {
		return errors.New("config: source.cache_ttl must be positive")
	}
	if c.Poller.Interval <= 0 {
		return errors.New("config: poller.interval must be positive")
	}
	if c.Poller.StatsHours <= 0 || c.Poller.TrendHours <= 0 {
		return errors.New("config: poller hour windows must be positive")
	}
	if c.Poller.MaxRangeHours < c.Poller.StatsHours {
		return errors.New("config: poller.max_range_hours must cover poller.stats_hours")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: display.timezone: %w", err)
	}
	return nil
}

// Location возвращает зону отображения.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Display.Timezone)
}

// ListenAddr собирает адрес HTTP-сервера.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
