package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Бэкенды отметок продолжения обхода
const (
	CheckpointTable    = "table"
	CheckpointPostgres = "postgres"
	CheckpointRedis    = "redis"
)

// RunConfig - параметры запуска. Флаги командной строки применяются поверх.
type RunConfig struct {
	Site                string
	StartPage           int
	EndPage             int
	WriteMode           string
	Output              string
	CleanedOutput       string
	ErrorLog            string
	AllowExistingOutput bool
	Resume              bool
	MaxDetailAttempts   int
	MaxListPageAttempts int
	RetryDelay          time.Duration
	FailFast            bool
	Categories          []string
	Schedule            string
}

// FetcherConfig хранит настройки HTTP-клиента
type FetcherConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	Delay          time.Duration
	MaxRedirects   int
}

// DBconfig хранит конфигурацию для БД
type DBconfig struct {
	URL string
}

// RedisConfig хранит конфигурацию для Redis
type RedisConfig struct {
	URL           string
	CheckpointTTL time.Duration
}

// RabbitMQConfig хранит конфигурацию для RabbitMQ
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type StdoutLogConfig struct {
	Level string
	JSON  bool
	Color bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName           string
	SitesConfig       string // пусто - встроенный sites.yml
	CheckpointBackend string
	MirrorToPostgres  bool

	Run          RunConfig
	Fetcher      FetcherConfig
	Database     DBconfig
	Redis        RedisConfig
	RabbitMQ     RabbitMQConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
}

// LoadConfig загружает конфигурацию из переменных окружения.
// Файл .env необязателен: без него используются переменные процесса.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 && envPath[0] != "" {
		err = godotenv.Load(envPath[0])
		if err != nil {
			return nil, fmt.Errorf("could not load env file %s: %w", envPath[0], err)
		}
	} else if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env file: %w", err)
	}

	cfg := &AppConfig{}
	cfg.AppName = getEnvAsString("APP_NAME", "listings-puller")
	cfg.SitesConfig = getEnvAsString("SITES_CONFIG", "")
	cfg.CheckpointBackend = getEnvAsString("CHECKPOINT_BACKEND", CheckpointTable)
	cfg.MirrorToPostgres = getEnvAsBool("MIRROR_TO_POSTGRES", false)

	cfg.Run = RunConfig{
		Site:                getEnvAsString("SITE", ""),
		StartPage:           getEnvAsInt("START_PAGE", 1),
		EndPage:             getEnvAsInt("END_PAGE", 0),
		WriteMode:           getEnvAsString("WRITE_MODE", "append"),
		Output:              getEnvAsString("OUTPUT", ""),
		CleanedOutput:       getEnvAsString("CLEANED_OUTPUT", ""),
		ErrorLog:            getEnvAsString("ERROR_LOG", ""),
		AllowExistingOutput: getEnvAsBool("ALLOW_EXISTING_OUTPUT", false),
		Resume:              getEnvAsBool("RESUME", false),
		MaxDetailAttempts:   getEnvAsInt("MAX_DETAIL_ATTEMPTS", 20),
		MaxListPageAttempts: getEnvAsInt("MAX_LIST_PAGE_ATTEMPTS", 3),
		RetryDelay:          getEnvAsDuration("RETRY_DELAY", time.Second),
		FailFast:            getEnvAsBool("FAIL_FAST", false),
		Schedule:            getEnvAsString("SCHEDULE", ""),
	}

	cfg.Fetcher = FetcherConfig{
		UserAgent:      getEnvAsString("USER_AGENT", ""),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		Delay:          getEnvAsDuration("REQUEST_DELAY", 0),
		MaxRedirects:   getEnvAsInt("MAX_REDIRECTS", 10),
	}

	cfg.Database.URL = getEnvAsString("DATABASE_URL", "")
	cfg.Redis.URL = getEnvAsString("REDIS_URL", "")
	cfg.Redis.CheckpointTTL = getEnvAsDuration("REDIS_CHECKPOINT_TTL", 0)
	cfg.RabbitMQ.URL = getEnvAsString("RABBITMQ_URL", "")
	cfg.RabbitMQ.Exchange = getEnvAsString("RABBITMQ_EXCHANGE", "listings_exchange")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "info")
	cfg.StdoutLogger.JSON = getEnvAsBool("STDOUT_LOG_JSON", false)
	cfg.StdoutLogger.Color = getEnvAsBool("STDOUT_LOG_COLOR", true)

	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить значением по умолчанию
func (c *AppConfig) Validate() error {
	r := c.Run
	if r.Site == "" {
		return errors.New("site is required (SITE or -site)")
	}
	if r.StartPage < 1 {
		return fmt.Errorf("start page must be >= 1, got %d", r.StartPage)
	}
	if r.EndPage != 0 && r.EndPage < r.StartPage {
		return fmt.Errorf("end page %d is before start page %d", r.EndPage, r.StartPage)
	}
	if r.WriteMode != "append" && r.WriteMode != "overwrite" {
		return fmt.Errorf("write mode must be append or overwrite, got %q", r.WriteMode)
	}
	if r.Resume && r.WriteMode != "append" {
		return errors.New("resume requires append write mode")
	}

	switch c.CheckpointBackend {
	case CheckpointTable:
	case CheckpointPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres checkpoint backend")
		}
	case CheckpointRedis:
		if c.Redis.URL == "" {
			return errors.New("REDIS_URL is required for the redis checkpoint backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.CheckpointBackend)
	}
	if c.MirrorToPostgres && c.Database.URL == "" {
		return errors.New("DATABASE_URL is required when MIRROR_TO_POSTGRES is set")
	}
	return nil
}

// getEnvAsString читает переменную окружения как строку или возвращает значение по умолчанию
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию
// Логирует ошибку, если переменная есть, но не может быть преобразована в int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration читает переменную окружения как time.Duration ("1s", "500ms")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valDur, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as duration: %v. Using default value: %s\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valDur
}
