package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	brokerAPIKeyENV   = "BROKER_API_KEY"
	brokerSecretENV   = "BROKER_API_SECRET"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		HealthAddr string `yaml:"health_addr"`
	} `yaml:"service"`

	Broker struct {
		BaseURL string `yaml:"base_url"`
		WSURL   string `yaml:"ws_url"`
		// ключи только из окружения, в yaml не кладём
		APIKey    string `yaml:"-"`
		APISecret string `yaml:"-"`
	} `yaml:"broker"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Дефолты риска
	// Перенос стопа в безубыток: порог профита в процентах и отступ от входа в тиках
	DefaultBreakEvenTriggerPct  float64 `yaml:"break_even_trigger_pct"`
	DefaultBreakEvenBufferTicks int     `yaml:"break_even_buffer_ticks"`

	// Трейлинг: порог активации и дистанция до стопа в тиках
	DefaultTrailingTriggerPct    float64 `yaml:"trailing_stop_trigger_pct"`
	DefaultTrailingDistanceTicks int     `yaml:"trailing_stop_distance_ticks"`

	// Сколько от депозита мы готовы потерять по СТОПУ, а не по ликвидации
	DefaultMaxRiskPerTradePct float64 `yaml:"max_risk_per_trade_pct"` // например 2.0 => 2% equity

	DefaultEnableBreakEven bool `yaml:"enable_break_even"`
	DefaultEnableTrailing  bool `yaml:"enable_trailing"`

	// Перестраховка на случай недоступности метаданных инструмента
	FallbackTickSize float64 `yaml:"fallback_tick_size"`
	FallbackMinQty   float64 `yaml:"fallback_min_qty"`

	// Петля мониторинга
	MonitorInterval time.Duration // MONITOR_INTERVAL (1s)
	ErrorBackoff    time.Duration // MONITOR_ERROR_BACKOFF (5s)
	StopTimeout     time.Duration // MONITOR_STOP_TIMEOUT (5s)

	// Котировки
	QuoteMinInterval time.Duration // QUOTE_MIN_INTERVAL (250ms) — троттлинг HTTP-запросов
	QuoteCacheTTL    time.Duration // QUOTE_CACHE_TTL (2s) — свежесть WS-кэша

	// Лимитные ордера: максимум тиков отклонения от последней цены
	MaxDeviationTicks int
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		DefaultBreakEvenTriggerPct:  floatFromEnv("BREAK_EVEN_TRIGGER_PCT", 2.0),
		DefaultBreakEvenBufferTicks: intFromEnv("BREAK_EVEN_BUFFER_TICKS", 1),

		DefaultTrailingTriggerPct:    floatFromEnv("TRAILING_TRIGGER_PCT", 3.0),
		DefaultTrailingDistanceTicks: intFromEnv("TRAILING_DISTANCE_TICKS", 5),

		DefaultMaxRiskPerTradePct: floatFromEnv("MAX_RISK_PER_TRADE_PCT", 2.0),

		DefaultEnableBreakEven: boolFromEnv("ENABLE_BREAK_EVEN", true),
		DefaultEnableTrailing:  boolFromEnv("ENABLE_TRAILING", true),

		FallbackTickSize: floatFromEnv("FALLBACK_TICK_SIZE", 0.25),
		FallbackMinQty:   floatFromEnv("FALLBACK_MIN_QTY", 1),

		MonitorInterval: durationFromEnv("MONITOR_INTERVAL", "1s"),
		ErrorBackoff:    durationFromEnv("MONITOR_ERROR_BACKOFF", "5s"),
		StopTimeout:     durationFromEnv("MONITOR_STOP_TIMEOUT", "5s"),

		QuoteMinInterval: durationFromEnv("QUOTE_MIN_INTERVAL", "250ms"),
		QuoteCacheTTL:    durationFromEnv("QUOTE_CACHE_TTL", "2s"),

		MaxDeviationTicks: intFromEnv("MAX_DEVIATION_TICKS", 10),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	config.Broker.APIKey = os.Getenv(brokerAPIKeyENV)
	config.Broker.APISecret = os.Getenv(brokerSecretENV)

	if config.Service.HealthAddr == "" {
		config.Service.HealthAddr = ":8080"
	}

	return &config, nil
}

func getenvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("env %s is required", key))
	}
	return v
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
