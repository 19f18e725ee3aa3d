package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Lookup table sources.
const (
	LookupSourceFile       = "file"
	LookupSourceBlob       = "blob"
	LookupSourcePostgres   = "postgres"
	LookupSourceClickHouse = "clickhouse"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	ClickHouse  ClickHouseConfig `mapstructure:"clickhouse"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Lookup      LookupConfig     `mapstructure:"lookup"`
	Providers   ProvidersConfig  `mapstructure:"providers"`
	AI          AIConfig         `mapstructure:"ai"`
	Audit       AuditConfig      `mapstructure:"audit"`
	Telegram    TelegramConfig   `mapstructure:"telegram"`
	Security    SecurityConfig   `mapstructure:"security"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	Pricing     PricingConfig    `mapstructure:"pricing"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

// DSN returns the explicit database URL or one assembled from the parts.
func (d DatabaseConfig) DSN() string {
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ClickHouseConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	AuditTopic   string   `mapstructure:"audit_topic"`
	WriteTimeout string   `mapstructure:"write_timeout"`
}

// StorageConfig configures Azure Blob storage for the lookup snapshot and
// the audit CSV.
type StorageConfig struct {
	ConnectionString string `mapstructure:"connection_string" json:"-"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key" json:"-"`
	Container        string `mapstructure:"container"`
	LookupBlob       string `mapstructure:"lookup_blob"`
	AuditContainer   string `mapstructure:"audit_container"`
	AuditBlob        string `mapstructure:"audit_blob"`
}

// ConnString returns the configured connection string or builds one from the
// account name and key.
func (s StorageConfig) ConnString() string {
	if s.ConnectionString != "" {
		return s.ConnectionString
	}
	if s.AccountName == "" || s.AccountKey == "" {
		return ""
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		s.AccountName, s.AccountKey)
}

type LookupConfig struct {
	Source          string `mapstructure:"source"`
	FilePath        string `mapstructure:"file_path"`
	PostgresTable   string `mapstructure:"postgres_table"`
	RefreshInterval string `mapstructure:"refresh_interval"`
}

type DATConfig struct {
	OrgUsername   string `mapstructure:"org_username"`
	OrgPassword   string `mapstructure:"org_password" json:"-"`
	UserEmail     string `mapstructure:"user_email"`
	OrgTokenURL   string `mapstructure:"org_token_url"`
	UserTokenURL  string `mapstructure:"user_token_url"`
	RateLookupURL string `mapstructure:"rate_lookup_url"`
	ForecastURL   string `mapstructure:"forecast_url"`
}

// Enabled reports whether DAT credentials and endpoints are configured.
func (d DATConfig) Enabled() bool {
	return d.OrgUsername != "" && d.OrgPassword != "" && d.UserEmail != "" &&
		d.OrgTokenURL != "" && d.UserTokenURL != "" && d.RateLookupURL != ""
}

type GreenScreensConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"-"`
	AuthURL      string `mapstructure:"auth_url"`
	BaseURL      string `mapstructure:"base_url"`
}

// Enabled reports whether GreenScreens credentials are configured.
func (g GreenScreensConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.AuthURL != ""
}

type RoutesConfig struct {
	APIKey  string `mapstructure:"api_key" json:"-"`
	BaseURL string `mapstructure:"base_url"`
}

type RetryConfig struct {
	MaxRetries int    `mapstructure:"max_retries"`
	Delay      string `mapstructure:"delay"`
}

// BreakerConfig trips a provider's circuit after FailureThreshold
// consecutive failures and keeps it open for OpenTimeout.
type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	OpenTimeout      string `mapstructure:"open_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type ProvidersConfig struct {
	DAT           DATConfig          `mapstructure:"dat"`
	GreenScreens  GreenScreensConfig `mapstructure:"greenscreens"`
	Routes        RoutesConfig       `mapstructure:"routes"`
	GazetteerFile string             `mapstructure:"gazetteer_file"`
	Retry         RetryConfig        `mapstructure:"retry"`
	Breaker       BreakerConfig      `mapstructure:"breaker"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	Timeout       string             `mapstructure:"timeout"`
	TokenTimeout  string             `mapstructure:"token_timeout"`
	QuoteCacheTTL string             `mapstructure:"quote_cache_ttl"`
}

type AIConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	APIKey          string `mapstructure:"api_key" json:"-"`
	BaseURL         string `mapstructure:"base_url"`
	Model           string `mapstructure:"model"`
	BusinessContext string `mapstructure:"business_context"`
	MaxLines        int    `mapstructure:"max_lines"`
	Timeout         string `mapstructure:"timeout"`
}

type AuditConfig struct {
	BlobEnabled     bool `mapstructure:"blob_enabled"`
	PostgresEnabled bool `mapstructure:"postgres_enabled"`
	KafkaEnabled    bool `mapstructure:"kafka_enabled"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
	DedupTTL string `mapstructure:"dedup_ttl"`
}

type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry    string   `mapstructure:"jwt_expiry"`
	BcryptCost   int      `mapstructure:"bcrypt_cost"`
	APIKeyHashes []string `mapstructure:"api_key_hashes" json:"-" yaml:"-"`
	RateLimitRPS float64  `mapstructure:"rate_limit_rps"`
	RateBurst    int      `mapstructure:"rate_limit_burst"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// Duration parses a config duration string, falling back to def when it is
// empty or invalid. Load has already rejected invalid values.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

var credentialEnv = map[string]string{
	"security.jwt_secret":                  "JWT_SECRET",
	"providers.dat.org_username":           "DAT_ORG_USERNAME",
	"providers.dat.org_password":           "DAT_ORG_PASSWORD",
	"providers.dat.user_email":             "DAT_USER_EMAIL",
	"providers.dat.org_token_url":          "DAT_ORG_TOKEN_URL",
	"providers.dat.user_token_url":         "DAT_USER_TOKEN_URL",
	"providers.dat.rate_lookup_url":        "DAT_RATE_LOOKUP_URL",
	"providers.dat.forecast_url":           "DAT_FORECAST_URL",
	"providers.greenscreens.client_id":     "GS_CLIENT_ID",
	"providers.greenscreens.client_secret": "GS_CLIENT_SECRET",
	"providers.greenscreens.auth_url":      "GS_AUTH_URL",
	"providers.routes.api_key":             "GOOGLE_MAPS_API_KEY",
	"ai.api_key":                           "OPENAI_API_KEY",
	"ai.model":                             "OPENAI_MODEL",
	"storage.connection_string":            "AZ_BLOB_CONNECTION_STRING",
	"storage.account_name":                 "AZ_BLOB_ACCOUNT",
	"storage.account_key":                  "AZ_BLOB_KEY",
	"storage.container":                    "AZ_BLOB_CONTAINER",
	"storage.lookup_blob":                  "AZ_BLOB_FILE",
	"telegram.bot_token":                   "TELEGRAM_BOT_TOKEN",
	"kafka.brokers":                        "KAFKA_BROKERS",
	"clickhouse.dsn":                       "CLICKHOUSE_DSN",
	"database.database_url":                "DATABASE_URL",
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind credentials to their conventional variable names
	for key, env := range credentialEnv {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if len(config.Pricing.Negotiation.Tiers) == 0 {
		config.Pricing.Negotiation.Tiers = DefaultTiers()
	}
	config.Kafka.Brokers = splitList(config.Kafka.Brokers)

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	// Validate JWT secret in non-development environments
	if c.Environment != "development" && c.Environment != "test" && c.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	// Validate bcrypt cost parameter
	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Security.BcryptCost)
	}

	durations := map[string]string{
		"security.jwt_expiry":            c.Security.JWTExpiry,
		"server.read_timeout":            c.Server.ReadTimeout,
		"server.write_timeout":           c.Server.WriteTimeout,
		"lookup.refresh_interval":        c.Lookup.RefreshInterval,
		"providers.timeout":              c.Providers.Timeout,
		"providers.token_timeout":        c.Providers.TokenTimeout,
		"providers.retry.delay":          c.Providers.Retry.Delay,
		"providers.breaker.open_timeout": c.Providers.Breaker.OpenTimeout,
		"providers.quote_cache_ttl":      c.Providers.QuoteCacheTTL,
		"ai.timeout":                     c.AI.Timeout,
		"telegram.dedup_ttl":             c.Telegram.DedupTTL,
		"kafka.write_timeout":            c.Kafka.WriteTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration: %w", key, err)
		}
	}

	switch c.Lookup.Source {
	case LookupSourceFile, LookupSourceBlob, LookupSourcePostgres, LookupSourceClickHouse:
	default:
		return fmt.Errorf("unknown lookup.source %q", c.Lookup.Source)
	}

	if c.Providers.Retry.MaxRetries < 0 {
		return fmt.Errorf("providers.retry.max_retries must not be negative")
	}
	if c.Providers.Breaker.FailureThreshold < 0 {
		return fmt.Errorf("providers.breaker.failure_threshold must not be negative")
	}

	return c.Pricing.Validate()
}

// splitList expands comma separated entries, which is how KAFKA_BROKERS
// arrives from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "pricing_agent")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// ClickHouse
	viper.SetDefault("clickhouse.dsn", "")
	viper.SetDefault("clickhouse.table", "historical_loads")

	// Kafka
	viper.SetDefault("kafka.brokers", []string{})
	viper.SetDefault("kafka.audit_topic", "pricing.analysis.completed")
	viper.SetDefault("kafka.write_timeout", "10s")

	// Azure Blob storage
	viper.SetDefault("storage.connection_string", "")
	viper.SetDefault("storage.account_name", "")
	viper.SetDefault("storage.account_key", "")
	viper.SetDefault("storage.container", "lookup")
	viper.SetDefault("storage.lookup_blob", "UnityCatalog_Tables.csv")
	viper.SetDefault("storage.audit_container", "vooma")
	viper.SetDefault("storage.audit_blob", "pricing_agent_log.csv")

	// Lookup table
	viper.SetDefault("lookup.source", LookupSourceFile)
	viper.SetDefault("lookup.file_path", "unity/UnityCatalog_Tables.csv")
	viper.SetDefault("lookup.postgres_table", "historical_loads")
	viper.SetDefault("lookup.refresh_interval", "24h")

	// Providers
	viper.SetDefault("providers.greenscreens.base_url", "https://api.greenscreens.ai")
	viper.SetDefault("providers.routes.base_url", "https://routes.googleapis.com/directions/v2:computeRoutes")
	viper.SetDefault("providers.gazetteer_file", "data/US.txt")
	viper.SetDefault("providers.retry.max_retries", 1)
	viper.SetDefault("providers.retry.delay", "5s")
	viper.SetDefault("providers.breaker.failure_threshold", 5)
	viper.SetDefault("providers.breaker.open_timeout", "60s")
	viper.SetDefault("providers.rate_limit.requests_per_second", 5.0)
	viper.SetDefault("providers.rate_limit.burst", 10)
	viper.SetDefault("providers.timeout", "45s")
	viper.SetDefault("providers.token_timeout", "30s")
	viper.SetDefault("providers.quote_cache_ttl", "15m")

	// AI recommendation
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("ai.business_context", "We're running out to Christmas season")
	viper.SetDefault("ai.max_lines", 4)
	viper.SetDefault("ai.timeout", "30s")

	// Audit sinks
	viper.SetDefault("audit.blob_enabled", false)
	viper.SetDefault("audit.postgres_enabled", false)
	viper.SetDefault("audit.kafka_enabled", false)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)
	viper.SetDefault("telegram.dedup_ttl", "1h")

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)
	viper.SetDefault("security.api_key_hashes", []string{})
	viper.SetDefault("security.rate_limit_rps", 10.0)
	viper.SetDefault("security.rate_limit_burst", 30)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	viper.SetDefault("telemetry.service_name", "pricing-agent")
	viper.SetDefault("telemetry.service_version", "3.0.0")

	setPricingDefaults(DefaultPricing())
}

func setPricingDefaults(p PricingConfig) {
	viper.SetDefault("pricing.segments_file", p.SegmentsFile)

	h := p.Hotshot
	viper.SetDefault("pricing.hotshot.enabled", h.Enabled)
	viper.SetDefault("pricing.hotshot.weight_threshold", h.WeightThreshold)
	viper.SetDefault("pricing.hotshot.map_to_equipment", h.MapToEquipment)
	viper.SetDefault("pricing.hotshot.heavy_adjustment", h.HeavyAdjustment)
	viper.SetDefault("pricing.hotshot.light_adjustment", h.LightAdjustment)

	m := p.Multistop
	viper.SetDefault("pricing.multistop.historical_min_confidence", m.HistoricalMinConfidence)
	viper.SetDefault("pricing.multistop.historical_min_records", m.HistoricalMinRecords)
	viper.SetDefault("pricing.multistop.outlier_deviation", m.OutlierDeviation)
	viper.SetDefault("pricing.multistop.outlier_stop_charge", m.OutlierStopCharge)
	viper.SetDefault("pricing.multistop.outlier_target_factor", m.OutlierTargetFactor)
	viper.SetDefault("pricing.multistop.outlier_max_factor", m.OutlierMaxFactor)
	viper.SetDefault("pricing.multistop.default_lane_markup", m.DefaultLaneMarkup)
	viper.SetDefault("pricing.multistop.default_lane_margin_pct", m.DefaultLaneMarginPct)
	viper.SetDefault("pricing.multistop.miles_band_low_pct", m.MilesBandLowPct)
	viper.SetDefault("pricing.multistop.miles_band_high_pct", m.MilesBandHighPct)
	viper.SetDefault("pricing.multistop.high_complexity_stop_charges", m.HighComplexityStopCharges)
	viper.SetDefault("pricing.multistop.standard_stop_charges", m.StandardStopCharges)
	viper.SetDefault("pricing.multistop.historical_target_factor", m.HistoricalTargetFactor)
	viper.SetDefault("pricing.multistop.historical_max_factor", m.HistoricalMaxFactor)
	viper.SetDefault("pricing.multistop.miles_per_day", m.MilesPerDay)
	viper.SetDefault("pricing.multistop.layover_threshold_days", m.LayoverThresholdDays)
	viper.SetDefault("pricing.multistop.layover_rate", m.LayoverRate)
	viper.SetDefault("pricing.multistop.layover_rate_high_complexity", m.LayoverRateHighComplexity)
	viper.SetDefault("pricing.multistop.variable_stop_charge_high_complexity", m.VariableStopChargeHighComplexity)
	viper.SetDefault("pricing.multistop.variable_stop_charge", m.VariableStopCharge)
	viper.SetDefault("pricing.multistop.variable_stop_band_multipliers", m.VariableStopBandMultipliers)
	viper.SetDefault("pricing.multistop.extra_stops_bonus_min_stops", m.ExtraStopsBonusMinStops)
	viper.SetDefault("pricing.multistop.extra_stops_bonus_divisor", m.ExtraStopsBonusDivisor)
	viper.SetDefault("pricing.multistop.extra_stops_bonus_multiplier", m.ExtraStopsBonusMultiplier)
	viper.SetDefault("pricing.multistop.markup", m.Markup)
	viper.SetDefault("pricing.multistop.fallback_spread_factor", m.FallbackSpreadFactor)
	viper.SetDefault("pricing.multistop.minimum_spread", m.MinimumSpread)

	n := p.Negotiation
	viper.SetDefault("pricing.negotiation.transit_days_default", n.TransitDaysDefault)
	viper.SetDefault("pricing.negotiation.capacity_sensitivity", n.CapacitySensitivity)
	viper.SetDefault("pricing.negotiation.low_capacity_companies", n.LowCapacityCompanies)
	viper.SetDefault("pricing.negotiation.high_capacity_companies", n.HighCapacityCompanies)
	viper.SetDefault("pricing.negotiation.weekend_penalty", n.WeekendPenalty)
	viper.SetDefault("pricing.negotiation.long_haul_threshold", n.LongHaulThreshold)
	viper.SetDefault("pricing.negotiation.short_haul_threshold", n.ShortHaulThreshold)
	viper.SetDefault("pricing.negotiation.minimum_margin_buffer", n.MinimumMarginBuffer)
	viper.SetDefault("pricing.negotiation.fallback_rate_per_mile", n.FallbackRatePerMile)
	viper.SetDefault("pricing.negotiation.fallback_spread", n.FallbackSpread)
	viper.SetDefault("pricing.negotiation.market_spread", n.MarketSpread)
	viper.SetDefault("pricing.negotiation.default_gs_confidence", n.DefaultGSConfidence)
	viper.SetDefault("pricing.negotiation.minimum_spread", n.MinimumSpread)
	s := n.Strong
	viper.SetDefault("pricing.negotiation.strong.min_confidence", s.MinConfidence)
	viper.SetDefault("pricing.negotiation.strong.min_records", s.MinRecords)
	viper.SetDefault("pricing.negotiation.strong.spread_factor", s.SpreadFactor)
	viper.SetDefault("pricing.negotiation.strong.excellent_confidence", s.ExcellentConfidence)
	viper.SetDefault("pricing.negotiation.strong.excellent_records", s.ExcellentRecords)
	viper.SetDefault("pricing.negotiation.strong.high_confidence", s.HighConfidence)
	viper.SetDefault("pricing.negotiation.strong.high_records", s.HighRecords)
	viper.SetDefault("pricing.negotiation.strong.high_trend", s.HighTrend)
	viper.SetDefault("pricing.negotiation.strong.high_cushion", s.HighCushion)
	viper.SetDefault("pricing.negotiation.strong.moderate_trend_high", s.ModerateTrendHigh)
	viper.SetDefault("pricing.negotiation.strong.moderate_cushion_high", s.ModerateCushionHigh)
	viper.SetDefault("pricing.negotiation.strong.moderate_trend_low", s.ModerateTrendLow)
	viper.SetDefault("pricing.negotiation.strong.moderate_cushion_low", s.ModerateCushionLow)

	id := p.ID
	viper.SetDefault("pricing.id.lookback_days", id.LookbackDays)
	viper.SetDefault("pricing.id.fallback_to_year", id.FallbackToYear)
	viper.SetDefault("pricing.id.equipment_match", id.EquipmentMatch)
	viper.SetDefault("pricing.id.stop_type_filter", id.StopTypeFilter)

	prc := p.PRC
	viper.SetDefault("pricing.prc.min_loads_for_match", prc.MinLoadsForMatch)
	viper.SetDefault("pricing.prc.enable_zip4_fallback", prc.EnableZip4Fallback)
	viper.SetDefault("pricing.prc.enable_zip3_fallback", prc.EnableZip3Fallback)
	viper.SetDefault("pricing.prc.minimum_margin_pct", prc.MinimumMarginPct)
	viper.SetDefault("pricing.prc.maximum_margin_pct", prc.MaximumMarginPct)
	viper.SetDefault("pricing.prc.target_margin_pct", prc.TargetMarginPct)
	viper.SetDefault("pricing.prc.warning_margin_high", prc.WarningMarginHigh)
	viper.SetDefault("pricing.prc.recent_days", prc.RecentDays)
	viper.SetDefault("pricing.prc.customer_min_loads", prc.CustomerMinLoads)
	viper.SetDefault("pricing.prc.customer_qualify_loads", prc.CustomerQualifyLoads)
	viper.SetDefault("pricing.prc.default_customer_markup", prc.DefaultCustomerMarkup)
	viper.SetDefault("pricing.prc.limited_recent_loads", prc.LimitedRecentLoads)

	r := p.RatingThresholds
	viper.SetDefault("pricing.rating_thresholds.excellent", r.Excellent)
	viper.SetDefault("pricing.rating_thresholds.good", r.Good)
	viper.SetDefault("pricing.rating_thresholds.acceptable", r.Acceptable)
	viper.SetDefault("pricing.rating_thresholds.risky", r.Risky)
}
