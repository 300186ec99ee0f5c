package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Costs  CostsConfig  `mapstructure:"costs"`
	Fees   FeesConfig   `mapstructure:"fees"`
	Engine EngineConfig `mapstructure:"engine"`
	Alerts AlertsConfig `mapstructure:"alerts"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Refresh re-evaluates every open listing; CloseOut flips listings past
	// their deadline to closed.
	Refresh  string `mapstructure:"refresh"`
	CloseOut string `mapstructure:"close_out"`
}

// CostsConfig is the acquisition cost schedule. All three knobs vary by
// region/marketplace, so they are configuration, not constants.
type CostsConfig struct {
	BuyerPremiumRate float64 `mapstructure:"buyer_premium_rate"`
	LotFee           float64 `mapstructure:"lot_fee"`
	TaxRate          float64 `mapstructure:"tax_rate"`
}

// FeesConfig holds the per-platform fee schedules. Adding a platform is a new
// entry here, never new code.
type FeesConfig struct {
	Platforms map[string]PlatformFeeConfig `mapstructure:"platforms"`
}

type PlatformFeeConfig struct {
	PercentFee     float64            `mapstructure:"percent_fee"`
	PerOrderFee    float64            `mapstructure:"per_order_fee"`
	FulfillmentFee float64            `mapstructure:"fulfillment_fee"`
	CategoryRates  map[string]float64 `mapstructure:"category_rates"`
}

type EngineConfig struct {
	// StalenessWindow bounds which price observations count as evidence.
	StalenessWindow time.Duration `mapstructure:"staleness_window"`
	FeedBuffer      int           `mapstructure:"feed_buffer"`
}

type AlertsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.refresh", "@every 10m")
	v.SetDefault("cron.close_out", "@every 5m")

	// Mac.bid-style auction house: 15% buyer's premium, $3 lot fee, 6% tax.
	v.SetDefault("costs.buyer_premium_rate", 0.15)
	v.SetDefault("costs.lot_fee", 3.00)
	v.SetDefault("costs.tax_rate", 0.06)

	v.SetDefault("fees.platforms.ebay.percent_fee", 0.136)
	v.SetDefault("fees.platforms.ebay.per_order_fee", 0.40)
	v.SetDefault("fees.platforms.amazon.percent_fee", 0.15)
	v.SetDefault("fees.platforms.amazon.fulfillment_fee", 3.22)
	v.SetDefault("fees.platforms.amazon.category_rates", map[string]float64{
		"Electronics":    0.08,
		"Computers":      0.08,
		"Video Games":    0.15,
		"Home & Kitchen": 0.15,
		"Toys & Games":   0.15,
		"Clothing":       0.17,
		"Beauty":         0.08,
		"Health":         0.08,
		"Sports":         0.15,
		"Tools":          0.12,
	})
	v.SetDefault("fees.platforms.facebook.percent_fee", 0.0)
	v.SetDefault("fees.platforms.facebook.per_order_fee", 0.0)

	v.SetDefault("engine.staleness_window", "48h")
	v.SetDefault("engine.feed_buffer", 64)

	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.from_email", "alerts@flipradar.local")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
