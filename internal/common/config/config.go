// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Settlement    SettlementConfig   `mapstructure:"settlement"`
	Game          GameConfig         `mapstructure:"game"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Backup        BackupConfig       `mapstructure:"backup"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	ReportIndex string   `mapstructure:"report_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Specific Configuration Sections ---

// SettlementConfig drives the daily run: when it fires, how long the
// cross-process lease lives, and how the run bounds its database work.
// Timing values are milliseconds unless noted otherwise.
type SettlementConfig struct {
	Hour        int    `mapstructure:"hour"`   // UTC hour of the daily run
	Minute      int    `mapstructure:"minute"` // UTC minute of the daily run
	LeaseTTL    int    `mapstructure:"lease_ttl"`
	BusyWait    int    `mapstructure:"busy_wait"`
	TxTimeout   int    `mapstructure:"tx_timeout"`
	TaxPolicy   string `mapstructure:"tax_policy"` // "gross" or "net_of_payroll"
	TaxRateBps  int64  `mapstructure:"tax_rate_bps"`
	EventSeed   int64  `mapstructure:"event_seed"`
	CatalogPath string `mapstructure:"catalog_path"`
}

// GameConfig holds the economy constants shared by all runs. Rates are
// basis points; amounts are integer minor units.
type GameConfig struct {
	StakeFloorBps      int64 `mapstructure:"stake_floor_bps"`      // owner minimum stake
	SocialInsuranceBps int64 `mapstructure:"social_insurance_bps"` // surcharge on base payroll
	CoopBonusBps       int64 `mapstructure:"coop_bonus_bps"`       // uplift per agreement
	CoopCapBps         int64 `mapstructure:"coop_cap_bps"`         // stacking cap
	EventChanceBps     int64 `mapstructure:"event_chance_bps"`     // daily per-company chance
}

// NotificationConfig holds settings for the report sink fan-out.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// BackupConfig drives the ledger-backup tool.
type BackupConfig struct {
	Dir       string `mapstructure:"dir"`
	KeepFiles int    `mapstructure:"keep_files"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
