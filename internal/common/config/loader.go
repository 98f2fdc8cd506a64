// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	// 🔧 FIX: Load .env from multiple possible locations
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DB_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1️⃣ LOAD BASE CONFIG
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2️⃣ LOAD ENV CONFIG
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	// 3️⃣ EXPAND ENV PLACEHOLDERS
	expandEnvVars(viper.GetViper())

	// 4️⃣ Unmarshal final config
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 5️⃣ DIRECT OVERRIDE IF STILL EMPTY
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// 🔥 FIX: Load .env from multiple possible locations
func loadEnvFile() {
	// Try multiple paths (for running from different directories)
	possiblePaths := []string{
		".env",          // Current directory
		"../.env",       // Parent directory
		"../../.env",    // Two levels up (for tests in test/e2e/)
		"../../../.env", // Three levels up
	}

	// Also try to find project root by looking for go.mod
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}

	fmt.Printf("⚠️  .env file not found in any location, using system environment variables\n")
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up directories looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}

// Improved environment variable expansion
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		// Only process string values
		if strVal, ok := val.(string); ok {
			// Check if it contains environment variable pattern
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}

	// Report sink overrides
	if cfg.Notifications.SNS.TopicARN == "" {
		if val := os.Getenv("SNS_TOPIC_ARN"); val != "" {
			cfg.Notifications.SNS.TopicARN = val
		}
	}
	if cfg.Database.Elasticsearch.Password == "" {
		if val := os.Getenv("ELASTICSEARCH_PASSWORD"); val != "" {
			cfg.Database.Elasticsearch.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile() // Load env file first

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables before unmarshal
	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// App defaults
	if cfg.App.Name == "" {
		cfg.App.Name = "business-empire"
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = ":9090"
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ReportIndex == "" {
		cfg.Database.Elasticsearch.ReportIndex = "settlement-reports"
	}

	// Settlement defaults - CRITICAL for correct daily runs!
	if cfg.Settlement.LeaseTTL == 0 {
		cfg.Settlement.LeaseTTL = 600000 // 10 minutes
	}
	if cfg.Settlement.BusyWait == 0 {
		cfg.Settlement.BusyWait = 30000
	}
	if cfg.Settlement.TxTimeout == 0 {
		cfg.Settlement.TxTimeout = 15000
	}
	if cfg.Settlement.TaxPolicy == "" {
		cfg.Settlement.TaxPolicy = "gross"
	}
	if cfg.Settlement.TaxRateBps == 0 {
		cfg.Settlement.TaxRateBps = 1000 // 10%
	}
	if cfg.Settlement.CatalogPath == "" {
		cfg.Settlement.CatalogPath = "configs/company_types.json"
	}

	// Game economy defaults
	if cfg.Game.StakeFloorBps == 0 {
		cfg.Game.StakeFloorBps = 3000 // owner keeps at least 30%
	}
	if cfg.Game.SocialInsuranceBps == 0 {
		cfg.Game.SocialInsuranceBps = 200 // 2% on top of base wages
	}
	if cfg.Game.CoopBonusBps == 0 {
		cfg.Game.CoopBonusBps = 1000 // +10% per agreement
	}
	if cfg.Game.CoopCapBps == 0 {
		cfg.Game.CoopCapBps = 5000 // stacked bonuses cap at +50%
	}
	if cfg.Game.EventChanceBps == 0 {
		cfg.Game.EventChanceBps = 3500 // 35% daily chance
	}

	// Backup defaults
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "backups"
	}
	if cfg.Backup.KeepFiles == 0 {
		cfg.Backup.KeepFiles = 14
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when elasticsearch is enabled")
	}

	if cfg.Settlement.Hour < 0 || cfg.Settlement.Hour > 23 {
		return fmt.Errorf("settlement.hour must be between 0 and 23")
	}
	if cfg.Settlement.Minute < 0 || cfg.Settlement.Minute > 59 {
		return fmt.Errorf("settlement.minute must be between 0 and 59")
	}
	if cfg.Settlement.TaxPolicy != "gross" && cfg.Settlement.TaxPolicy != "net_of_payroll" {
		return fmt.Errorf("settlement.tax_policy must be \"gross\" or \"net_of_payroll\"")
	}
	if cfg.Settlement.TaxRateBps < 0 || cfg.Settlement.TaxRateBps > 10000 {
		return fmt.Errorf("settlement.tax_rate_bps must be between 0 and 10000")
	}

	if cfg.Game.StakeFloorBps < 0 || cfg.Game.StakeFloorBps > 10000 {
		return fmt.Errorf("game.stake_floor_bps must be between 0 and 10000")
	}
	if cfg.Game.CoopCapBps < cfg.Game.CoopBonusBps {
		return fmt.Errorf("game.coop_cap_bps must be at least game.coop_bonus_bps")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
