package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	PostgreSQL PostgreSQLConfig
	Blockfrost BlockfrostConfig
	Contract   ContractConfig
	Reconciler ReconcilerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	// PublicURL is the externally reachable base URL used in payment links.
	PublicURL string
}

// PostgreSQLConfig holds database configuration
type PostgreSQLConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	Schema       string
	PoolMaxConns int
}

// BlockfrostConfig holds the ledger indexer configuration
type BlockfrostConfig struct {
	ApiUrl         string
	ProjectID      string
	TimeoutSeconds int
}

// ContractConfig holds the escrow validator configuration
type ContractConfig struct {
	BlueprintPath string
	Network       string
}

// ReconcilerConfig holds the confirmation poller configuration
type ReconcilerConfig struct {
	IntervalSeconds  int
	ExpireAfterHours int
}

// Timeout returns the bounded ledger query timeout.
func (c BlockfrostConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the reconciliation tick interval.
func (c ReconcilerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ExpireAfter returns the abandonment window, zero when disabled.
func (c ReconcilerConfig) ExpireAfter() time.Duration {
	return time.Duration(c.ExpireAfterHours) * time.Hour
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.PostgreSQL.Host == "" || cfg.PostgreSQL.DBName == "" {
		return nil, fmt.Errorf("database configuration is incomplete")
	}
	if cfg.Blockfrost.ApiUrl == "" {
		return nil, fmt.Errorf("blockfrost api url is required")
	}
	if cfg.Contract.Network != "testnet" && cfg.Contract.Network != "mainnet" {
		return nil, fmt.Errorf("contract network must be testnet or mainnet, got %q", cfg.Contract.Network)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("Server.Port", "8080")
	viper.SetDefault("Server.PublicURL", "http://localhost:8080")

	viper.SetDefault("PostgreSQL.Host", "localhost")
	viper.SetDefault("PostgreSQL.Port", 5432)
	viper.SetDefault("PostgreSQL.User", "postgres")
	viper.SetDefault("PostgreSQL.DBName", "adasplit-db")
	viper.SetDefault("PostgreSQL.Schema", "public")
	viper.SetDefault("PostgreSQL.PoolMaxConns", 10)

	viper.SetDefault("Blockfrost.ApiUrl", "https://cardano-preprod.blockfrost.io/api/v0")
	viper.SetDefault("Blockfrost.TimeoutSeconds", 15)

	viper.SetDefault("Contract.BlueprintPath", "contracts/plutus.json")
	viper.SetDefault("Contract.Network", "testnet")

	viper.SetDefault("Reconciler.IntervalSeconds", 60)
	viper.SetDefault("Reconciler.ExpireAfterHours", 24)
}
