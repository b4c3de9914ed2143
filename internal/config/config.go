package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Run environments
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// DevMaxETFs caps the universe in dev runs
const DevMaxETFs = 20

// DateLayout is the layout of IPO_DATE
const DateLayout = "2006-01-02"

// Config holds all configuration for the ETF KPI scraper.
type Config struct {
	Env     string `mapstructure:"env"`
	MaxETFs int    `mapstructure:"max_etfs"`
	IPODate string `mapstructure:"ipo_date"`

	AlphavantageAPIKey  string `mapstructure:"alphavantage_api_key"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`

	// Base URLs for the enrichment provider (configurable for testing)
	YahooBaseURL   string `mapstructure:"yahoo_base_url"`
	YahooCookieURL string `mapstructure:"yahoo_cookie_url"`
	YahooCrumbURL  string `mapstructure:"yahoo_crumb_url"`

	CacheBackend string `mapstructure:"cache_backend"`
	CachePath    string `mapstructure:"cache_path"`
	RedisAddr    string `mapstructure:"redis_addr"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	S3Bucket  string `mapstructure:"s3_bucket"`
	OutputDir string `mapstructure:"output_dir"`
	Parquet   bool   `mapstructure:"parquet"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// flagKeys maps CLI flag names onto config keys
var flagKeys = map[string]string{
	"ipo-date": "ipo_date",
	"max-etfs": "max_etfs",
	"parquet":  "parquet",
	"output":   "output_dir",
}

var now = time.Now

// Load reads configuration from environment variables and optional config file.
// Environment variables take precedence over config file values, and changed
// flags in fs take precedence over both.
//
// Expected environment variables:
//   - ALPHAVANTAGE_API_KEY
//   - ENV (dev or prod, defaults to dev)
//   - MAX_ETFS (prod only, defaults to 1)
//   - IPO_DATE (YYYY-MM-DD, defaults to today)
//   - ALPHAVANTAGE_BASE_URL, YAHOO_BASE_URL, YAHOO_COOKIE_URL, YAHOO_CRUMB_URL (optional)
//   - CACHE_BACKEND, CACHE_PATH, REDIS_ADDR (optional)
//   - S3_BUCKET, OUTPUT_DIR, PARQUET (optional)
//   - REQUEST_TIMEOUT, LOG_LEVEL, LOG_FORMAT (optional)
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("env", EnvDev)
	v.SetDefault("max_etfs", 1)
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("yahoo_base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("yahoo_cookie_url", "https://fc.yahoo.com")
	v.SetDefault("yahoo_crumb_url", "https://query2.finance.yahoo.com/v1/test/getcrumb")
	v.SetDefault("cache_backend", "sqlite")
	v.SetDefault("cache_path", "yfinance.cache")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.etfkpis")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	for _, key := range []string{
		"env", "max_etfs", "ipo_date",
		"alphavantage_api_key", "alphavantage_base_url",
		"yahoo_base_url", "yahoo_cookie_url", "yahoo_crumb_url",
		"cache_backend", "cache_path", "redis_addr",
		"request_timeout", "s3_bucket", "output_dir", "parquet",
		"log_level", "log_format",
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.AlphavantageAPIKey == "" {
		missing = append(missing, "ALPHAVANTAGE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.MaxETFs < 0 {
		return fmt.Errorf("invalid MAX_ETFS %d: must not be negative", c.MaxETFs)
	}
	if c.Env != EnvDev && c.Env != EnvProd {
		return fmt.Errorf("invalid ENV %q: must be %s or %s", c.Env, EnvDev, EnvProd)
	}
	if _, err := c.Cutoff(); err != nil {
		return err
	}
	return nil
}

// MaxCount is the universe cap for this run: fixed in dev, MAX_ETFS in prod
func (c *Config) MaxCount() int {
	if c.Env == EnvDev {
		return DevMaxETFs
	}
	return c.MaxETFs
}

// Cutoff is the minimum IPO date. An unset IPO_DATE means today.
func (c *Config) Cutoff() (time.Time, error) {
	if c.IPODate == "" {
		y, m, d := now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(DateLayout, c.IPODate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid IPO_DATE %q: %w", c.IPODate, err)
	}
	return t, nil
}

// OutputLocation is where exports go: the S3 bucket when set, else OUTPUT_DIR
func (c *Config) OutputLocation() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	if c.S3Bucket != "" {
		return "s3://" + c.S3Bucket
	}
	return "."
}

// TriggerConfig holds the settings of the task trigger function.
type TriggerConfig struct {
	Env            string `mapstructure:"env"`
	ClusterName    string `mapstructure:"ecs_cluster_name"`
	TaskDefinition string `mapstructure:"ecs_task_definition"`
	ContainerName  string `mapstructure:"ecs_container_name"`
	Subnet1        string `mapstructure:"subnet_1"`
	Subnet2        string `mapstructure:"subnet_2"`
	SecurityGroup  string `mapstructure:"security_group"`
	AssignPublicIP string `mapstructure:"assign_public_ip"`
	LogLevel       string `mapstructure:"log_level"`
}

// LoadTrigger reads the trigger settings from environment variables.
//
// Expected environment variables:
//   - ECS_CLUSTER_NAME, ECS_TASK_DEFINITION, ECS_CONTAINER_NAME
//   - SUBNET_1, SUBNET_2, SECURITY_GROUP
//   - ASSIGN_PUBLIC_IP (ENABLED or DISABLED, defaults to DISABLED)
//   - env (run environment passed to the task, defaults to prod)
func LoadTrigger() (*TriggerConfig, error) {
	v := viper.New()

	v.SetDefault("env", EnvProd)
	v.SetDefault("assign_public_ip", "DISABLED")
	v.SetDefault("log_level", "info")

	// The run environment is read from lowercase "env"
	bindings := map[string]string{
		"env":                 "env",
		"ecs_cluster_name":    "ECS_CLUSTER_NAME",
		"ecs_task_definition": "ECS_TASK_DEFINITION",
		"ecs_container_name":  "ECS_CONTAINER_NAME",
		"subnet_1":            "SUBNET_1",
		"subnet_2":            "SUBNET_2",
		"security_group":      "SECURITY_GROUP",
		"assign_public_ip":    "ASSIGN_PUBLIC_IP",
		"log_level":           "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	config := &TriggerConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var missing []string
	for name, val := range map[string]string{
		"ECS_CLUSTER_NAME":    config.ClusterName,
		"ECS_TASK_DEFINITION": config.TaskDefinition,
		"ECS_CONTAINER_NAME":  config.ContainerName,
	} {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return config, nil
}
