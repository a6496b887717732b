package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GCP       GCPConfig       `mapstructure:"gcp"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Restore   RestoreConfig   `mapstructure:"restore"`
	Report    ReportConfig    `mapstructure:"report"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	Host string `mapstructure:"host"`
}

type GCPConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	DatasetID       string `mapstructure:"dataset_id"`
	Location        string `mapstructure:"location"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type WarehouseConfig struct {
	Provider    string        `mapstructure:"provider"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type StorageConfig struct {
	Provider     string      `mapstructure:"provider"`
	Bucket       string      `mapstructure:"bucket"`
	BackupPrefix string      `mapstructure:"backup_prefix"`
	CSVPrefix    string      `mapstructure:"csv_prefix"`
	MinIO        MinIOConfig `mapstructure:"minio"`
	S3           S3Config    `mapstructure:"s3"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
}

type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	SessionToken string `mapstructure:"session_token"`
}

type IngestConfig struct {
	MaxRecordsPerInsert int    `mapstructure:"max_records_per_insert"`
	InvalidLogFile      string `mapstructure:"invalid_log_file"`
	CSVSkipLeadingRows  int64  `mapstructure:"csv_skip_leading_rows"`
}

type RestoreConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	SettleStrategy     string        `mapstructure:"settle_strategy"`
	SettleDelay        time.Duration `mapstructure:"settle_delay"`
	SettlePollInterval time.Duration `mapstructure:"settle_poll_interval"`
	SettleTimeout      time.Duration `mapstructure:"settle_timeout"`
	// LegacyDescendingColumnOrder reorders restored rows by descending ordinal position
	LegacyDescendingColumnOrder bool `mapstructure:"legacy_descending_column_order"`
}

type ReportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

type MetadataConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SecurityConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpiration      time.Duration `mapstructure:"jwt_expiration"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	EnableAuth         bool          `mapstructure:"enable_auth"`
	EnableRateLimit    bool          `mapstructure:"enable_rate_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	SettlePoll  = "poll"
	SettleSleep = "sleep"
)

// Load reads config.yaml from ./configs or the working directory, then the environment
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set default values
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// bindLegacyEnv maps the environment names deployments already use
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"gcp.project_id":       "PROJECT_ID",
		"gcp.dataset_id":       "DATASET_ID",
		"storage.bucket":       "BUCKET_NAME",
		"gcp.credentials_file": "GOOGLE_APPLICATION_CREDENTIALS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("error binding %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.host", "0.0.0.0")

	// Warehouse defaults
	v.SetDefault("gcp.location", "US")
	v.SetDefault("warehouse.provider", "bigquery")
	v.SetDefault("warehouse.call_timeout", "2m")

	// Storage defaults
	v.SetDefault("storage.provider", "gcs")
	v.SetDefault("storage.backup_prefix", "Backup")
	v.SetDefault("storage.csv_prefix", "")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("storage.minio.secure", false)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.session_token", "")

	// Ingest defaults
	v.SetDefault("ingest.max_records_per_insert", 1000)
	v.SetDefault("ingest.invalid_log_file", "invalid_transactions.log")
	v.SetDefault("ingest.csv_skip_leading_rows", 0)

	// Restore defaults
	v.SetDefault("restore.timeout", "10m")
	v.SetDefault("restore.settle_strategy", SettlePoll)
	v.SetDefault("restore.settle_delay", "5s")
	v.SetDefault("restore.settle_poll_interval", "1s")
	v.SetDefault("restore.settle_timeout", "60s")
	v.SetDefault("restore.legacy_descending_column_order", false)

	// Report defaults
	v.SetDefault("report.chart_width", 1024)
	v.SetDefault("report.chart_height", 512)

	// Metadata database defaults
	v.SetDefault("metadata.driver", "sqlite")
	v.SetDefault("metadata.dsn", "")
	v.SetDefault("metadata.host", "localhost")
	v.SetDefault("metadata.port", "3306")
	v.SetDefault("metadata.database", "gateway_db")
	v.SetDefault("metadata.username", "gateway_user")
	v.SetDefault("metadata.password", "")

	// Security defaults
	v.SetDefault("security.jwt_secret", "your-secret-key")
	v.SetDefault("security.jwt_expiration", "24h")
	v.SetDefault("security.rate_limit_per_minute", 60)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.enable_auth", false)
	v.SetDefault("security.enable_rate_limit", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks provider names and the settings each provider needs
func (c *Config) Validate() error {
	switch c.Warehouse.Provider {
	case "bigquery":
		if c.GCP.ProjectID == "" || c.GCP.DatasetID == "" {
			return errors.New("gcp.project_id and gcp.dataset_id are required for the bigquery warehouse")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown warehouse provider %q", c.Warehouse.Provider)
	}

	switch c.Storage.Provider {
	case "gcs", "minio", "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the %s store", c.Storage.Provider)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}

	if c.Warehouse.Provider == "bigquery" && c.Storage.Provider != "gcs" {
		return errors.New("the bigquery warehouse loads from and extracts to gcs only")
	}

	switch c.Restore.SettleStrategy {
	case SettlePoll, SettleSleep:
	default:
		return fmt.Errorf("unknown restore.settle_strategy %q", c.Restore.SettleStrategy)
	}

	switch c.Metadata.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unknown metadata driver %q", c.Metadata.Driver)
	}

	if c.Ingest.MaxRecordsPerInsert <= 0 {
		return errors.New("ingest.max_records_per_insert must be positive")
	}
	return nil
}
