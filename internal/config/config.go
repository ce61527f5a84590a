package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	ServiceName string
	LogLevel    string

	// AWS credentials. Both empty means the SDK default chain is used.
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string `validate:"required"`

	ClusterIdentifier  string
	MasterUsername     string
	MasterPassword     string
	NodeType           string `validate:"required"`
	NodeCount          int32  `validate:"min=1,max=128"`
	PubliclyAccessible bool
	DatabaseName       string `validate:"required"`
	Port               int32  `validate:"min=1150,max=65535"`
	IAMRoleARN         string `validate:"omitempty,startswith=arn:"`
	ReuseExisting      bool
	WarehouseDriver    string `validate:"oneof=pgx postgres"`

	// S3Endpoint overrides the S3 endpoint for S3-compatible stores.
	S3Endpoint string
	// ArtifactRoot is the directory the worker reads run files from. Paths
	// submitted through the API are resolved below it.
	ArtifactRoot string

	LoadFile         string
	LoadBucket       string
	LoadKey          string
	LoadIgnoreHeader int `validate:"min=0"`
	// LoadMaxErrors is passed to COPY as MAXERROR. Zero rejects the whole
	// load on the first bad row.
	LoadMaxErrors int `validate:"min=0,max=100000"`

	// WaitDelay and WaitMaxAttempts bound the availability poll.
	WaitDelay       time.Duration `validate:"gt=0"`
	WaitMaxAttempts int           `validate:"min=1"`

	CoreDatabaseURL   string
	TemporalAddress   string
	HTTPListenAddr    string
	MetricsListenAddr string
	// MigrateOnStart applies the embedded control database migrations when
	// core-api starts.
	MigrateOnStart bool
	// LoadRunRetentionDays is how long finished runs stay in the control
	// database before the worker's cleanup schedule removes them.
	LoadRunRetentionDays int `validate:"min=1"`

	// DefinitionFile is an optional YAML overlay for cluster and load settings.
	DefinitionFile string
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:        getEnv("SERVICE_NAME", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		ClusterIdentifier:  getEnv("CLUSTER_IDENTIFIER", ""),
		MasterUsername:     getEnv("CLUSTER_MASTER_USERNAME", ""),
		MasterPassword:     getEnv("CLUSTER_MASTER_PASSWORD", ""),
		NodeType:           getEnv("CLUSTER_NODE_TYPE", "dc2.large"),
		DatabaseName:       getEnv("CLUSTER_DATABASE", "dev"),
		IAMRoleARN:         getEnv("REDSHIFT_IAM_ROLE_ARN", ""),
		WarehouseDriver:    getEnv("WAREHOUSE_DRIVER", "pgx"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		ArtifactRoot:       getEnv("ARTIFACT_ROOT", ""),
		LoadFile:           getEnv("LOAD_FILE", "data.csv"),
		LoadBucket:         getEnv("LOAD_BUCKET", ""),
		LoadKey:            getEnv("LOAD_KEY", ""),
		CoreDatabaseURL:    getEnv("CORE_DATABASE_URL", ""),
		TemporalAddress:    getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:  getEnv("METRICS_LISTEN_ADDR", ":9090"),
		DefinitionFile:     getEnv("WAREHOUSE_DEFINITION", ""),
	}

	var errs []error
	var err error
	if cfg.NodeCount, err = getEnvInt32("CLUSTER_NODE_COUNT", 2); err != nil {
		errs = append(errs, err)
	}
	if cfg.Port, err = getEnvInt32("CLUSTER_PORT", 5439); err != nil {
		errs = append(errs, err)
	}
	if cfg.PubliclyAccessible, err = getEnvBool("CLUSTER_PUBLICLY_ACCESSIBLE", true); err != nil {
		errs = append(errs, err)
	}
	if cfg.ReuseExisting, err = getEnvBool("REDSHIFT_REUSE_EXISTING", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.MigrateOnStart, err = getEnvBool("CORE_MIGRATE", true); err != nil {
		errs = append(errs, err)
	}
	if cfg.LoadRunRetentionDays, err = getEnvInt("LOAD_RUN_RETENTION_DAYS", 30); err != nil {
		errs = append(errs, err)
	}
	if cfg.LoadIgnoreHeader, err = getEnvInt("LOAD_IGNORE_HEADER", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.LoadMaxErrors, err = getEnvInt("LOAD_MAX_ERRORS", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.WaitDelay, err = getEnvDuration("WAIT_DELAY", 60*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.WaitMaxAttempts, err = getEnvInt("WAIT_MAX_ATTEMPTS", 30); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.LoadKey == "" && cfg.LoadFile != "" {
		cfg.LoadKey = baseName(cfg.LoadFile)
	}

	if cfg.DefinitionFile != "" {
		if err := cfg.applyDefinition(cfg.DefinitionFile); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks that all fields required by the given component are set.
// Components: "redshift-load", "worker", "core-api".
func (c *Config) Validate(component string) error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch component {
	case "redshift-load":
		require("CLUSTER_IDENTIFIER", c.ClusterIdentifier)
		c.requireCluster(require)
		require("LOAD_FILE", c.LoadFile)
		require("LOAD_BUCKET", c.LoadBucket)
	case "worker":
		c.requireCluster(require)
		require("ARTIFACT_ROOT", c.ArtifactRoot)
		require("CORE_DATABASE_URL", c.CoreDatabaseURL)
		require("TEMPORAL_ADDRESS", c.TemporalAddress)
	case "core-api":
		require("CORE_DATABASE_URL", c.CoreDatabaseURL)
		require("TEMPORAL_ADDRESS", c.TemporalAddress)
		require("HTTP_LISTEN_ADDR", c.HTTPListenAddr)
	default:
		return fmt.Errorf("unknown component %q", component)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables for %s: %s", component, strings.Join(missing, ", "))
	}

	if err := c.validateCredentials(); err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// requireCluster covers the settings every cluster a process creates shares.
// The worker takes identifier, file and bucket from each run instead.
func (c *Config) requireCluster(require func(name, value string)) {
	require("CLUSTER_MASTER_USERNAME", c.MasterUsername)
	require("CLUSTER_MASTER_PASSWORD", c.MasterPassword)
	require("REDSHIFT_IAM_ROLE_ARN", c.IAMRoleARN)
}

// validateCredentials rejects half-configured static keys and a secret key
// that is a copy of the access key id.
func (c *Config) validateCredentials() error {
	switch {
	case c.AWSAccessKeyID == "" && c.AWSSecretAccessKey == "":
		return nil
	case c.AWSAccessKeyID == "":
		return errors.New("AWS_SECRET_ACCESS_KEY is set but AWS_ACCESS_KEY_ID is not")
	case c.AWSSecretAccessKey == "":
		return errors.New("AWS_ACCESS_KEY_ID is set but AWS_SECRET_ACCESS_KEY is not")
	case c.AWSSecretAccessKey == c.AWSAccessKeyID:
		return errors.New("AWS_SECRET_ACCESS_KEY must not equal AWS_ACCESS_KEY_ID")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvInt32(key string, fallback int32) (int32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return int32(n), nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
