package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Environment string          `json:"environment"`
	Server      ServerConfig    `json:"server"`
	Database    DatabaseConfig  `json:"database"`
	Storage     StorageConfig   `json:"storage"`
	Security    SecurityConfig  `json:"security"`
	Logging     LoggingConfig   `json:"logging"`
	Workflow    WorkflowConfig  `json:"workflow"`
	Rendering   RenderingConfig `json:"rendering"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// StorageConfig points at the bucket that keeps rendered portarias.
type StorageConfig struct {
	Driver          string        `json:"driver"`
	Bucket          string        `json:"bucket"`
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	UsePathStyle    bool          `json:"use_path_style"`
	PresignTTL      time.Duration `json:"presign_ttl"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret  string        `json:"jwt_secret"`
	TokenTTL   time.Duration `json:"token_ttl"`
	BcryptCost int           `json:"bcrypt_cost"`
	// AdminEmail and AdminPassword seed the first ADMIN account when set.
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// WorkflowConfig tunes the portaria lifecycle.
type WorkflowConfig struct {
	// NumberingStage is "submit" or "sign".
	NumberingStage      string `json:"numbering_stage"`
	RequireReview       bool   `json:"require_review"`
	RevertOnFailure     bool   `json:"revert_on_failure"`
	EscalationThreshold int    `json:"escalation_threshold"`
	DefaultFormat       string `json:"default_format"`
}

// RenderingConfig holds the letterhead printed on every portaria.
type RenderingConfig struct {
	Municipio   string   `json:"municipio"`
	HeaderLines []string `json:"header_lines"`
}

const (
	NumberingOnSubmit = "submit"
	NumberingOnSign   = "sign"
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "docs_cataguases",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			AutoMigrate:    true,
		},
		Storage: StorageConfig{
			Driver:     "s3",
			Bucket:     "portarias",
			Region:     "us-east-1",
			PresignTTL: 15 * time.Minute,
		},
		Security: SecurityConfig{
			TokenTTL:   12 * time.Hour,
			BcryptCost: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Workflow: WorkflowConfig{
			NumberingStage:      NumberingOnSubmit,
			RequireReview:       true,
			RevertOnFailure:     true,
			EscalationThreshold: 3,
			DefaultFormat:       "XXX/YYYY",
		},
		Rendering: RenderingConfig{
			Municipio:   "Prefeitura Municipal de Cataguases",
			HeaderLines: []string{"Estado de Minas Gerais"},
		},
	}
}

// LoadConfig loads configuration from file, .env and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// A missing .env is fine; variables may come from the process environment.
	_ = godotenv.Load()

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Workflow.NumberingStage {
	case NumberingOnSubmit, NumberingOnSign:
	default:
		return fmt.Errorf("invalid numbering stage %q", c.Workflow.NumberingStage)
	}
	if c.Workflow.EscalationThreshold < 1 {
		return fmt.Errorf("escalation threshold must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "s3", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Environment == "production" && c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Environment, "APP_ENV")
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")

	setString(&config.Database.Driver, "DATABASE_DRIVER")
	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&config.Storage.Driver, "STORAGE_DRIVER")
	setString(&config.Storage.Bucket, "S3_BUCKET")
	setString(&config.Storage.Region, "S3_REGION")
	setString(&config.Storage.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&config.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setBool(&config.Storage.UsePathStyle, "S3_USE_PATH_STYLE")
	setDuration(&config.Storage.PresignTTL, "S3_PRESIGN_TTL")

	setString(&config.Security.JWTSecret, "JWT_SECRET")
	setDuration(&config.Security.TokenTTL, "JWT_TTL")
	setInt(&config.Security.BcryptCost, "BCRYPT_COST")
	setString(&config.Security.AdminEmail, "ADMIN_EMAIL")
	setString(&config.Security.AdminPassword, "ADMIN_PASSWORD")

	setString(&config.Logging.Level, "LOG_LEVEL")

	setString(&config.Workflow.NumberingStage, "NUMBERING_STAGE")
	setBool(&config.Workflow.RequireReview, "WORKFLOW_REQUIRE_REVIEW")
	setBool(&config.Workflow.RevertOnFailure, "WORKFLOW_REVERT_ON_FAILURE")
	setInt(&config.Workflow.EscalationThreshold, "WORKFLOW_ESCALATION_THRESHOLD")
	setString(&config.Workflow.DefaultFormat, "NUMBERING_DEFAULT_FORMAT")

	setString(&config.Rendering.Municipio, "RENDERING_MUNICIPIO")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
