// Package config resolves configuration from an optional env file,
// process environment variables and built-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/jholst/cloudops/internal/models"
	"github.com/spf13/viper"
)

// DefaultEnvFile is the fixed relative path checked when no --config
// flag is given.
const DefaultEnvFile = ".env"

// Environment variable names for the schema sync command.
const (
	KeyProdHost     = "PROD_POSTGRES_HOST"
	KeyProdPort     = "PROD_POSTGRES_PORT"
	KeyProdDB       = "PROD_POSTGRES_DB"
	KeyProdUser     = "PROD_POSTGRES_USER"
	KeyProdPassword = "PROD_POSTGRES_PASSWORD"

	KeyLocalHost     = "POSTGRES_HOST"
	KeyLocalPort     = "POSTGRES_PORT"
	KeyLocalDB       = "POSTGRES_DB"
	KeyLocalUser     = "POSTGRES_USER"
	KeyLocalPassword = "POSTGRES_PASSWORD"

	KeyDumpDir = "DUMP_DIR"
)

// Environment variable names for the deploy command.
const (
	KeyProject          = "GOOGLE_CLOUD_PROJECT"
	KeyRegion           = "CLOUD_RUN_REGION"
	KeyService          = "CLOUD_RUN_SERVICE"
	KeyImage            = "DEPLOY_IMAGE"
	KeyNetwork          = "VPC_NETWORK"
	KeySubnet           = "VPC_SUBNET"
	KeyCPU              = "CLOUD_RUN_CPU"
	KeyMemory           = "CLOUD_RUN_MEMORY"
	KeyDBPasswordSecret = "DB_PASSWORD_SECRET"
	KeySessionSecret    = "SESSION_SECRET"
	KeyBucket           = "UPLOAD_BUCKET"
)

// Resolver merges the env file, process environment and defaults into
// explicit configuration records. Precedence: environment variables
// override file values, file values override defaults.
type Resolver struct {
	v *viper.Viper
}

// NewResolver creates a resolver with all defaults registered.
func NewResolver() *Resolver {
	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault(KeyProdPort, 5432)
	v.SetDefault(KeyLocalHost, "localhost")
	v.SetDefault(KeyLocalPort, 5432)
	v.SetDefault(KeyLocalDB, "wiki")
	v.SetDefault(KeyLocalUser, "wiki")
	v.SetDefault(KeyDumpDir, "dumps")

	v.SetDefault(KeyRegion, "europe-north1")
	v.SetDefault(KeyService, "wiki")
	v.SetDefault(KeyImage, "ghcr.io/requarks/wiki:2.5")
	v.SetDefault(KeyNetwork, "default")
	v.SetDefault(KeySubnet, "default")
	v.SetDefault(KeyCPU, "1")
	v.SetDefault(KeyMemory, "1Gi")
	v.SetDefault(KeyDBPasswordSecret, "wikijs-db-password")
	v.SetDefault(KeySessionSecret, "wikijs-session-secret")

	return &Resolver{v: v}
}

// LoadFile reads a key=value env file into the resolver. Lines
// starting with # are ignored by the dotenv parser.
func (r *Resolver) LoadFile(path string) error {
	r.v.SetConfigFile(path)
	if err := r.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading env file: %w", err)
	}
	return nil
}

// LoadFileIfPresent reads the env file when it exists and silently
// skips a missing file. Used for the default .env path, which is
// optional.
func (r *Resolver) LoadFileIfPresent(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return r.LoadFile(path)
}

// LoadReader reads env file content from a string (useful for testing).
func (r *Resolver) LoadReader(content string) error {
	if err := r.v.ReadConfig(strings.NewReader(content)); err != nil {
		return fmt.Errorf("reading env config: %w", err)
	}
	return nil
}

// Sync resolves the schema sync configuration. Required keys must be
// non-empty or an error naming the key is returned before anything
// external is invoked.
func (r *Resolver) Sync() (*models.SyncConfig, error) {
	cfg := &models.SyncConfig{
		Prod: models.PostgresEndpoint{
			Host:     r.v.GetString(KeyProdHost),
			Port:     r.v.GetInt(KeyProdPort),
			Database: r.v.GetString(KeyProdDB),
			Username: r.v.GetString(KeyProdUser),
			Password: r.v.GetString(KeyProdPassword),
		},
		Local: models.PostgresEndpoint{
			Host:     r.v.GetString(KeyLocalHost),
			Port:     r.v.GetInt(KeyLocalPort),
			Database: r.v.GetString(KeyLocalDB),
			Username: r.v.GetString(KeyLocalUser),
			Password: r.v.GetString(KeyLocalPassword),
		},
		DumpDir: r.v.GetString(KeyDumpDir),
	}

	for _, req := range []struct {
		key   string
		value string
	}{
		{KeyProdHost, cfg.Prod.Host},
		{KeyProdDB, cfg.Prod.Database},
		{KeyProdUser, cfg.Prod.Username},
	} {
		if req.value == "" {
			return nil, fmt.Errorf("missing configuration: %s is required", req.key)
		}
	}

	return cfg, nil
}

// Deploy resolves the cloud deploy configuration.
func (r *Resolver) Deploy() (*models.DeployConfig, error) {
	cfg := &models.DeployConfig{
		ProjectID:        r.v.GetString(KeyProject),
		Region:           r.v.GetString(KeyRegion),
		ServiceName:      r.v.GetString(KeyService),
		Image:            r.v.GetString(KeyImage),
		Network:          r.v.GetString(KeyNetwork),
		Subnet:           r.v.GetString(KeySubnet),
		CPU:              r.v.GetString(KeyCPU),
		Memory:           r.v.GetString(KeyMemory),
		DBPasswordSecret: r.v.GetString(KeyDBPasswordSecret),
		SessionSecret:    r.v.GetString(KeySessionSecret),
		Bucket:           r.v.GetString(KeyBucket),
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("missing configuration: %s is required", KeyProject)
	}

	return cfg, nil
}
