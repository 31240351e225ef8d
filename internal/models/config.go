// Package models contains the data structures used throughout cloudops.
package models

// PostgresEndpoint describes one PostgreSQL connection target.
type PostgresEndpoint struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// SyncConfig holds the configuration for a schema sync run.
type SyncConfig struct {
	Prod    PostgresEndpoint
	Local   PostgresEndpoint
	DumpDir string
}

// DeployConfig holds the configuration for cloud deploy operations.
type DeployConfig struct {
	ProjectID   string
	Region      string
	ServiceName string
	Image       string

	// VPC wiring for the Cloud Run service.
	Network string
	Subnet  string

	// Resource limits passed to the deploy call.
	CPU    string
	Memory string

	// Names of the secrets the service reads at runtime.
	DBPasswordSecret string
	SessionSecret    string

	// Bucket is derived from the project id when empty.
	Bucket string
}

// BucketName returns the upload bucket name, deriving it from the
// project id when no explicit bucket is configured.
func (c DeployConfig) BucketName() string {
	if c.Bucket != "" {
		return c.Bucket
	}
	return c.ProjectID + "-uploads"
}
