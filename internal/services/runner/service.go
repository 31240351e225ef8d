// Package runner orchestrates the sync and deploy workflows.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jholst/cloudops/internal/models"
	"github.com/jholst/cloudops/internal/services/gcloud"
	"github.com/jholst/cloudops/internal/services/postgres"
	"github.com/jholst/cloudops/internal/services/prompt"
	"github.com/rs/zerolog"
)

// Service defines the interface for the workflow runner.
type Service interface {
	Sync(ctx context.Context, cfg models.SyncConfig, withData bool) error
	ProvisionSecrets(ctx context.Context, cfg models.DeployConfig) error
	FullDeploy(ctx context.Context, cfg models.DeployConfig) (string, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	postgresSvc postgres.Service
	gcloudSvc   gcloud.Service
	promptSvc   prompt.Service
	logger      zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		postgresSvc: postgres.New(logger),
		gcloudSvc:   gcloud.New(logger),
		promptSvc:   prompt.New(),
		logger:      logger,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	postgresSvc postgres.Service,
	gcloudSvc gcloud.Service,
	promptSvc prompt.Service,
) *Impl {
	return &Impl{
		postgresSvc: postgresSvc,
		gcloudSvc:   gcloudSvc,
		promptSvc:   promptSvc,
		logger:      logger,
	}
}

// Sync dumps the production schema and applies it to the local
// database. The dump file is kept on disk afterwards.
func (s *Impl) Sync(ctx context.Context, cfg models.SyncConfig, withData bool) error {
	startTime := time.Now()

	s.logger.Info().
		Str("prod_host", cfg.Prod.Host).
		Str("prod_db", cfg.Prod.Database).
		Str("local_host", cfg.Local.Host).
		Str("local_db", cfg.Local.Database).
		Bool("with_data", withData).
		Msg("starting schema sync")

	outputPath := filepath.Join(cfg.DumpDir, postgres.GetOutputFilename(cfg.Prod.Database, withData))

	dumpResult, err := s.postgresSvc.Dump(ctx, cfg.Prod, outputPath, withData)
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}
	if dumpResult.Error != nil {
		return fmt.Errorf("dump failed: %w", dumpResult.Error)
	}

	s.logger.Info().
		Str("output", dumpResult.OutputPath).
		Int64("size_bytes", dumpResult.SizeBytes).
		Dur("duration", dumpResult.Duration).
		Msg("dump completed")

	applyResult, err := s.postgresSvc.Apply(ctx, cfg.Local, dumpResult.OutputPath)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}
	if applyResult.Error != nil {
		return fmt.Errorf("apply failed: %w", applyResult.Error)
	}

	s.logger.Info().
		Str("dump", dumpResult.OutputPath).
		Dur("duration", time.Since(startTime)).
		Msg("schema sync completed")

	return nil
}

// ProvisionSecrets prompts for the two application secrets and stores
// them. The database password entry is masked.
func (s *Impl) ProvisionSecrets(ctx context.Context, cfg models.DeployConfig) error {
	dbPassword, err := s.promptSvc.ReadMasked("database password")
	if err != nil {
		return fmt.Errorf("reading database password: %w", err)
	}

	sessionSecret, err := s.promptSvc.Read("session secret")
	if err != nil {
		return fmt.Errorf("reading session secret: %w", err)
	}

	for _, secret := range []models.SecretValue{
		{Name: cfg.DBPasswordSecret, Value: dbPassword},
		{Name: cfg.SessionSecret, Value: sessionSecret},
	} {
		result, err := s.gcloudSvc.CreateSecret(ctx, cfg, secret)
		if err != nil {
			return fmt.Errorf("provisioning secret %s: %w", secret.Name, err)
		}
		if result.AlreadyExists {
			s.logger.Info().Str("secret", result.Name).Msg("secret already provisioned")
		}
	}

	return nil
}

// FullDeploy runs the complete deploy pipeline: secrets, bucket,
// service deploy, IAP, then URL lookup. Steps run strictly in order
// and the pipeline aborts on the first failure, leaving earlier steps
// in place.
func (s *Impl) FullDeploy(ctx context.Context, cfg models.DeployConfig) (string, error) {
	startTime := time.Now()

	s.logger.Info().
		Str("project", cfg.ProjectID).
		Str("service", cfg.ServiceName).
		Msg("starting full deploy")

	if err := s.ProvisionSecrets(ctx, cfg); err != nil {
		return "", fmt.Errorf("secrets step failed: %w", err)
	}

	if _, err := s.gcloudSvc.CreateBucket(ctx, cfg); err != nil {
		return "", fmt.Errorf("storage step failed: %w", err)
	}

	if err := s.gcloudSvc.Deploy(ctx, cfg); err != nil {
		return "", fmt.Errorf("deploy step failed: %w", err)
	}

	if err := s.gcloudSvc.EnableIAP(ctx, cfg); err != nil {
		return "", fmt.Errorf("iap step failed: %w", err)
	}

	url, err := s.gcloudSvc.ServiceURL(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("url step failed: %w", err)
	}

	s.logger.Info().
		Str("url", url).
		Dur("duration", time.Since(startTime)).
		Msg("full deploy completed")

	return url, nil
}
