// Package gcloud wraps the gcloud command line tool for the deploy
// operations: secret and bucket provisioning, Cloud Run deploy, IAP
// access control and service URL lookup.
package gcloud

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jholst/cloudops/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for gcloud operations.
type Service interface {
	CreateSecret(ctx context.Context, cfg models.DeployConfig, secret models.SecretValue) (*models.ProvisionResult, error)
	CreateBucket(ctx context.Context, cfg models.DeployConfig) (*models.ProvisionResult, error)
	Deploy(ctx context.Context, cfg models.DeployConfig) error
	EnableIAP(ctx context.Context, cfg models.DeployConfig) error
	GrantAccess(ctx context.Context, cfg models.DeployConfig, member string) error
	ServiceURL(ctx context.Context, cfg models.DeployConfig) (string, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
	ExecuteWithInput(ctx context.Context, input string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	return cmd.CombinedOutput()
}

// ExecuteWithInput runs a command with the given string on stdin.
func (e *DefaultExecutor) ExecuteWithInput(ctx context.Context, input string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	cmd.Stdin = bytes.NewBufferString(input)
	return cmd.CombinedOutput()
}

// Impl implements the Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new gcloud service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new gcloud service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// alreadyExists reports whether tool output describes an
// already-existing resource. Only these failures are tolerated by the
// provisioning operations; anything else propagates.
func alreadyExists(output []byte) bool {
	s := string(output)
	return strings.Contains(strings.ToLower(s), "already exists") ||
		strings.Contains(s, "ALREADY_EXISTS")
}

// CreateSecret creates a named secret with the value supplied on
// stdin. An already existing secret is treated as success.
func (s *Impl) CreateSecret(ctx context.Context, cfg models.DeployConfig, secret models.SecretValue) (*models.ProvisionResult, error) {
	s.logger.Info().
		Str("secret", secret.Name).
		Str("project", cfg.ProjectID).
		Msg("creating secret")

	args := []string{
		"secrets", "create", secret.Name,
		"--project", cfg.ProjectID,
		"--replication-policy", "automatic",
		"--data-file", "-",
	}

	output, err := s.executor.ExecuteWithInput(ctx, secret.Value, "gcloud", args...)
	if err != nil {
		if alreadyExists(output) {
			s.logger.Info().Str("secret", secret.Name).Msg("secret already exists, skipping")
			return &models.ProvisionResult{Name: secret.Name, AlreadyExists: true}, nil
		}
		return nil, fmt.Errorf("failed to create secret %s: %w, output: %s", secret.Name, err, string(output))
	}

	s.logger.Info().Str("secret", secret.Name).Msg("secret created")
	return &models.ProvisionResult{Name: secret.Name}, nil
}

// CreateBucket creates the upload bucket for the project. An already
// existing bucket is treated as success.
func (s *Impl) CreateBucket(ctx context.Context, cfg models.DeployConfig) (*models.ProvisionResult, error) {
	bucket := cfg.BucketName()

	s.logger.Info().
		Str("bucket", bucket).
		Str("project", cfg.ProjectID).
		Msg("creating storage bucket")

	args := []string{
		"storage", "buckets", "create", "gs://" + bucket,
		"--project", cfg.ProjectID,
		"--location", cfg.Region,
		"--uniform-bucket-level-access",
	}

	output, err := s.executor.Execute(ctx, "gcloud", args...)
	if err != nil {
		if alreadyExists(output) {
			s.logger.Info().Str("bucket", bucket).Msg("bucket already exists, skipping")
			return &models.ProvisionResult{Name: bucket, AlreadyExists: true}, nil
		}
		return nil, fmt.Errorf("failed to create bucket %s: %w, output: %s", bucket, err, string(output))
	}

	s.logger.Info().Str("bucket", bucket).Msg("bucket created")
	return &models.ProvisionResult{Name: bucket}, nil
}

// Deploy creates or updates the Cloud Run service.
func (s *Impl) Deploy(ctx context.Context, cfg models.DeployConfig) error {
	s.logger.Info().
		Str("service", cfg.ServiceName).
		Str("image", cfg.Image).
		Str("region", cfg.Region).
		Msg("deploying service")

	args := []string{
		"run", "deploy", cfg.ServiceName,
		"--project", cfg.ProjectID,
		"--region", cfg.Region,
		"--image", cfg.Image,
		"--network", cfg.Network,
		"--subnet", cfg.Subnet,
		"--cpu", cfg.CPU,
		"--memory", cfg.Memory,
		"--set-secrets", fmt.Sprintf("DB_PASS=%s:latest,SESSION_SECRET=%s:latest",
			cfg.DBPasswordSecret, cfg.SessionSecret),
		"--no-allow-unauthenticated",
	}

	output, err := s.executor.Execute(ctx, "gcloud", args...)
	if err != nil {
		return fmt.Errorf("failed to deploy %s: %w, output: %s", cfg.ServiceName, err, string(output))
	}

	s.logger.Info().Str("service", cfg.ServiceName).Msg("service deployed")
	return nil
}

// EnableIAP turns on the identity-aware proxy for the service and
// grants the IAP service agent permission to invoke it. Either
// sub-call failing aborts.
func (s *Impl) EnableIAP(ctx context.Context, cfg models.DeployConfig) error {
	s.logger.Info().
		Str("service", cfg.ServiceName).
		Msg("enabling IAP")

	output, err := s.executor.Execute(ctx, "gcloud",
		"beta", "run", "services", "update", cfg.ServiceName,
		"--project", cfg.ProjectID,
		"--region", cfg.Region,
		"--iap",
	)
	if err != nil {
		return fmt.Errorf("failed to enable IAP: %w, output: %s", err, string(output))
	}

	number, err := s.projectNumber(ctx, cfg)
	if err != nil {
		return err
	}

	agent := fmt.Sprintf("serviceAccount:service-%s@gcp-sa-iap.iam.gserviceaccount.com", number)
	output, err = s.executor.Execute(ctx, "gcloud",
		"run", "services", "add-iam-policy-binding", cfg.ServiceName,
		"--project", cfg.ProjectID,
		"--region", cfg.Region,
		"--member", agent,
		"--role", "roles/run.invoker",
	)
	if err != nil {
		return fmt.Errorf("failed to bind invoker role to IAP agent: %w, output: %s", err, string(output))
	}

	s.logger.Info().Str("service", cfg.ServiceName).Msg("IAP enabled")
	return nil
}

func (s *Impl) projectNumber(ctx context.Context, cfg models.DeployConfig) (string, error) {
	output, err := s.executor.Execute(ctx, "gcloud",
		"projects", "describe", cfg.ProjectID,
		"--format", "value(projectNumber)",
	)
	if err != nil {
		return "", fmt.Errorf("failed to look up project number: %w, output: %s", err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// GrantAccess binds the IAP accessor role to the given identity. A
// bare email is treated as a user member.
func (s *Impl) GrantAccess(ctx context.Context, cfg models.DeployConfig, member string) error {
	if !strings.Contains(member, ":") {
		member = "user:" + member
	}

	s.logger.Info().
		Str("member", member).
		Str("service", cfg.ServiceName).
		Msg("granting IAP access")

	output, err := s.executor.Execute(ctx, "gcloud",
		"iap", "web", "add-iam-policy-binding",
		"--project", cfg.ProjectID,
		"--member", member,
		"--role", "roles/iap.httpsResourceAccessor",
	)
	if err != nil {
		return fmt.Errorf("failed to grant access to %s: %w, output: %s", member, err, string(output))
	}

	s.logger.Info().Str("member", member).Msg("access granted")
	return nil
}

// ServiceURL returns the public endpoint of the deployed service.
func (s *Impl) ServiceURL(ctx context.Context, cfg models.DeployConfig) (string, error) {
	output, err := s.executor.Execute(ctx, "gcloud",
		"run", "services", "describe", cfg.ServiceName,
		"--project", cfg.ProjectID,
		"--region", cfg.Region,
		"--format", "value(status.url)",
	)
	if err != nil {
		return "", fmt.Errorf("failed to get service URL: %w, output: %s", err, string(output))
	}

	return strings.TrimSpace(string(output)), nil
}
