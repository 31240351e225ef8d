// Package postgres provides schema dump and apply operations via the
// pg_dump and psql command line tools.
package postgres

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jholst/cloudops/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for PostgreSQL schema operations.
type Service interface {
	Dump(ctx context.Context, src models.PostgresEndpoint, outputPath string, withData bool) (*models.DumpResult, error)
	Apply(ctx context.Context, dst models.PostgresEndpoint, dumpPath string) (*models.ApplyResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	// ExecuteToFile runs a command with stdout redirected to outputPath.
	ExecuteToFile(ctx context.Context, env []string, outputPath string, name string, args ...string) error
	// ExecuteWithEnv runs a command and returns its combined output.
	ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// ExecuteToFile runs the command and writes stdout to the given file.
func (e *DefaultExecutor) ExecuteToFile(ctx context.Context, env []string, outputPath string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stderr = os.Stderr

	output, err := os.Create(outputPath) //nolint:gosec // outputPath is controlled by caller
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = output.Close() }()

	cmd.Stdout = output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}

	return nil
}

// ExecuteWithEnv runs a command with additional environment variables.
func (e *DefaultExecutor) ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// Impl implements the PostgreSQL Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new PostgreSQL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new PostgreSQL service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

func connectionArgs(ep models.PostgresEndpoint) []string {
	return []string{
		"-h", ep.Host,
		"-p", fmt.Sprintf("%d", ep.Port),
		"-U", ep.Username,
		"-d", ep.Database,
	}
}

func passwordEnv(ep models.PostgresEndpoint) []string {
	if ep.Password == "" {
		return nil
	}
	return []string{fmt.Sprintf("PGPASSWORD=%s", ep.Password)}
}

// Dump runs pg_dump against the source endpoint, writing plain SQL to
// outputPath. Schema-only unless withData is set.
func (s *Impl) Dump(ctx context.Context, src models.PostgresEndpoint, outputPath string, withData bool) (*models.DumpResult, error) {
	s.logger.Info().
		Str("host", src.Host).
		Int("port", src.Port).
		Str("database", src.Database).
		Bool("with_data", withData).
		Str("output", outputPath).
		Msg("starting schema dump")

	start := time.Now()
	result := &models.DumpResult{
		OutputPath: outputPath,
		WithData:   withData,
	}

	// Ensure output directory exists
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		result.Error = fmt.Errorf("failed to create dump directory: %w", err)
		result.Duration = time.Since(start)
		return result, nil
	}

	args := connectionArgs(src)
	args = append(args, "--no-owner", "--no-privileges")
	if !withData {
		args = append(args, "--schema-only")
	}

	if execErr := s.executor.ExecuteToFile(ctx, passwordEnv(src), outputPath, "pg_dump", args...); execErr != nil {
		// Clean up partial file
		_ = os.Remove(outputPath)
		result.Error = execErr
		result.Duration = time.Since(start)
		return result, nil //nolint:nilerr // error is stored in result struct by design
	}

	if info, err := os.Stat(outputPath); err == nil {
		result.SizeBytes = info.Size()
	}

	result.Duration = time.Since(start)

	s.logger.Info().
		Str("output", outputPath).
		Int64("size_bytes", result.SizeBytes).
		Dur("duration", result.Duration).
		Msg("schema dump completed")

	return result, nil
}

// Apply replays a dump file against the destination endpoint with psql.
func (s *Impl) Apply(ctx context.Context, dst models.PostgresEndpoint, dumpPath string) (*models.ApplyResult, error) {
	s.logger.Info().
		Str("host", dst.Host).
		Int("port", dst.Port).
		Str("database", dst.Database).
		Str("dump", dumpPath).
		Msg("applying schema dump")

	start := time.Now()
	result := &models.ApplyResult{DumpPath: dumpPath}

	if _, err := os.Stat(dumpPath); err != nil {
		result.Error = fmt.Errorf("dump file not readable: %w", err)
		result.Duration = time.Since(start)
		return result, nil
	}

	args := connectionArgs(dst)
	args = append(args, "-v", "ON_ERROR_STOP=1", "-f", dumpPath)

	output, err := s.executor.ExecuteWithEnv(ctx, passwordEnv(dst), "psql", args...)
	if err != nil {
		result.Error = fmt.Errorf("psql failed: %w, output: %s", err, string(output))
		result.Duration = time.Since(start)
		return result, nil //nolint:nilerr // error is stored in result struct by design
	}

	result.Duration = time.Since(start)

	s.logger.Info().
		Str("dump", dumpPath).
		Dur("duration", result.Duration).
		Msg("schema dump applied")

	return result, nil
}

// GetOutputFilename returns a timestamped dump filename for a database.
func GetOutputFilename(database string, withData bool) string {
	timestamp := time.Now().Format("20060102-150405")
	kind := "schema"
	if withData {
		kind = "full"
	}
	return fmt.Sprintf("%s-%s-%s.sql", database, kind, timestamp)
}
