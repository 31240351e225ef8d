package runner

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/jholst/cloudops/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations.
type mockPostgresService struct {
	dumpFunc  func(ctx context.Context, src models.PostgresEndpoint, outputPath string, withData bool) (*models.DumpResult, error)
	applyFunc func(ctx context.Context, dst models.PostgresEndpoint, dumpPath string) (*models.ApplyResult, error)
}

func (m *mockPostgresService) Dump(ctx context.Context, src models.PostgresEndpoint, outputPath string, withData bool) (*models.DumpResult, error) {
	if m.dumpFunc != nil {
		return m.dumpFunc(ctx, src, outputPath, withData)
	}
	return &models.DumpResult{OutputPath: outputPath, WithData: withData, SizeBytes: 1024}, nil
}

func (m *mockPostgresService) Apply(ctx context.Context, dst models.PostgresEndpoint, dumpPath string) (*models.ApplyResult, error) {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, dst, dumpPath)
	}
	return &models.ApplyResult{DumpPath: dumpPath}, nil
}

type mockGcloudService struct {
	steps []string

	createSecretFunc func(ctx context.Context, cfg models.DeployConfig, secret models.SecretValue) (*models.ProvisionResult, error)
	createBucketFunc func(ctx context.Context, cfg models.DeployConfig) (*models.ProvisionResult, error)
	deployFunc       func(ctx context.Context, cfg models.DeployConfig) error
	enableIAPFunc    func(ctx context.Context, cfg models.DeployConfig) error
	grantAccessFunc  func(ctx context.Context, cfg models.DeployConfig, member string) error
	serviceURLFunc   func(ctx context.Context, cfg models.DeployConfig) (string, error)
}

func (m *mockGcloudService) CreateSecret(ctx context.Context, cfg models.DeployConfig, secret models.SecretValue) (*models.ProvisionResult, error) {
	m.steps = append(m.steps, "secret:"+secret.Name)
	if m.createSecretFunc != nil {
		return m.createSecretFunc(ctx, cfg, secret)
	}
	return &models.ProvisionResult{Name: secret.Name}, nil
}

func (m *mockGcloudService) CreateBucket(ctx context.Context, cfg models.DeployConfig) (*models.ProvisionResult, error) {
	m.steps = append(m.steps, "bucket")
	if m.createBucketFunc != nil {
		return m.createBucketFunc(ctx, cfg)
	}
	return &models.ProvisionResult{Name: cfg.BucketName()}, nil
}

func (m *mockGcloudService) Deploy(ctx context.Context, cfg models.DeployConfig) error {
	m.steps = append(m.steps, "deploy")
	if m.deployFunc != nil {
		return m.deployFunc(ctx, cfg)
	}
	return nil
}

func (m *mockGcloudService) EnableIAP(ctx context.Context, cfg models.DeployConfig) error {
	m.steps = append(m.steps, "iap")
	if m.enableIAPFunc != nil {
		return m.enableIAPFunc(ctx, cfg)
	}
	return nil
}

func (m *mockGcloudService) GrantAccess(ctx context.Context, cfg models.DeployConfig, member string) error {
	m.steps = append(m.steps, "grant:"+member)
	if m.grantAccessFunc != nil {
		return m.grantAccessFunc(ctx, cfg, member)
	}
	return nil
}

func (m *mockGcloudService) ServiceURL(ctx context.Context, cfg models.DeployConfig) (string, error) {
	m.steps = append(m.steps, "url")
	if m.serviceURLFunc != nil {
		return m.serviceURLFunc(ctx, cfg)
	}
	return "https://wiki-abc123-lz.a.run.app", nil
}

type mockPromptService struct {
	readFunc       func(label string) (string, error)
	readMaskedFunc func(label string) (string, error)
}

func (m *mockPromptService) Read(label string) (string, error) {
	if m.readFunc != nil {
		return m.readFunc(label)
	}
	return "plain-value", nil
}

func (m *mockPromptService) ReadMasked(label string) (string, error) {
	if m.readMaskedFunc != nil {
		return m.readMaskedFunc(label)
	}
	return "masked-value", nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func syncConfig() models.SyncConfig {
	return models.SyncConfig{
		Prod: models.PostgresEndpoint{
			Host:     "db.example.com",
			Port:     5432,
			Database: "wiki",
			Username: "wiki_ro",
		},
		Local: models.PostgresEndpoint{
			Host:     "localhost",
			Port:     5432,
			Database: "wiki",
			Username: "wiki",
		},
		DumpDir: "dumps",
	}
}

func deployConfig() models.DeployConfig {
	return models.DeployConfig{
		ProjectID:        "wiki-prod-1234",
		Region:           "europe-north1",
		ServiceName:      "wiki",
		Image:            "ghcr.io/requarks/wiki:2.5",
		DBPasswordSecret: "wikijs-db-password",
		SessionSecret:    "wikijs-session-secret",
	}
}

func newTestRunner(pg *mockPostgresService, gc *mockGcloudService, pr *mockPromptService) *Impl {
	return NewWithServices(testLogger(), pg, gc, pr)
}

func TestSync_Success(t *testing.T) {
	var dumpPath string
	var appliedPath string

	pg := &mockPostgresService{
		dumpFunc: func(ctx context.Context, src models.PostgresEndpoint, outputPath string, withData bool) (*models.DumpResult, error) {
			dumpPath = outputPath
			return &models.DumpResult{OutputPath: outputPath, SizeBytes: 512}, nil
		},
		applyFunc: func(ctx context.Context, dst models.PostgresEndpoint, p string) (*models.ApplyResult, error) {
			appliedPath = p
			return &models.ApplyResult{DumpPath: p}, nil
		},
	}

	svc := newTestRunner(pg, &mockGcloudService{}, &mockPromptService{})
	err := svc.Sync(context.Background(), syncConfig(), false)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dumpPath, "dumps/"))
	assert.Contains(t, dumpPath, "wiki-schema-")
	assert.Equal(t, dumpPath, appliedPath, "apply must consume the dump just written")
}

func TestSync_WithDataFlag(t *testing.T) {
	var capturedWithData bool

	pg := &mockPostgresService{
		dumpFunc: func(ctx context.Context, src models.PostgresEndpoint, outputPath string, withData bool) (*models.DumpResult, error) {
			capturedWithData = withData
			return &models.DumpResult{OutputPath: outputPath}, nil
		},
	}

	svc := newTestRunner(pg, &mockGcloudService{}, &mockPromptService{})
	err := svc.Sync(context.Background(), syncConfig(), true)

	require.NoError(t, err)
	assert.True(t, capturedWithData)
}

func TestSync_DumpFailureSkipsApply(t *testing.T) {
	applied := false

	pg := &mockPostgresService{
		dumpFunc: func(ctx context.Context, src models.PostgresEndpoint, outputPath string, withData bool) (*models.DumpResult, error) {
			return &models.DumpResult{Error: errors.New("connection refused")}, nil
		},
		applyFunc: func(ctx context.Context, dst models.PostgresEndpoint, p string) (*models.ApplyResult, error) {
			applied = true
			return &models.ApplyResult{}, nil
		},
	}

	svc := newTestRunner(pg, &mockGcloudService{}, &mockPromptService{})
	err := svc.Sync(context.Background(), syncConfig(), false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump failed")
	assert.False(t, applied, "apply must not run after a failed dump")
}

func TestSync_ApplyFailure(t *testing.T) {
	pg := &mockPostgresService{
		applyFunc: func(ctx context.Context, dst models.PostgresEndpoint, p string) (*models.ApplyResult, error) {
			return &models.ApplyResult{Error: errors.New("syntax error")}, nil
		},
	}

	svc := newTestRunner(pg, &mockGcloudService{}, &mockPromptService{})
	err := svc.Sync(context.Background(), syncConfig(), false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply failed")
}

func TestProvisionSecrets_PromptsAndCreatesBoth(t *testing.T) {
	var created []models.SecretValue

	gc := &mockGcloudService{
		createSecretFunc: func(ctx context.Context, cfg models.DeployConfig, secret models.SecretValue) (*models.ProvisionResult, error) {
			created = append(created, secret)
			return &models.ProvisionResult{Name: secret.Name}, nil
		},
	}
	pr := &mockPromptService{
		readMaskedFunc: func(label string) (string, error) { return "dbpass", nil },
		readFunc:       func(label string) (string, error) { return "sessionval", nil },
	}

	svc := newTestRunner(&mockPostgresService{}, gc, pr)
	err := svc.ProvisionSecrets(context.Background(), deployConfig())

	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "wikijs-db-password", created[0].Name)
	assert.Equal(t, "dbpass", created[0].Value)
	assert.Equal(t, "wikijs-session-secret", created[1].Name)
	assert.Equal(t, "sessionval", created[1].Value)
}

func TestProvisionSecrets_AlreadyExistsIsSuccess(t *testing.T) {
	gc := &mockGcloudService{
		createSecretFunc: func(ctx context.Context, cfg models.DeployConfig, secret models.SecretValue) (*models.ProvisionResult, error) {
			return &models.ProvisionResult{Name: secret.Name, AlreadyExists: true}, nil
		},
	}

	svc := newTestRunner(&mockPostgresService{}, gc, &mockPromptService{})
	err := svc.ProvisionSecrets(context.Background(), deployConfig())

	assert.NoError(t, err)
}

func TestProvisionSecrets_PromptFailureSkipsCreation(t *testing.T) {
	gc := &mockGcloudService{}
	pr := &mockPromptService{
		readMaskedFunc: func(label string) (string, error) { return "", errors.New("eof") },
	}

	svc := newTestRunner(&mockPostgresService{}, gc, pr)
	err := svc.ProvisionSecrets(context.Background(), deployConfig())

	require.Error(t, err)
	assert.Empty(t, gc.steps, "no secret may be created when the prompt fails")
}

func TestFullDeploy_StepOrder(t *testing.T) {
	gc := &mockGcloudService{}

	svc := newTestRunner(&mockPostgresService{}, gc, &mockPromptService{})
	url, err := svc.FullDeploy(context.Background(), deployConfig())

	require.NoError(t, err)
	assert.Equal(t, "https://wiki-abc123-lz.a.run.app", url)
	assert.Equal(t, []string{
		"secret:wikijs-db-password",
		"secret:wikijs-session-secret",
		"bucket",
		"deploy",
		"iap",
		"url",
	}, gc.steps)
}

func TestFullDeploy_BucketFailureStopsPipeline(t *testing.T) {
	gc := &mockGcloudService{
		createBucketFunc: func(ctx context.Context, cfg models.DeployConfig) (*models.ProvisionResult, error) {
			return nil, errors.New("permission denied")
		},
	}

	svc := newTestRunner(&mockPostgresService{}, gc, &mockPromptService{})
	_, err := svc.FullDeploy(context.Background(), deployConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage step failed")
	assert.NotContains(t, gc.steps, "deploy")
	assert.NotContains(t, gc.steps, "iap")
	assert.NotContains(t, gc.steps, "url")
}

func TestFullDeploy_DeployFailureStopsPipeline(t *testing.T) {
	gc := &mockGcloudService{
		deployFunc: func(ctx context.Context, cfg models.DeployConfig) error {
			return errors.New("image not found")
		},
	}

	svc := newTestRunner(&mockPostgresService{}, gc, &mockPromptService{})
	_, err := svc.FullDeploy(context.Background(), deployConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "deploy step failed")
	assert.NotContains(t, gc.steps, "iap")
	assert.NotContains(t, gc.steps, "url")
}
