package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	validConfigPath              = "testdata/valid_config.yaml"
	expansionConfigPath          = "testdata/expansion_config.yaml"
	expansionConfigMissingPath   = "testdata/expansion_config_missing.yaml"
	nonexistentConfigPath        = "testdata/nonexistent_config.yaml"
	expectedNoErrorLoadingConfig = "expected no error loading config, got %v"
	expectedNoErrorMsg           = "expected no error, got %v"
	expectedNonNilConfig         = "expected non-nil config"
	kyoteiName                   = "kyotei-predictor"
	developmentEnv               = "development"
	invalidEnv                   = "invalid"
	testAppName                  = "test-app"
	testDBPassword               = "TEST_DB_PASSWORD"
	testMissingVar               = "TEST_MISSING_VAR"
	expandedSecretValue          = "expanded_secret_value"
)

// TestLoadConfigSuccess tests loading a valid configuration file
func TestLoadConfigSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg == nil {
		t.Fatal(expectedNonNilConfig)
	}

	if cfg.App.Name != kyoteiName {
		t.Errorf("expected app name '%s', got '%s'", kyoteiName, cfg.App.Name)
	}

	if cfg.App.Environment != developmentEnv {
		t.Errorf("expected environment '%s', got '%s'", developmentEnv, cfg.App.Environment)
	}

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected database driver '%s', got '%s'", DriverSQLite, cfg.Database.Driver)
	}

	if cfg.DataSource.MinRequestInterval != time.Second {
		t.Errorf("expected min request interval 1s, got %s", cfg.DataSource.MinRequestInterval)
	}

	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected cache ttl 5m, got %s", cfg.Cache.TTL)
	}

	if cfg.Pipeline.Variant != VariantCached {
		t.Errorf("expected variant '%s', got '%s'", VariantCached, cfg.Pipeline.Variant)
	}
}

// TestLoadConfigFileNotFound tests handling of missing configuration file
func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := Load(nonexistentConfigPath)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestLoadConfigEnvironmentVariables tests environment variable override
func TestLoadConfigEnvironmentVariables(t *testing.T) {
	t.Setenv("KYOTEI_APP_NAME", testAppName)
	t.Setenv("KYOTEI_PIPELINE_VARIANT", VariantOptimized)

	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.App.Name != testAppName {
		t.Errorf("expected app name '%s' from environment, got '%s'", testAppName, cfg.App.Name)
	}
	if cfg.Pipeline.Variant != VariantOptimized {
		t.Errorf("expected variant '%s' from environment, got '%s'", VariantOptimized, cfg.Pipeline.Variant)
	}
}

// TestLoadWithDefaultsMissingFile tests that defaults apply when no file exists
func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Scoring.ConfidenceSteepness != 10 {
		t.Errorf("expected default steepness 10, got %v", cfg.Scoring.ConfidenceSteepness)
	}
	if cfg.Scoring.OtherFactor != "neutral" {
		t.Errorf("expected default residual factor neutral, got %q", cfg.Scoring.OtherFactor)
	}
	if cfg.Scheduler.PredictionCron != "0 6 * * *" {
		t.Errorf("unexpected default prediction cron %q", cfg.Scheduler.PredictionCron)
	}
}

// TestValidateSuccess tests validation of a valid configuration
func TestValidateSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	err = Validate(cfg)
	if err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

// TestValidateInvalidEnvironment tests validation of invalid environment
func TestValidateInvalidEnvironment(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.App.Environment = invalidEnv
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid environment")
	}
}

// TestValidateRejections covers the custom and cross-field rules
func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown variant", func(c *Config) { c.Pipeline.Variant = "turbo" }, "basic, cached, optimized"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "sqlite, postgres"},
		{"bad cron", func(c *Config) { c.Scheduler.ReportCron = "every day" }, "cron"},
		{"interval too short", func(c *Config) { c.DataSource.MinRequestInterval = 200 * time.Millisecond }, "min_request_interval"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"postgres without host", func(c *Config) { c.Database.Driver = DriverPostgres }, "postgres driver"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheBackendRedis }, "redis_addr"},
		{"stale shorter than ttl", func(c *Config) { c.Cache.StaleRetention = time.Minute }, "stale_retention"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "timezone"},
		{"unknown residual factor", func(c *Config) { c.Scoring.OtherFactor = "weather" }, "OtherFactor"},
		{"production postgres without ssl", func(c *Config) {
			c.App.Environment = "production"
			c.Database.Driver = DriverPostgres
			c.Database.Host = "db"
			c.Database.Name = "kyotei"
			c.Database.User = "kyotei"
		}, "SSL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(validConfigPath)
			if err != nil {
				t.Fatalf(expectedNoErrorLoadingConfig, err)
			}
			tt.mutate(cfg)

			err = Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !containsSubstring(err.Error(), tt.want) {
				t.Errorf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

// TestSchedulerDisabledSkipsCron tests that empty cron specs are accepted when disabled
func TestSchedulerDisabledSkipsCron(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Scheduler = SchedulerConfig{Enabled: false}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

// TestValidateEnvironment tests production-only checks
func TestValidateEnvironment(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	if err := ValidateEnvironment(cfg); err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	cfg.App.Environment = "production"
	cfg.Pipeline.Variant = VariantBasic
	if err := ValidateEnvironment(cfg); err == nil {
		t.Fatal("expected error for basic variant in production")
	}
}

// TestGetDatabaseDSN tests DSN generation
func TestGetDatabaseDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "localhost", Port: 5432, Name: "kyotei", User: "kyotei", Password: "pw", SSLMode: "disable",
	}}

	want := "postgres://kyotei:pw@localhost:5432/kyotei?sslmode=disable"
	if got := cfg.GetDatabaseDSN(); got != want {
		t.Errorf("expected DSN %q, got %q", want, got)
	}
}

// TestEnvironmentHelpers tests IsDevelopment/IsStaging/IsProduction
func TestEnvironmentHelpers(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "staging"}}
	if cfg.IsDevelopment() || !cfg.IsStaging() || cfg.IsProduction() {
		t.Errorf("unexpected environment helpers for staging")
	}
}

// TestVariantHelpers tests cache and worker selection per variant
func TestVariantHelpers(t *testing.T) {
	tests := []struct {
		variant     string
		wantCache   bool
		wantWorkers int
	}{
		{VariantBasic, false, 1},
		{VariantCached, true, 1},
		{VariantOptimized, true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			cfg := &Config{Pipeline: PipelineConfig{Variant: tt.variant, Workers: 4}}
			if cfg.CacheEnabled() != tt.wantCache {
				t.Errorf("CacheEnabled() = %v, want %v", cfg.CacheEnabled(), tt.wantCache)
			}
			if cfg.EffectiveWorkers() != tt.wantWorkers {
				t.Errorf("EffectiveWorkers() = %d, want %d", cfg.EffectiveWorkers(), tt.wantWorkers)
			}
		})
	}
}

// TestEnvironmentVariableExpansion tests ${VAR} expansion in the YAML file
func TestEnvironmentVariableExpansion(t *testing.T) {
	os.Setenv(testDBPassword, expandedSecretValue)
	defer os.Unsetenv(testDBPassword)

	cfg, err := Load(expansionConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.Database.Password != expandedSecretValue {
		t.Errorf("expected expanded password '%s', got '%s'", expandedSecretValue, cfg.Database.Password)
	}
}

// TestEnvironmentVariableExpansionMissing tests that unset variables expand to empty strings
func TestEnvironmentVariableExpansionMissing(t *testing.T) {
	os.Unsetenv(testMissingVar)

	cfg, err := Load(expansionConfigMissingPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.Database.Password != "" {
		t.Errorf("expected empty password, got '%s'", cfg.Database.Password)
	}
}

type fakeSecrets struct {
	out *secretsmanager.GetSecretValueOutput
	err error
}

func (f fakeSecrets) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return f.out, f.err
}

// TestSecretsOverlay tests that fetched secrets replace config values
func TestSecretsOverlay(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	client := fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"database_password":"s3cret","redis_password":"r3dis"}`),
	}}
	secrets, err := fetchSecrets(context.Background(), client, "kyotei/prod")
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}
	overlaySecretsOnConfig(cfg, secrets)

	if cfg.Database.Password != "s3cret" {
		t.Errorf("expected overlaid password, got '%s'", cfg.Database.Password)
	}
	if cfg.Cache.RedisPassword != "r3dis" {
		t.Errorf("expected overlaid redis password, got '%s'", cfg.Cache.RedisPassword)
	}
}

// TestSecretsErrors tests upstream and empty secret failures
func TestSecretsErrors(t *testing.T) {
	_, err := fetchSecrets(context.Background(), fakeSecrets{err: errors.New("denied")}, "x")
	if err == nil || !containsSubstring(err.Error(), "denied") {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}

	_, err = fetchSecrets(context.Background(), fakeSecrets{out: &secretsmanager.GetSecretValueOutput{}}, "x")
	if err == nil {
		t.Fatal("expected error for empty secret")
	}
}

// containsSubstring checks if a string contains a substring
func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
