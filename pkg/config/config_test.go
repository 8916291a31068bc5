package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0, cfg.Scoring.ScaleMin)
	assert.Equal(t, 5, cfg.Scoring.ScaleMax)
	assert.InDelta(t, 0.6, cfg.Scoring.ReviewThreshold, 1e-9)
	assert.Equal(t, 1, cfg.Pipeline.StartIndex)
	require.Len(t, cfg.Cleaners, 2)
	assert.Equal(t, "Gemini-1.5-Flash", cfg.Cleaners[0].Name)
	assert.Contains(t, cfg.LLM.Providers, "groq")
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.Providers["groq"].BaseURL)
}

func TestLoad_CleanersFromFile(t *testing.T) {
	path := writeConfig(t, `
cleaners:
  - name: Llama
    provider: groq
    model: llama-3.3-70b-versatile
    correct: false
judge:
  provider: openai
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Cleaners, 1)
	assert.Equal(t, "Llama", cfg.Cleaners[0].Name)
	assert.False(t, cfg.Cleaners[0].Correct)
	assert.Equal(t, "gpt-4o-mini", cfg.Judge.Model)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OCR_EVAL_SCORING_SCALEMAX", "10")
	t.Setenv("OCR_EVAL_PIPELINE_WORKERS", "8")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Scoring.ScaleMax)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Cleaners: defaultCleaners(),
			Pipeline: PipelineConfig{StartIndex: 1},
			Scoring:  ScoringConfig{ScaleMin: 0, ScaleMax: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "inverted scale", mutate: func(c *Config) { c.Scoring.ScaleMin = 6 }, wantErr: "inverted"},
		{name: "zero start", mutate: func(c *Config) { c.Pipeline.StartIndex = 0 }, wantErr: "startIndex"},
		{name: "start after end", mutate: func(c *Config) { c.Pipeline.StartIndex = 5; c.Pipeline.EndIndex = 2 }, wantErr: "greater than"},
		{name: "duplicate cleaner", mutate: func(c *Config) { c.Cleaners = append(c.Cleaners, c.Cleaners[0]) }, wantErr: "duplicate"},
		{name: "unnamed cleaner", mutate: func(c *Config) { c.Cleaners[0].Name = "" }, wantErr: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
