package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1, cfg.QuestionMinLength)
	assert.Equal(t, 2000, cfg.QuestionMaxLength)
	assert.Equal(t, 20, cfg.RateLimitMaxRequests)
	assert.Equal(t, time.Hour, cfg.RateLimitWindow)
	assert.Equal(t, IdentityRemoteAddr, cfg.ClientIdentity)
	assert.Equal(t, []string{"gemini-2.0-flash-exp", "gemini-1.5-flash", "gemini-pro"}, cfg.GeminiModels)
	assert.InDelta(t, 0.7, float64(cfg.ModelTemperature), 1e-6)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
	assert.Equal(t, 10*time.Second, cfg.ModelTimeoutMin)
	assert.True(t, cfg.GroundingEnabled)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.AuditEnabled())
	assert.False(t, cfg.EventsEnabled())
}

func Test_Load_RequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GeminiAPIKey:required")
}

func Test_Load_EarlierPolicyProfile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("QUESTION_MIN_LENGTH", "3")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "60s")
	t.Setenv("GROUNDING_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.QuestionMinLength)
	assert.Equal(t, 10, cfg.RateLimitMaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.GroundingEnabled)
}

func Test_Load_ErrorOnBadDuration(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("HTTP_READ_TIMEOUT", "bad")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func Test_Load_RejectsInvertedBounds(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("QUESTION_MIN_LENGTH", "50")
	t.Setenv("QUESTION_MAX_LENGTH", "10")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QuestionMaxLength:gtefield")

	t.Setenv("QUESTION_MIN_LENGTH", "1")
	t.Setenv("WORD_LIMIT_DEFAULT", "600")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WordLimitMax:gtefield")
}

func Test_Load_RedisBackendNeedsURL(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RedisURL:required_if")

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RedisEnabled())
}

func Test_Load_RejectsUnknownIdentityStrategy(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("CLIENT_IDENTITY", "cookie")
	_, err := Load()
	require.Error(t, err)
}

func Test_Load_OptionalSinks(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/app")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AuditEnabled())
	assert.True(t, cfg.EventsEnabled())
	assert.Len(t, cfg.KafkaBrokers, 2)
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, ParseOrigins(""))
	assert.Nil(t, ParseOrigins(" , "))
	assert.Equal(t, []string{"https://a.example", "https://*.github.io"}, ParseOrigins(" https://a.example , https://*.github.io "))
}

func TestLoadPromptPolicy(t *testing.T) {
	p, err := LoadPromptPolicy("")
	require.NoError(t, err)
	assert.Empty(t, p.Template)

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	body := "template: |\n  Q: {{.Question}}\nelaboration_keywords:\n  - \" Deep Dive \"\n  - \"\"\n  - walk me through\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err = LoadPromptPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, "Q: {{.Question}}\n", p.Template)
	assert.Equal(t, []string{"deep dive", "walk me through"}, p.ElaborationKeywords)
}

func TestLoadPromptPolicy_Errors(t *testing.T) {
	_, err := LoadPromptPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("template: [unclosed"), 0o600))
	_, err = LoadPromptPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
