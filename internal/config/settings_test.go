package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings_Valid(t *testing.T) {
	assert.Empty(t, DefaultSettings().Validate())
}

func TestSettings_ValidateCatchesBadThresholds(t *testing.T) {
	s := DefaultSettings()
	s.RiskPerTrade = -1
	s.MinConfidence = 150
	s.MinRiskReward = 0.5
	s.TargetRiskReward = 0.8
	s.RetrievalK = 0
	s.Symbols = nil

	errs := s.Validate()
	assert.Len(t, errs, 6, "target_risk_reward fails its absolute floor alongside the others")
}

func TestSettings_ValidateTargetBelowMinimum(t *testing.T) {
	s := DefaultSettings()
	s.MinRiskReward = 2.5 // target stays at the 2.0 default

	errs := s.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "target_risk_reward")
}

func TestSettingsStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := &SettingsStore{path: path, cur: DefaultSettings()}

	updated := DefaultSettings()
	updated.MinConfidence = 70
	updated.Symbols = []string{"EURUSD"}
	require.NoError(t, store.Update(updated))

	reloaded, err := LoadSettings(path)
	require.NoError(t, err)
	got := reloaded.Snapshot()
	assert.Equal(t, 70, got.MinConfidence)
	assert.Equal(t, []string{"EURUSD"}, got.Symbols)
}

func TestSettingsStore_RejectsInvalidUpdate(t *testing.T) {
	store := NewSettingsStore(DefaultSettings())

	bad := DefaultSettings()
	bad.MaxDrawdown = 0

	err := store.Update(bad)
	require.Error(t, err)
	assert.Equal(t, DefaultSettings().MaxDrawdown, store.Snapshot().MaxDrawdown, "failed update leaves the profile untouched")
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	store, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), store.Snapshot())
}

func TestSettings_Limits(t *testing.T) {
	s := DefaultSettings()
	limits := s.Limits()

	assert.Equal(t, s.RiskPerTrade, limits.RiskPerTrade)
	assert.Equal(t, s.MaxDrawdown, limits.MaxDrawdown)
	assert.Equal(t, s.MinConfidence, limits.MinConfidence)
	assert.Equal(t, s.DegradedConfidenceCeiling, limits.DegradedConfidenceCeiling)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, 8090, cfg.HTTP.Port)
}

func TestLoadConfig_FileOverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  host: 0.0.0.0\n  port: 9000\n"), 0o644))

	t.Setenv("REASONER_URL", "http://reasoner:11434")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, "http://reasoner:11434", cfg.Reasoner.URL)
}

func TestSnapshot_IsolatedFromMutation(t *testing.T) {
	store := NewSettingsStore(DefaultSettings())
	snap := store.Snapshot()
	snap.Symbols[0] = "MUTATED"

	assert.Equal(t, "EURUSD", store.Snapshot().Symbols[0], "snapshots never alias the stored slice")
}
