package config

import (
	"fmt"
	"os"
	"sync"

	yamlv2 "gopkg.in/yaml.v2"

	"github.com/sawpanic/signalrun/internal/domain/safety"
)

// Settings is the live-tunable profile: the risk thresholds and scan
// behavior the dashboard may change at runtime. Every evaluation cycle
// reads one consistent snapshot.
type Settings struct {
	RiskPerTrade              float64  `yaml:"risk_per_trade" json:"risk_per_trade"`
	MaxDrawdown               float64  `yaml:"max_drawdown" json:"max_drawdown"`
	MinConfidence             int      `yaml:"min_confidence" json:"min_confidence"`
	MinRiskReward             float64  `yaml:"min_risk_reward" json:"min_risk_reward"`
	TargetRiskReward          float64  `yaml:"target_risk_reward" json:"target_risk_reward"`
	DegradedConfidenceCeiling int      `yaml:"ai_confidence_ceiling_on_degraded_retrieval" json:"ai_confidence_ceiling_on_degraded_retrieval"`
	ReasonerTimeoutMS         int      `yaml:"reasoner_timeout_ms" json:"reasoner_timeout_ms"`
	RetrievalK                int      `yaml:"retrieval_k" json:"retrieval_k"`
	ScanIntervalSec           int      `yaml:"scan_interval_sec" json:"scan_interval_sec"`
	CooldownSec               int      `yaml:"cooldown_sec" json:"cooldown_sec"`
	Symbols                   []string `yaml:"symbols" json:"symbols"`
}

// DefaultSettings returns the production thresholds.
func DefaultSettings() Settings {
	return Settings{
		RiskPerTrade:              1.0,
		MaxDrawdown:               5.0,
		MinConfidence:             60,
		MinRiskReward:             1.5,
		TargetRiskReward:          2.0,
		DegradedConfidenceCeiling: 50,
		ReasonerTimeoutMS:         8000,
		RetrievalK:                5,
		ScanIntervalSec:           30,
		CooldownSec:               300,
		Symbols:                   []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD"},
	}
}

// Validate returns every threshold problem found, empty when clean.
func (s Settings) Validate() []string {
	var errs []string
	if s.RiskPerTrade <= 0 || s.RiskPerTrade > 10 {
		errs = append(errs, fmt.Sprintf("risk_per_trade %.2f outside (0, 10]", s.RiskPerTrade))
	}
	if s.MaxDrawdown <= 0 || s.MaxDrawdown > 50 {
		errs = append(errs, fmt.Sprintf("max_drawdown %.2f outside (0, 50]", s.MaxDrawdown))
	}
	if s.MinConfidence < 0 || s.MinConfidence > 100 {
		errs = append(errs, fmt.Sprintf("min_confidence %d outside [0, 100]", s.MinConfidence))
	}
	if s.MinRiskReward < 1 {
		errs = append(errs, fmt.Sprintf("min_risk_reward %.2f below 1", s.MinRiskReward))
	}
	if s.TargetRiskReward < 1 {
		errs = append(errs, fmt.Sprintf("target_risk_reward %.2f below 1", s.TargetRiskReward))
	} else if s.TargetRiskReward < s.MinRiskReward {
		errs = append(errs, fmt.Sprintf("target_risk_reward %.2f below min_risk_reward %.2f", s.TargetRiskReward, s.MinRiskReward))
	}
	if s.DegradedConfidenceCeiling < 0 || s.DegradedConfidenceCeiling > 100 {
		errs = append(errs, fmt.Sprintf("ai_confidence_ceiling_on_degraded_retrieval %d outside [0, 100]", s.DegradedConfidenceCeiling))
	}
	if s.ReasonerTimeoutMS <= 0 {
		errs = append(errs, "reasoner_timeout_ms must be positive")
	}
	if s.RetrievalK <= 0 || s.RetrievalK > 50 {
		errs = append(errs, fmt.Sprintf("retrieval_k %d outside (0, 50]", s.RetrievalK))
	}
	if s.ScanIntervalSec <= 0 {
		errs = append(errs, "scan_interval_sec must be positive")
	}
	if s.CooldownSec < 0 {
		errs = append(errs, "cooldown_sec must not be negative")
	}
	if len(s.Symbols) == 0 {
		errs = append(errs, "symbols must not be empty")
	}
	return errs
}

// Limits projects the settings into the safety thresholds captured on each
// State snapshot.
func (s Settings) Limits() safety.Limits {
	return safety.Limits{
		RiskPerTrade:              s.RiskPerTrade,
		MaxDrawdown:               s.MaxDrawdown,
		MinConfidence:             s.MinConfidence,
		MinRiskReward:             s.MinRiskReward,
		TargetRiskReward:          s.TargetRiskReward,
		DegradedConfidenceCeiling: s.DegradedConfidenceCeiling,
	}
}

// SettingsStore serializes concurrent access to the live profile and
// round-trips it to disk.
type SettingsStore struct {
	mu   sync.RWMutex
	path string
	cur  Settings
}

// LoadSettings creates a store from the profile at path, falling back to
// defaults when the file does not exist yet.
func LoadSettings(path string) (*SettingsStore, error) {
	store := &SettingsStore{path: path, cur: DefaultSettings()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read settings profile: %w", err)
	}

	var s Settings
	if err := yamlv2.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	if errs := s.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid settings profile: %v", errs)
	}

	store.cur = s
	return store, nil
}

// NewSettingsStore creates an in-memory store (no persistence), used in
// tests and one-off scans.
func NewSettingsStore(s Settings) *SettingsStore {
	return &SettingsStore{cur: s}
}

// Snapshot returns the current profile by value.
func (st *SettingsStore) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur.clone()
}

// Update validates and applies a new profile, persisting it when the store
// is file-backed.
func (st *SettingsStore) Update(s Settings) error {
	if errs := s.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid settings: %v", errs)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.cur = s.clone()
	if st.path == "" {
		return nil
	}

	data, err := yamlv2.Marshal(st.cur)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings profile: %w", err)
	}
	return nil
}

func (s Settings) clone() Settings {
	out := s
	out.Symbols = append([]string(nil), s.Symbols...)
	return out
}
