// Package config loads the YAML-driven configuration surface for a
// backtest/evaluation run (spec.md §6 "Configuration options"),
// structured the way sawpanic-cryptorun's internal/config/providers.go
// loads provider configuration: yaml.v3 struct tags, a top-level
// Load* function reading a file path, and a Validate() pass that
// rejects an inconsistent config before anything downstream sees it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/profile"
	"github.com/LenWilliamson/chapaty-sub001/internal/report"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/episode"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

// ExecutionConfig carries the Environment's execution-model options
// (spec.md §6).
type ExecutionConfig struct {
	ExecutionBias        string  `yaml:"execution_bias"` // "optimistic" | "pessimistic"
	InvalidActionPenalty float64 `yaml:"invalid_action_penalty"`
}

// Bias parses ExecutionBias into trade.ExecutionBias.
func (c ExecutionConfig) Bias() (trade.ExecutionBias, error) {
	switch c.ExecutionBias {
	case "optimistic":
		return trade.Optimistic, nil
	case "pessimistic", "":
		return trade.Pessimistic, nil
	default:
		return 0, fmt.Errorf("config: unknown execution_bias %q", c.ExecutionBias)
	}
}

// DefaultExecutionConfig mirrors exits.DefaultExitConfig's role.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{ExecutionBias: "pessimistic", InvalidActionPenalty: -1.0}
}

// ProfileConfig carries the market-profile computation options
// (spec.md §4.B, §6).
type ProfileConfig struct {
	PocRule       string  `yaml:"poc_rule"`        // "lowest_price" | "highest_price" | "closest_to_center"
	ValueAreaRule string  `yaml:"value_area_rule"` // "highest_volume" | "highest_volume_prefer_lower" | "symmetric"
	ValueAreaPct  float64 `yaml:"value_area_pct"`
}

// Parse resolves the string fields into their profile package enums.
func (c ProfileConfig) Parse() (profile.PocRule, profile.ValueAreaRule, error) {
	var pr profile.PocRule
	switch c.PocRule {
	case "lowest_price", "":
		pr = profile.LowestPrice
	case "highest_price":
		pr = profile.HighestPrice
	case "closest_to_center":
		pr = profile.ClosestToCenter
	default:
		return 0, 0, fmt.Errorf("config: unknown poc_rule %q", c.PocRule)
	}

	var vr profile.ValueAreaRule
	switch c.ValueAreaRule {
	case "highest_volume", "":
		vr = profile.HighestVolume
	case "highest_volume_prefer_lower":
		vr = profile.HighestVolumePreferLower
	case "symmetric":
		vr = profile.Symmetric
	default:
		return 0, 0, fmt.Errorf("config: unknown value_area_rule %q", c.ValueAreaRule)
	}
	return pr, vr, nil
}

// DefaultProfileConfig mirrors the original's 70% value-area default.
func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{PocRule: "lowest_price", ValueAreaRule: "highest_volume", ValueAreaPct: 0.70}
}

// EpisodeConfig carries the calendar-episode-length option (spec.md §6).
type EpisodeConfig struct {
	EpisodeLength string `yaml:"episode_length"` // "day" | "week" | "month" | "quarter" | "semi_annual" | "annual" | "infinite"
}

// Length parses EpisodeLength into episode.Length.
func (c EpisodeConfig) Length() (episode.Length, error) {
	switch c.EpisodeLength {
	case "day", "":
		return episode.Day, nil
	case "week":
		return episode.Week, nil
	case "month":
		return episode.Month, nil
	case "quarter":
		return episode.Quarter, nil
	case "semi_annual":
		return episode.SemiAnnual, nil
	case "annual":
		return episode.Annual, nil
	case "infinite":
		return episode.Infinite, nil
	default:
		return 0, fmt.Errorf("config: unknown episode_length %q", c.EpisodeLength)
	}
}

// DefaultEpisodeConfig mirrors the original's day-bounded default.
func DefaultEpisodeConfig() EpisodeConfig {
	return EpisodeConfig{EpisodeLength: "day"}
}

// EnvironmentConfig is the top-level configuration document: one YAML
// file drives an entire backtest/evaluation run (spec.md §6).
type EnvironmentConfig struct {
	Execution   ExecutionConfig         `yaml:"execution"`
	RiskMetrics report.RiskMetricsConfig `yaml:"risk_metrics"`
	Profile     ProfileConfig           `yaml:"profile"`
	Episode     EpisodeConfig           `yaml:"episode"`
}

// DefaultEnvironmentConfig composes every sub-config's default,
// matching exits.DefaultExitConfig's production-ready-starting-point role.
func DefaultEnvironmentConfig() EnvironmentConfig {
	return EnvironmentConfig{
		Execution:   DefaultExecutionConfig(),
		RiskMetrics: report.DefaultRiskMetricsConfig(),
		Profile:     DefaultProfileConfig(),
		Episode:     DefaultEpisodeConfig(),
	}
}

// LoadEnvironmentConfig loads and validates an EnvironmentConfig from a
// YAML file, following providers.LoadProvidersConfig's
// read-unmarshal-validate shape.
func LoadEnvironmentConfig(path string) (EnvironmentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EnvironmentConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultEnvironmentConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EnvironmentConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return EnvironmentConfig{}, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects a config whose options don't resolve to a known
// enum member or whose numeric ranges are nonsensical.
func (c EnvironmentConfig) Validate() error {
	if _, err := c.Execution.Bias(); err != nil {
		return err
	}
	if _, _, err := c.Profile.Parse(); err != nil {
		return err
	}
	if c.Profile.ValueAreaPct <= 0 || c.Profile.ValueAreaPct > 1 {
		return fmt.Errorf("config: profile.value_area_pct must be in (0,1], got %f", c.Profile.ValueAreaPct)
	}
	if _, err := c.Episode.Length(); err != nil {
		return err
	}
	if c.RiskMetrics.PeriodsPerYear <= 0 {
		return fmt.Errorf("config: risk_metrics.periods_per_year must be positive, got %f", c.RiskMetrics.PeriodsPerYear)
	}
	return nil
}
