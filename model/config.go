package model

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/siherrmann/reportrag/helper"
	"gopkg.in/yaml.v3"
)

// FairnessMode decides how the character budget is spread over regions
type FairnessMode string

const (
	FairnessEqualPerRegion FairnessMode = "equal_per_region"
	FairnessGlobalRank     FairnessMode = "global_rank"
)

func (m FairnessMode) Valid() bool {
	return m == FairnessEqualPerRegion || m == FairnessGlobalRank
}

// RetrievalPlan holds the retrieval parameters of one query
type RetrievalPlan struct {
	PerRegionCandidateCount int          `yaml:"per_region_candidate_count" json:"per_region_candidate_count"`
	MaxTotalChars           int          `yaml:"max_total_chars" json:"max_total_chars"`
	AdjacencyWindow         int          `yaml:"adjacency_window" json:"adjacency_window"`
	FairnessMode            FairnessMode `yaml:"fairness_mode" json:"fairness_mode"`
}

// Validate checks the plan against the typical chunk size
func (p RetrievalPlan) Validate(typicalChunkChars int) error {
	if p.PerRegionCandidateCount <= 0 {
		return fmt.Errorf("per_region_candidate_count must be positive, got %d", p.PerRegionCandidateCount)
	}
	if p.AdjacencyWindow < 0 {
		return fmt.Errorf("adjacency_window must not be negative, got %d", p.AdjacencyWindow)
	}
	if !p.FairnessMode.Valid() {
		return fmt.Errorf("invalid fairness_mode %q", p.FairnessMode)
	}
	if p.MaxTotalChars < typicalChunkChars {
		return fmt.Errorf("max_total_chars %d is smaller than one typical chunk (%d)", p.MaxTotalChars, typicalChunkChars)
	}
	return nil
}

// StrategyTable maps every intent kind to its plan
type StrategyTable map[IntentKind]RetrievalPlan

// DefaultStrategyTable returns the tuned per-intent defaults
func DefaultStrategyTable() StrategyTable {
	return StrategyTable{
		IntentSingleRegion: {PerRegionCandidateCount: 30, MaxTotalChars: 40000, AdjacencyWindow: 1, FairnessMode: FairnessGlobalRank},
		IntentMultiRegion:  {PerRegionCandidateCount: 15, MaxTotalChars: 60000, AdjacencyWindow: 1, FairnessMode: FairnessEqualPerRegion},
		IntentAllRegions:   {PerRegionCandidateCount: 8, MaxTotalChars: 80000, AdjacencyWindow: 0, FairnessMode: FairnessEqualPerRegion},
		IntentComparison:   {PerRegionCandidateCount: 25, MaxTotalChars: 100000, AdjacencyWindow: 1, FairnessMode: FairnessEqualPerRegion},
		IntentTopical:      {PerRegionCandidateCount: 60, MaxTotalChars: 100000, AdjacencyWindow: 1, FairnessMode: FairnessGlobalRank},
	}
}

// Validate checks that every intent kind has a valid plan
func (t StrategyTable) Validate(typicalChunkChars int) error {
	for _, kind := range IntentKinds {
		plan, ok := t[kind]
		if !ok {
			return helper.NewError("strategy table", fmt.Errorf("missing entry for intent %s", kind))
		}
		if err := plan.Validate(typicalChunkChars); err != nil {
			return helper.NewError(fmt.Sprintf("strategy table %s", kind), err)
		}
	}
	for kind := range t {
		if !kind.Valid() {
			return helper.NewError("strategy table", fmt.Errorf("unknown intent %q", kind))
		}
	}
	return nil
}

// DensityConfig weights the two parts of the density score
type DensityConfig struct {
	LengthWeight   float64 `yaml:"length_weight"`
	RichnessWeight float64 `yaml:"richness_weight"`
	LengthCap      int     `yaml:"length_cap"`
}

// Config is the runtime configuration of the retrieval service
type Config struct {
	Strategies          StrategyTable `yaml:"strategies"`
	TypicalChunkChars   int           `yaml:"typical_chunk_chars"`
	FanOutLimit         int           `yaml:"fan_out_limit"`
	NeighborFanOutLimit int           `yaml:"neighbor_fan_out_limit"`
	NeighborScoreFactor float64       `yaml:"neighbor_score_factor"`
	QueryTimeout        time.Duration `yaml:"query_timeout"`
	CacheSize           int           `yaml:"cache_size"`
	PostFilterOverfetch int           `yaml:"post_filter_overfetch"`
	Density             DensityConfig `yaml:"density"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() Config {
	return Config{
		Strategies:          DefaultStrategyTable(),
		TypicalChunkChars:   500,
		FanOutLimit:         8,
		NeighborFanOutLimit: 8,
		NeighborScoreFactor: 0.5,
		QueryTimeout:        30 * time.Second,
		CacheSize:           1024,
		PostFilterOverfetch: 4,
		Density: DensityConfig{
			LengthWeight:   0.6,
			RichnessWeight: 0.4,
			LengthCap:      500,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return cfg, helper.NewError("read config", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, helper.NewError("parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate fails on any value the service cannot start with
func (c Config) Validate() error {
	if c.TypicalChunkChars <= 0 {
		return helper.NewError("config", fmt.Errorf("typical_chunk_chars must be positive, got %d", c.TypicalChunkChars))
	}
	if err := c.Strategies.Validate(c.TypicalChunkChars); err != nil {
		return helper.NewError("config", err)
	}
	if c.FanOutLimit <= 0 || c.NeighborFanOutLimit <= 0 {
		return helper.NewError("config", errors.New("fan-out limits must be positive"))
	}
	if c.NeighborScoreFactor <= 0 || c.NeighborScoreFactor > 1 {
		return helper.NewError("config", fmt.Errorf("neighbor_score_factor must be in (0, 1], got %v", c.NeighborScoreFactor))
	}
	if c.QueryTimeout <= 0 {
		return helper.NewError("config", fmt.Errorf("query_timeout must be positive, got %v", c.QueryTimeout))
	}
	if c.CacheSize < 0 {
		return helper.NewError("config", fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize))
	}
	if c.PostFilterOverfetch < 1 {
		return helper.NewError("config", fmt.Errorf("post_filter_overfetch must be at least 1, got %d", c.PostFilterOverfetch))
	}
	d := c.Density
	if d.LengthWeight < 0 || d.RichnessWeight < 0 || d.LengthWeight+d.RichnessWeight <= 0 {
		return helper.NewError("config", errors.New("density weights must be non-negative and not both zero"))
	}
	if d.LengthCap <= 0 {
		return helper.NewError("config", fmt.Errorf("density length_cap must be positive, got %d", d.LengthCap))
	}
	return nil
}
