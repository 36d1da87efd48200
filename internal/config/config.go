// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Models holds routing assignments: the process-wide default model, an
// optional global override, and the category → model map consulted by the
// router.
type Models struct {
	Default    string            `mapstructure:"default"`
	Override   string            `mapstructure:"override"`
	Categories map[string]string `mapstructure:"categories"`
}

// Price is USD per one million tokens.
type Price struct {
	Input  float64 `mapstructure:"input"`
	Output float64 `mapstructure:"output"`
}

type Cost struct {
	MaxCostPerTask   float64 `mapstructure:"max_cost_per_task"`
	MaxDailyCost     float64 `mapstructure:"max_daily_cost"`
	MaxMonthlyCost   float64 `mapstructure:"max_monthly_cost"`
	WarningThreshold float64 `mapstructure:"warning_threshold"`
	LedgerDir        string  `mapstructure:"ledger_dir"`
}

type Resilience struct {
	FailureThreshold      int           `mapstructure:"failure_threshold"`
	ResetTimeout          time.Duration `mapstructure:"reset_timeout"`
	MaxQueueSize          int           `mapstructure:"max_queue_size"`
	MaxConcurrentTasks    int           `mapstructure:"max_concurrent_tasks"`
	CPUThreshold          float64       `mapstructure:"cpu_threshold"`
	MemoryThreshold       float64       `mapstructure:"memory_threshold"`
	DegradedModeThreshold float64       `mapstructure:"degraded_mode_threshold"`
	SampleInterval        time.Duration `mapstructure:"sample_interval"`
	ConflictTimeout       time.Duration `mapstructure:"conflict_timeout"`
}

type Logging struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	JSON       bool   `mapstructure:"json"`
}

type Observability struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

type Features struct {
	CostTracking        bool   `mapstructure:"cost_tracking"`
	ContextExtraction   bool   `mapstructure:"context_extraction"`
	AutoDetection       bool   `mapstructure:"auto_detection"`
	ConflictDetection   bool   `mapstructure:"conflict_detection"`
	ExtendedJSDetection bool   `mapstructure:"extended_js_detection"`
	ConflictVerbosity   string `mapstructure:"conflict_verbosity"`
}

type Extraction struct {
	MaxTokens         int  `mapstructure:"max_tokens"`
	MinRelevanceScore int  `mapstructure:"min_relevance_score"`
	IncludeImports    bool `mapstructure:"include_imports"`
	PreserveSyntax    bool `mapstructure:"preserve_syntax"`
}

type Editor struct {
	Binary          string        `mapstructure:"binary"`
	VCSBinary       string        `mapstructure:"vcs_binary"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ChatHistoryName string        `mapstructure:"chat_history_name"`
}

type Config struct {
	Models        Models           `mapstructure:"models"`
	Pricing       map[string]Price `mapstructure:"pricing"`
	Cost          Cost             `mapstructure:"cost"`
	Resilience    Resilience       `mapstructure:"resilience"`
	Logging       Logging          `mapstructure:"logging"`
	Observability Observability    `mapstructure:"observability"`
	Features      Features         `mapstructure:"features"`
	Extraction    Extraction       `mapstructure:"extraction"`
	Editor        Editor           `mapstructure:"editor"`
}

func defaultConfig() *Config {
	return &Config{
		Models: Models{
			Default: "gpt-4.1-mini",
			Categories: map[string]string{
				"hard":          "anthropic/claude-sonnet-4",
				"easy":          "gpt-4.1-nano",
				"algorithm":     "anthropic/claude-sonnet-4",
				"testing":       "gpt-4.1-mini",
				"documentation": "gemini/gemini-2.5-flash",
				"writing":       "gemini/gemini-2.5-flash",
				"database":      "gpt-4.1-mini",
				"api":           "gemini/gemini-2.5-flash",
				"frontend":      "gpt-4.1-mini",
				"backend":       "anthropic/claude-sonnet-4",
				"css":           "gemini/gemini-2.5-flash",
				"react":         "gpt-4.1-mini",
				"python":        "anthropic/claude-sonnet-4",
				"javascript":    "gpt-4.1-mini",
				"typescript":    "gpt-4.1-mini",
				"refactor":      "gemini/gemini-2.5-pro",
				"optimization":  "gemini/gemini-2.5-pro",
				"debug":         "gpt-4.1-mini",
			},
		},
		Pricing: map[string]Price{
			"gpt-4.1-mini":              {Input: 0.40, Output: 1.60},
			"gpt-4.1-nano":              {Input: 0.10, Output: 0.40},
			"gemini/gemini-2.5-pro":     {Input: 2.50, Output: 10.00},
			"gemini/gemini-2.5-flash":   {Input: 0.20, Output: 0.40},
			"anthropic/claude-sonnet-4": {Input: 15.00, Output: 75.00},
		},
		Cost: Cost{
			MaxCostPerTask:   5.00,
			MaxDailyCost:     50.00,
			MaxMonthlyCost:   500.00,
			WarningThreshold: 1.00,
			LedgerDir:        "costs",
		},
		Resilience: Resilience{
			FailureThreshold:      3,
			ResetTimeout:          60 * time.Second,
			MaxQueueSize:          10,
			MaxConcurrentTasks:    5,
			CPUThreshold:          90.0,
			MemoryThreshold:       90.0,
			DegradedModeThreshold: 0.8,
			SampleInterval:        2 * time.Second,
			ConflictTimeout:       5 * time.Second,
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			JSON:       true,
		},
		Observability: Observability{
			Enabled:     true,
			MetricsPort: 9090,
		},
		Features: Features{
			CostTracking:      true,
			ContextExtraction: true,
			AutoDetection:     true,
			ConflictDetection: true,
			ConflictVerbosity: "standard",
		},
		Extraction: Extraction{
			MaxTokens:         4000,
			MinRelevanceScore: 3,
			IncludeImports:    true,
			PreserveSyntax:    true,
		},
		Editor: Editor{
			Binary:          "aider",
			VCSBinary:       "git",
			Timeout:         10 * time.Minute,
			ChatHistoryName: ".aider.chat.history.md",
		},
	}
}

func load(overlays []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("models.default", def.Models.Default)
	v.SetDefault("models.override", def.Models.Override)
	v.SetDefault("models.categories", def.Models.Categories)
	pricing := map[string]map[string]float64{}
	for name, p := range def.Pricing {
		pricing[name] = map[string]float64{"input": p.Input, "output": p.Output}
	}
	v.SetDefault("pricing", pricing)

	v.SetDefault("cost.max_cost_per_task", def.Cost.MaxCostPerTask)
	v.SetDefault("cost.max_daily_cost", def.Cost.MaxDailyCost)
	v.SetDefault("cost.max_monthly_cost", def.Cost.MaxMonthlyCost)
	v.SetDefault("cost.warning_threshold", def.Cost.WarningThreshold)
	v.SetDefault("cost.ledger_dir", def.Cost.LedgerDir)

	v.SetDefault("resilience.failure_threshold", def.Resilience.FailureThreshold)
	v.SetDefault("resilience.reset_timeout", def.Resilience.ResetTimeout)
	v.SetDefault("resilience.max_queue_size", def.Resilience.MaxQueueSize)
	v.SetDefault("resilience.max_concurrent_tasks", def.Resilience.MaxConcurrentTasks)
	v.SetDefault("resilience.cpu_threshold", def.Resilience.CPUThreshold)
	v.SetDefault("resilience.memory_threshold", def.Resilience.MemoryThreshold)
	v.SetDefault("resilience.degraded_mode_threshold", def.Resilience.DegradedModeThreshold)
	v.SetDefault("resilience.sample_interval", def.Resilience.SampleInterval)
	v.SetDefault("resilience.conflict_timeout", def.Resilience.ConflictTimeout)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.max_size_mb", def.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", def.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", def.Logging.MaxAgeDays)
	v.SetDefault("logging.json", def.Logging.JSON)

	v.SetDefault("observability.enabled", def.Observability.Enabled)
	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)

	v.SetDefault("features.cost_tracking", def.Features.CostTracking)
	v.SetDefault("features.context_extraction", def.Features.ContextExtraction)
	v.SetDefault("features.auto_detection", def.Features.AutoDetection)
	v.SetDefault("features.conflict_detection", def.Features.ConflictDetection)
	v.SetDefault("features.extended_js_detection", def.Features.ExtendedJSDetection)
	v.SetDefault("features.conflict_verbosity", def.Features.ConflictVerbosity)

	v.SetDefault("extraction.max_tokens", def.Extraction.MaxTokens)
	v.SetDefault("extraction.min_relevance_score", def.Extraction.MinRelevanceScore)
	v.SetDefault("extraction.include_imports", def.Extraction.IncludeImports)
	v.SetDefault("extraction.preserve_syntax", def.Extraction.PreserveSyntax)

	v.SetDefault("editor.binary", def.Editor.Binary)
	v.SetDefault("editor.vcs_binary", def.Editor.VCSBinary)
	v.SetDefault("editor.timeout", def.Editor.Timeout)
	v.SetDefault("editor.chat_history_name", def.Editor.ChatHistoryName)

	// AIDER_* environment values also replace the built-in defaults key by
	// key (e.g. cost.max_cost_per_task <- AIDER_COST_MAX_COST_PER_TASK);
	// AutomaticEnv above still lets them win over the overlays merged below.
	envKey := strings.NewReplacer(".", "_")
	for _, key := range v.AllKeys() {
		if val, ok := os.LookupEnv("AIDER_" + strings.ToUpper(envKey.Replace(key))); ok {
			v.SetDefault(key, val)
		}
	}

	// Overlays merge in ascending priority; a later file wins only for keys
	// it names. A missing overlay is skipped, a malformed one fails the load.
	for _, path := range overlays {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge overlay %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Models.Default == "" {
		return fmt.Errorf("models.default must be non-empty")
	}
	for name, p := range cfg.Pricing {
		if p.Input < 0 || p.Output < 0 {
			return fmt.Errorf("pricing for %q must be >= 0", name)
		}
	}
	if cfg.Cost.MaxCostPerTask < 0 || cfg.Cost.MaxDailyCost < 0 || cfg.Cost.MaxMonthlyCost < 0 || cfg.Cost.WarningThreshold < 0 {
		return fmt.Errorf("cost limits must be >= 0")
	}
	if cfg.Resilience.FailureThreshold < 1 {
		return fmt.Errorf("resilience.failure_threshold must be >= 1")
	}
	if cfg.Resilience.MaxQueueSize < 1 {
		return fmt.Errorf("resilience.max_queue_size must be >= 1")
	}
	if cfg.Resilience.MaxConcurrentTasks < 1 {
		return fmt.Errorf("resilience.max_concurrent_tasks must be >= 1")
	}
	if cfg.Resilience.DegradedModeThreshold <= 0 || cfg.Resilience.DegradedModeThreshold > 1 {
		return fmt.Errorf("resilience.degraded_mode_threshold must be in (0, 1]")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	switch cfg.Features.ConflictVerbosity {
	case "minimal", "standard", "verbose":
	default:
		return fmt.Errorf("features.conflict_verbosity must be minimal|standard|verbose")
	}
	if cfg.Extraction.MaxTokens < 1 {
		return fmt.Errorf("extraction.max_tokens must be >= 1")
	}
	return nil
}

// Manager holds the current snapshot and supports explicit reload. Readers
// see a stable *Config reference between reloads.
type Manager struct {
	mu       sync.RWMutex
	overlays []string
	current  *Config
}

// Load builds a Manager from defaults, AIDER_* environment variables and the
// given overlay files in ascending priority.
func Load(overlays ...string) (*Manager, error) {
	cfg, err := load(overlays)
	if err != nil {
		return nil, err
	}
	return &Manager{overlays: overlays, current: cfg}, nil
}

// Current returns the active snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reload re-reads the layered sources. On any failure the prior snapshot
// stays active and the error is returned.
func (m *Manager) Reload() error {
	cfg, err := load(m.overlays)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	return nil
}
