package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netsuite-assist/coordinator/internal/audit"
)

// Config is coordinatord's own small, self-contained configuration shape:
// one flat YAML document, deliberately not a larger merged/included config
// tree this binary has no use for.
type Config struct {
	LLM struct {
		Provider string `yaml:"provider"` // "anthropic", "openai", "bedrock", or "google"
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"llm"`

	Repository struct {
		Driver string `yaml:"driver"` // only "memory" (or empty) is accepted by buildRepository
		DSN    string `yaml:"dsn"`
	} `yaml:"repository"`

	Coordinator struct {
		PlannerModel    string `yaml:"planner_model"`
		SpecialistModel string `yaml:"specialist_model"`
		SynthesisModel  string `yaml:"synthesis_model"`
		MaxOutputTokens int    `yaml:"max_output_tokens"`
	} `yaml:"coordinator"`

	Governance struct {
		RateWindowSeconds int `yaml:"rate_window_seconds"`
	} `yaml:"governance"`

	Audit audit.Config `yaml:"audit"`

	Sandbox struct {
		ScratchDir string `yaml:"scratch_dir"`
	} `yaml:"sandbox"`

	Serve struct {
		Addr string `yaml:"addr"`
	} `yaml:"serve"`
}

// DefaultConfig mirrors the values a brand-new deployment needs to run the
// in-memory demo path end to end.
func DefaultConfig() Config {
	var c Config
	c.LLM.Provider = "anthropic"
	c.LLM.Model = "claude-sonnet-4-5"
	c.Repository.Driver = "memory"
	c.Coordinator.PlannerModel = "claude-haiku-4-5"
	c.Coordinator.SpecialistModel = "claude-sonnet-4-5"
	c.Coordinator.SynthesisModel = "claude-sonnet-4-5"
	c.Coordinator.MaxOutputTokens = 32000
	c.Governance.RateWindowSeconds = 60
	c.Audit = audit.DefaultConfig()
	c.Sandbox.ScratchDir = "/tmp/coordinatord-runs"
	c.Serve.Addr = ":8080"
	return c
}

// LoadConfig reads and env-expands a YAML config file over DefaultConfig.
// A single-file strict decode: coordinatord's config surface is small
// enough that include-graph resolution isn't warranted.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) rateWindow() time.Duration {
	if c.Governance.RateWindowSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Governance.RateWindowSeconds) * time.Second
}
