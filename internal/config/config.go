// Package config loads YAML pipeline definitions and compiles them
// into runnable pipelines. All range and type checking happens at load
// and build time so misconfiguration never reaches traffic.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/guardchain/internal/audit"
	"github.com/ppiankov/guardchain/internal/guard"
	"github.com/ppiankov/guardchain/internal/guards/content"
	"github.com/ppiankov/guardchain/internal/guards/ratelimit"
	"github.com/ppiankov/guardchain/internal/guards/similarity"
	"github.com/ppiankov/guardchain/internal/pipeline"
	"github.com/ppiankov/guardchain/internal/store"
)

// GuardConfig declares one guard in the chain. Type selects the guard;
// the remaining fields apply per type and are ignored otherwise.
type GuardConfig struct {
	Type string `yaml:"type"`

	// length
	MinChars  int `yaml:"min_chars"`
	MaxChars  int `yaml:"max_chars"`
	MaxTokens int `yaml:"max_tokens"`

	// pii, profanity
	Mode string `yaml:"mode"`

	// injection, similarity
	Threshold float64 `yaml:"threshold"`

	// injection
	Block bool `yaml:"block"`

	// rate_limit
	MaxRequests   int    `yaml:"max_requests"`
	WindowSeconds int    `yaml:"window_seconds"`
	Key           string `yaml:"key"`
	BlockSeconds  int    `yaml:"block_seconds"`
	RedisAddr     string `yaml:"redis_addr"`

	// similarity
	Action     string `yaml:"action"`
	MaxHistory int    `yaml:"max_history"`
	Fuzzy      bool   `yaml:"fuzzy"`

	// prefix
	Prefix string `yaml:"prefix"`
}

// Config is a full pipeline definition.
type Config struct {
	Name       string        `yaml:"name"`
	FailFast   *bool         `yaml:"fail_fast"`
	OnError    string        `yaml:"on_error"`
	StrictDeny bool          `yaml:"strict_deny"`
	AuditLog   string        `yaml:"audit_log"`
	Guards     []GuardConfig `yaml:"guards"`
}

var knownTypes = map[string]bool{
	"length": true, "pii": true, "secrets": true, "injection": true,
	"profanity": true, "rate_limit": true, "similarity": true,
	"uppercase": true, "prefix": true,
}

// Load reads a pipeline definition from a YAML file, expanding
// environment variables before parsing.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a built-in inbound validation chain.
func DefaultConfig() *Config {
	return &Config{
		Name:    "inbound",
		OnError: "deny",
		Guards: []GuardConfig{
			{Type: "length", MaxChars: 10000},
			{Type: "secrets"},
			{Type: "injection", Threshold: 0.7, Block: true},
			{Type: "rate_limit", MaxRequests: 100, WindowSeconds: 3600, Key: "user_role", BlockSeconds: 300},
			{Type: "similarity", Threshold: 0.8, Action: "flag", MaxHistory: 1000, Fuzzy: true},
		},
	}
}

// Validate performs structural checks. Per-guard range validation
// happens in the guard constructors during Build.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: pipeline name is required")
	}
	if len(c.Guards) == 0 {
		return fmt.Errorf("config: pipeline %q has no guards", c.Name)
	}
	for i, g := range c.Guards {
		if !knownTypes[g.Type] {
			return fmt.Errorf("config: guard %d: unknown type %q", i, g.Type)
		}
	}
	switch c.OnError {
	case "", "deny", "allow", "continue":
	default:
		return fmt.Errorf("config: unknown on_error policy %q", c.OnError)
	}
	return nil
}

// Build compiles the definition into a Pipeline.
func (c *Config) Build() (*pipeline.Pipeline, error) {
	guards := make([]guard.Guard, 0, len(c.Guards))
	for i, gc := range c.Guards {
		g, err := buildGuard(gc)
		if err != nil {
			return nil, fmt.Errorf("config: guard %d (%s): %w", i, gc.Type, err)
		}
		guards = append(guards, g)
	}

	opts := []pipeline.Option{}
	if c.FailFast != nil {
		opts = append(opts, pipeline.WithFailFast(*c.FailFast))
	}
	if c.OnError != "" {
		opts = append(opts, pipeline.WithOnError(pipeline.ErrorPolicy(c.OnError)))
	}
	if c.StrictDeny {
		opts = append(opts, pipeline.WithStrictDeny(true))
	}
	if c.AuditLog != "" {
		log, err := audit.Open(c.AuditLog)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithAuditLog(log))
	}

	return pipeline.New(c.Name, guards, opts...)
}

func buildGuard(gc GuardConfig) (guard.Guard, error) {
	switch gc.Type {
	case "length":
		return content.NewLength(content.LengthConfig{
			MinChars:  gc.MinChars,
			MaxChars:  gc.MaxChars,
			MaxTokens: gc.MaxTokens,
		})
	case "pii":
		mode := content.PIIMode(gc.Mode)
		if gc.Mode == "" {
			mode = content.PIIBlock
		}
		return content.NewPII(mode)
	case "secrets":
		return content.NewSecrets(), nil
	case "injection":
		return content.NewInjection(content.InjectionConfig{
			Threshold: gc.Threshold,
			Block:     gc.Block,
		})
	case "profanity":
		action := content.ProfanityAction(gc.Mode)
		if gc.Mode == "" {
			action = content.ProfanityMask
		}
		return content.NewProfanity(action)
	case "rate_limit":
		cfg := ratelimit.Config{
			MaxRequests:   gc.MaxRequests,
			Window:        time.Duration(gc.WindowSeconds) * time.Second,
			KeyExtractor:  gc.Key,
			BlockDuration: time.Duration(gc.BlockSeconds) * time.Second,
		}
		if gc.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: gc.RedisAddr})
			return ratelimit.New(cfg, ratelimit.WithStore(store.NewRedisRateStore(rdb)))
		}
		return ratelimit.New(cfg)
	case "similarity":
		action := similarity.DetectAction(gc.Action)
		if gc.Action == "" {
			action = similarity.ActFlag
		}
		return similarity.New(similarity.Config{
			Threshold:  gc.Threshold,
			Action:     action,
			MaxHistory: gc.MaxHistory,
			Fuzzy:      gc.Fuzzy,
		})
	case "uppercase":
		return content.NewUppercase(), nil
	case "prefix":
		return content.NewPrefix(gc.Prefix), nil
	}
	return nil, fmt.Errorf("unknown guard type %q", gc.Type)
}
