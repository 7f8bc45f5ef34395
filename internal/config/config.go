package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devblac/ibc-watch/internal/source/cosmos"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ChainTypeCosmos = "cosmos"
	ChainTypeEVM    = "evm"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultMaxConcurrency = 16
)

// Config holds the YAML configuration.
type Config struct {
	Version int          `yaml:"version"`
	Global  GlobalConfig `yaml:"global"`
	State   StateConfig  `yaml:"state"`
	Chains  []Chain      `yaml:"chains"`
	Rules   []Rule       `yaml:"rules"`
	Sinks   []Sink       `yaml:"sinks"`
}

type GlobalConfig struct {
	DBPath         string `yaml:"db_path"`
	PollInterval   string `yaml:"poll_interval"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// StateConfig selects where IBC state of counterparty chains is read from.
type StateConfig struct {
	// VoyagerURL is an optional JSON-RPC relayer host serving every chain and both vocabularies.
	VoyagerURL string `yaml:"voyager_url"`
}

type Chain struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	RPCURL      string `yaml:"rpc_url"`
	StartHeight string `yaml:"start_height"`

	GRPCURL string `yaml:"grpc_url"`

	IBCHandler string   `yaml:"ibc_handler"`
	ABIDirs    []string `yaml:"abi_dirs"`
}

type Dedupe struct {
	Key string `yaml:"key"`
	TTL string `yaml:"ttl"`
}

type RateLimit struct {
	Capacity  float64 `yaml:"capacity"`
	PerSecond float64 `yaml:"per_second"`
}

type Rule struct {
	ID        string     `yaml:"id"`
	Chain     string     `yaml:"chain"`
	Where     []string   `yaml:"where"`
	Sinks     []string   `yaml:"sinks"`
	Dedupe    *Dedupe    `yaml:"dedupe,omitempty"`
	RateLimit *RateLimit `yaml:"rate_limit,omitempty"`
}

type Sink struct {
	ID         string            `yaml:"id"`
	Type       string            `yaml:"type"`
	WebhookURL string            `yaml:"webhook_url"`
	Template   string            `yaml:"template"`
	URL        string            `yaml:"url"`
	Method     string            `yaml:"method"`
	Headers    map[string]string `yaml:"headers"`
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if len(c.Chains) == 0 {
		return errors.New("at least one chain is required")
	}
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global: %w", err)
	}

	chainIDs := map[string]struct{}{}
	for i := range c.Chains {
		ch := &c.Chains[i]
		if _, exists := chainIDs[ch.ID]; exists {
			return fmt.Errorf("duplicate chain id: %s", ch.ID)
		}
		chainIDs[ch.ID] = struct{}{}
		if err := ch.Validate(c.State); err != nil {
			return fmt.Errorf("chain %s: %w", ch.ID, err)
		}
	}

	sinkIDs := map[string]*Sink{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = s
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}

	ruleIDs := map[string]struct{}{}
	for _, r := range c.Rules {
		if _, exists := ruleIDs[r.ID]; exists {
			return fmt.Errorf("duplicate rule id: %s", r.ID)
		}
		ruleIDs[r.ID] = struct{}{}
		if err := r.Validate(chainIDs, sinkIDs); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}

	return nil
}

func (g *GlobalConfig) Validate() error {
	if g.PollInterval != "" {
		d, err := time.ParseDuration(g.PollInterval)
		if err != nil {
			return fmt.Errorf("poll_interval: %w", err)
		}
		if d <= 0 {
			return errors.New("poll_interval must be positive")
		}
	}
	if g.MaxConcurrency < 0 {
		return errors.New("max_concurrency must not be negative")
	}
	return nil
}

// Interval returns the scheduler tick interval.
func (g GlobalConfig) Interval() time.Duration {
	if d, err := time.ParseDuration(g.PollInterval); err == nil && d > 0 {
		return d
	}
	return defaultPollInterval
}

// Concurrency returns the bound on concurrent calls per pass.
func (g GlobalConfig) Concurrency() int {
	if g.MaxConcurrency > 0 {
		return g.MaxConcurrency
	}
	return defaultMaxConcurrency
}

func (ch *Chain) Validate(state StateConfig) error {
	if ch.ID == "" {
		return errors.New("id is required")
	}
	if ch.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if _, _, err := ParseStartHeight(ch.StartHeight); err != nil {
		return err
	}
	switch strings.ToLower(ch.Type) {
	case ChainTypeCosmos:
		if _, err := cosmos.ParseRevision(ch.ID); err != nil {
			return err
		}
		if ch.GRPCURL == "" && state.VoyagerURL == "" {
			return errors.New("grpc_url is required for cosmos chains unless state.voyager_url is set")
		}
	case ChainTypeEVM:
		if _, err := strconv.ParseUint(ch.ID, 10, 64); err != nil {
			return fmt.Errorf("evm chain id must be the numeric chain id, found %q", ch.ID)
		}
		if !common.IsHexAddress(ch.IBCHandler) {
			return fmt.Errorf("ibc_handler must be a hex address, found %q", ch.IBCHandler)
		}
		if state.VoyagerURL == "" {
			return errors.New("state.voyager_url is required to resolve ibc-union state of evm chains")
		}
	default:
		return fmt.Errorf("unsupported chain type: %s", ch.Type)
	}
	return nil
}

// ParseStartHeight reads a start_height value: empty or "latest" (offset 0 from the latest
// height), "latest-N", or an absolute block number.
func ParseStartHeight(start string) (n uint64, relative bool, err error) {
	switch {
	case start == "" || start == "latest":
		return 0, true, nil
	case strings.HasPrefix(start, "latest-"):
		n, err = strconv.ParseUint(strings.TrimPrefix(start, "latest-"), 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("parse start_height %q: %w", start, err)
		}
		return n, true, nil
	default:
		n, err = strconv.ParseUint(start, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("parse start_height %q: %w", start, err)
		}
		return n, false, nil
	}
}

// ResolveStartHeight turns start_height into a block number given the latest finalized one.
func (ch Chain) ResolveStartHeight(latest uint64) (uint64, error) {
	n, relative, err := ParseStartHeight(ch.StartHeight)
	if err != nil {
		return 0, err
	}
	if !relative {
		return n, nil
	}
	if n > latest {
		return 0, nil
	}
	return latest - n, nil
}

func (r *Rule) Validate(chainIDs map[string]struct{}, sinkIDs map[string]*Sink) error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.Chain != "" {
		if _, ok := chainIDs[r.Chain]; !ok {
			return fmt.Errorf("unknown chain: %s", r.Chain)
		}
	}

	if len(r.Sinks) == 0 {
		return errors.New("at least one sink is required")
	}
	for _, sinkID := range r.Sinks {
		if _, ok := sinkIDs[sinkID]; !ok {
			return fmt.Errorf("unknown sink: %s", sinkID)
		}
	}

	if r.Dedupe != nil {
		if r.Dedupe.Key == "" || r.Dedupe.TTL == "" {
			return errors.New("dedupe.key and dedupe.ttl are required when dedupe is set")
		}
		if _, err := time.ParseDuration(r.Dedupe.TTL); err != nil {
			return fmt.Errorf("dedupe.ttl: %w", err)
		}
	}
	if r.RateLimit != nil && (r.RateLimit.Capacity < 1 || r.RateLimit.PerSecond <= 0) {
		return errors.New("rate_limit.capacity must be at least 1 and rate_limit.per_second positive")
	}

	return nil
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}

	switch strings.ToLower(s.Type) {
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
		if s.Method == "" {
			s.Method = "POST"
		}
	case "stdout":
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
