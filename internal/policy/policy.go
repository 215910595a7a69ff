package policy

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML values like "500ms" or "1s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the host and command restrictions applied before any connect
// or execute is dispatched. Empty lists allow everything.
type Config struct {
	Hosts struct {
		Allow []string `yaml:"allow"` // exact, *.suffix wildcard, or CIDR
		Deny  []string `yaml:"deny"`
	} `yaml:"hosts"`
	Commands struct {
		Allow []string `yaml:"allow"` // command prefixes
		Deny  []string `yaml:"deny"`
	} `yaml:"commands"`
	RateLimit Duration `yaml:"rate_limit"` // minimum spacing between commands per target
}

// LoadConfig reads a policy file. An empty path yields a permissive config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse policy file: %w", err)
	}
	return cfg, nil
}

// Guard enforces a Config, tracking per-target command timing for the rate
// limit.
type Guard struct {
	config   Config
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewGuard creates a guard for the given configuration.
func NewGuard(config Config) *Guard {
	return &Guard{
		config:   config,
		lastSeen: make(map[string]time.Time),
	}
}

// CheckHost verifies that a host may be connected to.
func (g *Guard) CheckHost(host string) error {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	for _, denied := range g.config.Hosts.Deny {
		if matchHost(host, denied) {
			return fmt.Errorf("host %s is denied by policy", host)
		}
	}

	if len(g.config.Hosts.Allow) == 0 {
		return nil
	}
	for _, allowed := range g.config.Hosts.Allow {
		if matchHost(host, allowed) {
			return nil
		}
	}
	return fmt.Errorf("host %s is not allowed by policy", host)
}

// CheckCommand verifies that a command may run on the target, applying the
// rate limit per target name.
func (g *Guard) CheckCommand(target, command string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if limit := time.Duration(g.config.RateLimit); limit > 0 {
		now := time.Now()
		if last, ok := g.lastSeen[target]; ok && now.Sub(last) < limit {
			return fmt.Errorf("rate limit exceeded for %s, try again later", target)
		}
		g.lastSeen[target] = now
	}

	for _, denied := range g.config.Commands.Deny {
		if strings.HasPrefix(command, denied) {
			return fmt.Errorf("command %q is denied by policy", command)
		}
	}

	if len(g.config.Commands.Allow) == 0 {
		return nil
	}
	for _, allowed := range g.config.Commands.Allow {
		if strings.HasPrefix(command, allowed) {
			return nil
		}
	}
	return fmt.Errorf("command %q is not allowed by policy", command)
}

// Cleanup drops rate-limiter entries older than maxAge.
func (g *Guard) Cleanup(maxAge time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for target, last := range g.lastSeen {
		if now.Sub(last) > maxAge {
			delete(g.lastSeen, target)
		}
	}
}

// StartCleanupRoutine periodically sweeps stale rate-limiter entries.
func (g *Guard) StartCleanupRoutine(interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			g.Cleanup(maxAge)
		}
	}()
}

// matchHost checks a host against a pattern: exact, *.suffix wildcard, or
// CIDR block.
func matchHost(host, pattern string) bool {
	if host == pattern {
		return true
	}

	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}

	if strings.Contains(pattern, "/") {
		_, ipNet, err := net.ParseCIDR(pattern)
		if err != nil {
			return false
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return ipNet.Contains(ip)
	}

	return false
}
