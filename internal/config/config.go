// Package config loads the bench command configuration: a YAML file with
// defaults, overridden by SRVCLIENT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/srvclient/client"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SRVCLIENT_"

type Config struct {
	Log struct {
		// dev | prod
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Service struct {
		Name       string `yaml:"name"`
		Scheme     string `yaml:"scheme"`
		PathPrefix string `yaml:"path_prefix"`
		// affinity | rfc2782
		Policy string `yaml:"policy"`
		// serial | concurrent
		Mode string `yaml:"mode"`
	} `yaml:"service"`

	Resolver struct {
		// system | dns | static
		Kind string `yaml:"kind"`
		// dns: explicit servers, otherwise ResolvConf is read.
		Nameservers []string      `yaml:"nameservers"`
		ResolvConf  string        `yaml:"resolv_conf"`
		Timeout     time.Duration `yaml:"timeout"`
		// system/static: validity of an answer.
		TTL time.Duration `yaml:"ttl"`
		// static: "host:port[:priority[:weight]]"
		Targets []string `yaml:"targets"`
	} `yaml:"resolver"`

	Bench struct {
		Workers  int           `yaml:"workers"`
		Duration time.Duration `yaml:"duration"`
		FailRate float64       `yaml:"fail_rate"`
		Latency  time.Duration `yaml:"latency"`
		Seed     int64         `yaml:"seed"`
	} `yaml:"bench"`

	Metrics struct {
		// Empty disables the /metrics endpoint.
		Addr      string `yaml:"addr"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads path (skipped when empty), applies defaults and environment
// overrides, then validates the result.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Service.Name == "" {
		c.Service.Name = "_http._tcp.localhost"
	}
	if c.Service.Scheme == "" {
		c.Service.Scheme = client.DefaultScheme
	}
	if c.Service.PathPrefix == "" {
		c.Service.PathPrefix = client.DefaultPathPrefix
	}
	if c.Service.Policy == "" {
		c.Service.Policy = "affinity"
	}
	if c.Service.Mode == "" {
		c.Service.Mode = client.Serial.String()
	}
	if c.Resolver.Kind == "" {
		c.Resolver.Kind = "system"
	}
	if c.Resolver.ResolvConf == "" {
		c.Resolver.ResolvConf = "/etc/resolv.conf"
	}
	if c.Resolver.Timeout == 0 {
		c.Resolver.Timeout = 2 * time.Second
	}
	if c.Resolver.TTL == 0 {
		c.Resolver.TTL = time.Minute
	}
	if c.Bench.Workers == 0 {
		c.Bench.Workers = 8
	}
	if c.Bench.Duration == 0 {
		c.Bench.Duration = 10 * time.Second
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "srvclient"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvInt64(key string) (int64, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides lets SRVCLIENT_* variables win over the YAML file.
func (c *Config) applyEnvOverrides() {
	// LOG
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVICE
	if v, ok := getEnvStr("SERVICE_NAME"); ok {
		c.Service.Name = v
	}
	if v, ok := getEnvStr("SCHEME"); ok {
		c.Service.Scheme = v
	}
	if v, ok := getEnvStr("PATH_PREFIX"); ok {
		c.Service.PathPrefix = v
	}
	if v, ok := getEnvStr("POLICY"); ok {
		c.Service.Policy = strings.ToLower(v)
	}
	if v, ok := getEnvStr("MODE"); ok {
		c.Service.Mode = strings.ToLower(v)
	}

	// RESOLVER
	if v, ok := getEnvStr("RESOLVER"); ok {
		c.Resolver.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvCSV("NAMESERVERS"); ok {
		c.Resolver.Nameservers = v
	}
	if v, ok := getEnvStr("RESOLV_CONF"); ok {
		c.Resolver.ResolvConf = v
	}
	if v, ok := getEnvDur("DNS_TIMEOUT"); ok {
		c.Resolver.Timeout = v
	}
	if v, ok := getEnvDur("TTL"); ok {
		c.Resolver.TTL = v
	}
	if v, ok := getEnvCSV("TARGETS"); ok {
		c.Resolver.Targets = v
	}

	// BENCH
	if v, ok := getEnvInt("WORKERS"); ok {
		c.Bench.Workers = v
	}
	if v, ok := getEnvDur("DURATION"); ok {
		c.Bench.Duration = v
	}
	if v, ok := getEnvFloat("FAIL_RATE"); ok {
		c.Bench.FailRate = v
	}
	if v, ok := getEnvDur("LATENCY"); ok {
		c.Bench.Latency = v
	}
	if v, ok := getEnvInt64("SEED"); ok {
		c.Bench.Seed = v
	}

	// METRICS
	if v, ok := getEnvStr("METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	if v, ok := getEnvStr("METRICS_NAMESPACE"); ok {
		c.Metrics.Namespace = v
	}
}

// Validate rejects values the bench command cannot run with.
func (c *Config) Validate() error {
	switch c.Service.Policy {
	case "affinity", "rfc2782":
	default:
		return fmt.Errorf("config: unknown policy %q (use affinity or rfc2782)", c.Service.Policy)
	}
	if _, err := client.ParseExecution(c.Service.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Resolver.Kind {
	case "system", "dns":
	case "static":
		if len(c.Resolver.Targets) == 0 {
			return fmt.Errorf("config: static resolver needs at least one target")
		}
	default:
		return fmt.Errorf("config: unknown resolver %q (use system, dns or static)", c.Resolver.Kind)
	}
	if c.Bench.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Bench.Workers)
	}
	if c.Bench.FailRate < 0 || c.Bench.FailRate > 1 {
		return fmt.Errorf("config: fail_rate must be within [0,1], got %v", c.Bench.FailRate)
	}
	return nil
}
