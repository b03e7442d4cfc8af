// Package config holds Surge's configuration: defaults, YAML file
// loading, and derived paths. Secrets (API keys, macaroons) stay in the
// environment and never in the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Agent    AgentConfig    `yaml:"agent"`
	Model    ModelConfig    `yaml:"model"`
	Gate     GateConfig     `yaml:"gate"`
	LND      LNDConfig      `yaml:"lnd"`
	Mempool  MempoolConfig  `yaml:"mempool"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Docs     DocsConfig     `yaml:"docs"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int    `yaml:"port"` // default 7227
	Host string `yaml:"host"` // default "127.0.0.1"
}

type AgentConfig struct {
	Network             string   `yaml:"network"`             // "mainnet" or "testnet"
	MaxTurns            int      `yaml:"maxTurns"`            // model exchanges per run
	ModelRetries        int      `yaml:"modelRetries"`        // extra attempts on model transport failure
	TickIntervalSeconds int      `yaml:"tickIntervalSeconds"` // unattended assessment cadence
	MaxPayloadBytes     int      `yaml:"maxPayloadBytes"`     // tool result size cap
	DataDir             string   `yaml:"dataDir"`             // turn log location
	NodeBlacklist       []string `yaml:"nodeBlacklist"`       // pubkeys excluded from channel proposals
}

type ModelConfig struct {
	Provider string `yaml:"provider"` // gemini | openai | anthropic | ollama
	Name     string `yaml:"name"`
}

type GateConfig struct {
	TimeoutSeconds int `yaml:"timeoutSeconds"` // confirmation wait; elapsing denies
}

type LNDConfig struct {
	RESTURL      string `yaml:"restUrl"` // LND REST proxy, e.g. https://localhost:8080
	TLSCertPath  string `yaml:"tlsCertPath"`
	MacaroonPath string `yaml:"macaroonPath"`
}

type MempoolConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

type AnalysisConfig struct {
	AvailabilityURL string `yaml:"availabilityUrl"` // scored-node feed
}

type DocsConfig struct {
	Dir string `yaml:"dir"` // tome/runbook markdown directory
}

type LogConfig struct {
	Level  string `yaml:"level"`  // default "info"
	Format string `yaml:"format"` // default "console"
}

// Known peers that trip edge cases when deploying liquidity.
var defaultNodeBlacklist = []string{
	"0364913d18a19c671bb36dd04d6ad5be0fe8f2894314c36a9db3f03c2d414907e1", // 20M minimum channel size
	"035e4ff418fc8b5554c5d9eea66396c227bd429a3251c8cbc711002ba215bfc226", // high fees
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	network := envOr("LND_NETWORK", "mainnet")
	return &Config{
		Server: ServerConfig{
			Port: 7227,
			Host: "127.0.0.1",
		},
		Agent: AgentConfig{
			Network:             network,
			MaxTurns:            16,
			ModelRetries:        3,
			TickIntervalSeconds: 600,
			MaxPayloadBytes:     30000,
			DataDir:             defaultDataDir(),
			NodeBlacklist:       append([]string(nil), defaultNodeBlacklist...),
		},
		Model: ModelConfig{
			Provider: "gemini",
			Name:     "gemini-2.5-flash",
		},
		Gate: GateConfig{
			TimeoutSeconds: 120,
		},
		LND: LNDConfig{
			RESTURL:      envOr("LND_REST_URL", "https://localhost:8080"),
			TLSCertPath:  envOr("LND_TLS_CERT_PATH", "/lnd/tls.cert"),
			MacaroonPath: envOr("LND_ADMIN_MACAROON_PATH", fmt.Sprintf("/lnd/data/chain/bitcoin/%s/admin.macaroon", network)),
		},
		Mempool: MempoolConfig{
			BaseURL: "https://mempool.space/api",
		},
		Analysis: AnalysisConfig{},
		Docs: DocsConfig{
			Dir: "docs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// ServerAddress returns the listen address in "host:port" format.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TurnLogPath returns the full path to the BoltDB turn log.
func (c *Config) TurnLogPath() string {
	return filepath.Join(c.Agent.DataDir, "surge.db")
}

// TickInterval returns the unattended assessment cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Agent.TickIntervalSeconds) * time.Second
}

// GateTimeout returns how long a confirmation may stay pending.
func (c *Config) GateTimeout() time.Duration {
	return time.Duration(c.Gate.TimeoutSeconds) * time.Second
}

// defaultDataDir resolves the default data directory, falling back to
// "/tmp/surge/data" if the home directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "surge", "data")
	}
	return filepath.Join(home, ".surge", "data")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
