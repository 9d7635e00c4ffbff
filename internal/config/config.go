package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultLogLevel       = "info"
	DefaultFleetListen    = ":9101"
	DefaultStateFile      = "/home/ubuntu/pdn/.fleet-state.json"
	DefaultGitHubListen   = ":9102"
	DefaultRepoDir        = "/home/ubuntu/pdn"
	DefaultFallbackRepo   = "FinallyEve/pdn"
	DefaultGHBinary       = "gh"
	DefaultGitBinary      = "git"
	DefaultCommandTimeout = 30 * time.Second
	DefaultListLimit      = 100
	DefaultDetailLimit    = 20
	DefaultIPPrefix       = "192.168.1."
)

// DefaultVMIDRanges are the agent VMs (1-12) and the infra VMs (100-104).
var DefaultVMIDRanges = []IDRange{{Min: 1, Max: 12}, {Min: 100, Max: 104}}

// Config is the top-level configuration shared by both exporters.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Fleet  FleetConfig  `yaml:"fleet"`
	GitHub GitHubConfig `yaml:"github"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// SlogLevel converts Level. Validation guarantees it parses.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// FleetConfig holds the fleet-state exporter settings.
type FleetConfig struct {
	// Listen is the HTTP address the exporter binds (host:port or :port).
	Listen string `yaml:"listen"`

	// StateFile is read on every scrape.
	StateFile string `yaml:"state_file"`

	Validation ValidationConfig `yaml:"validate"`
}

// ValidationConfig holds the infrastructure checks of validate-state.
type ValidationConfig struct {
	// IPPrefix every agent ip must start with. Empty disables the check.
	IPPrefix string `yaml:"ip_prefix"`

	// VMIDRanges lists valid vm ids as "min-max" or single numbers.
	// An explicit empty list disables the check.
	VMIDRanges []IDRange `yaml:"vm_id_ranges"`
}

// IDRange is an inclusive id range written as "1-12" or "7" in YAML.
type IDRange struct {
	Min, Max int
}

// ParseIDRange parses "min-max" or a single number.
func ParseIDRange(s string) (IDRange, error) {
	first, last, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		last = first
	}
	lo, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return IDRange{}, fmt.Errorf("id range %q: %w", s, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		return IDRange{}, fmt.Errorf("id range %q: %w", s, err)
	}
	return IDRange{Min: lo, Max: hi}, nil
}

// UnmarshalYAML accepts the scalar forms ParseIDRange does.
func (r *IDRange) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseIDRange(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r IDRange) String() string { return fmt.Sprintf("%d-%d", r.Min, r.Max) }

// GitHubConfig holds the GitHub-activity exporter settings.
type GitHubConfig struct {
	Listen string `yaml:"listen"`

	// Repo is "owner/name". Empty means detect it from RepoDir's origin remote.
	Repo string `yaml:"repo"`

	// RepoDir is the checkout used for remote detection and as the gh working
	// directory.
	RepoDir string `yaml:"repo_dir"`

	// FallbackRepo is used when detection fails.
	FallbackRepo string `yaml:"fallback_repo"`

	GHBinary  string `yaml:"gh_binary"`
	GitBinary string `yaml:"git_binary"`

	// CommandTimeout bounds every gh and git invocation.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// ListLimit is passed to gh as --limit.
	ListLimit int `yaml:"list_limit"`

	// DetailLimit caps the per-issue and per-PR series.
	DetailLimit int `yaml:"detail_limit"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: DefaultLogLevel},
		Fleet: FleetConfig{
			Listen:    DefaultFleetListen,
			StateFile: DefaultStateFile,
			Validation: ValidationConfig{
				IPPrefix:   DefaultIPPrefix,
				VMIDRanges: append([]IDRange(nil), DefaultVMIDRanges...),
			},
		},
		GitHub: GitHubConfig{
			Listen:         DefaultGitHubListen,
			RepoDir:        DefaultRepoDir,
			FallbackRepo:   DefaultFallbackRepo,
			GHBinary:       DefaultGHBinary,
			GitBinary:      DefaultGitBinary,
			CommandTimeout: DefaultCommandTimeout,
			ListLimit:      DefaultListLimit,
			DetailLimit:    DefaultDetailLimit,
		},
	}
}

// Validate checks required fields and structural constraints.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	if err := checkListen("fleet.listen", cfg.Fleet.Listen); err != nil {
		return err
	}
	if cfg.Fleet.StateFile == "" {
		return fmt.Errorf("fleet.state_file is required")
	}
	for _, r := range cfg.Fleet.Validation.VMIDRanges {
		if r.Min < 0 || r.Min > r.Max {
			return fmt.Errorf("fleet.validate.vm_id_ranges: invalid range %s", r)
		}
	}

	gh := cfg.GitHub
	if err := checkListen("github.listen", gh.Listen); err != nil {
		return err
	}
	if gh.Repo != "" && !isRepoName(gh.Repo) {
		return fmt.Errorf("github.repo %q: want owner/name", gh.Repo)
	}
	if gh.Repo == "" && !isRepoName(gh.FallbackRepo) {
		return fmt.Errorf("github.fallback_repo %q: want owner/name", gh.FallbackRepo)
	}
	if gh.GHBinary == "" {
		return fmt.Errorf("github.gh_binary is required")
	}
	if gh.Repo == "" && gh.GitBinary == "" {
		return fmt.Errorf("github.git_binary is required when github.repo is empty")
	}
	if gh.CommandTimeout <= 0 {
		return fmt.Errorf("github.command_timeout must be positive")
	}
	if gh.ListLimit <= 0 {
		return fmt.Errorf("github.list_limit must be positive")
	}
	if gh.DetailLimit <= 0 {
		return fmt.Errorf("github.detail_limit must be positive")
	}
	return nil
}

func checkListen(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q: %w", key, addr, err)
	}
	return nil
}

func isRepoName(s string) bool {
	owner, name, ok := strings.Cut(s, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}
