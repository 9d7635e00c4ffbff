package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alleycatassetacquisitions/pdn/internal/config"
	"github.com/alleycatassetacquisitions/pdn/internal/fleet"
	"github.com/alleycatassetacquisitions/pdn/internal/github"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	level   slog.LevelVar
	cfgPath string
	cfg     *config.Config
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func newApp() *app {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("PDN_EXPORTER")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()
	return a
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdn-exporter",
		Short: "Prometheus exporters for fleet state and GitHub activity",
		Long: `pdn-exporter serves two Prometheus exporters:
- fleet:  agents and tasks from the fleet state file (default :9101)
- github: issues and pull requests listed through the gh CLI (default :9102)

Settings come from an optional YAML file (--config), then PDN_EXPORTER_*
environment variables (PDN_EXPORTER_FLEET_STATE_FILE, ...), then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.bindFlags(cmd.Flags())
			cfg, err := a.load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.level.Set(cfg.Log.SlogLevel())
			slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: &a.level})))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "path to config file (watched for changes while serving)")
	pf.String("log-level", "", "log level: debug | info | warn | error")
	pf.BoolVar(&a.jsonOut, "json", false, "print findings as JSON")
	bind(pf, "log-level", "log.level")

	root.AddCommand(
		a.fleetCmd(),
		a.githubCmd(),
		a.renderCmd(),
		a.validateStateCmd(),
		a.checkContractCmd(),
	)
	return root
}

// viperKey annotates a flag with the config key it overrides. Only the flags
// of the command being run are bound, so subcommands can share flag names
// without shadowing each other.
const viperKey = "pdn_viper_key"

func bind(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, viperKey, []string{key})
}

func (a *app) bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[viperKey]; len(keys) == 1 {
			_ = a.v.BindPFlag(keys[0], f)
		}
	})
}

// load builds the effective config: file (or defaults), then environment and
// flags for every key that is set.
func (a *app) load() (*config.Config, error) {
	cfg := config.Default()
	if a.cfgPath != "" {
		var err error
		if cfg, err = config.Load(a.cfgPath); err != nil {
			return nil, err
		}
	}
	a.overlay(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (a *app) overlay(cfg *config.Config) {
	str := func(key string, dst *string) {
		if a.v.IsSet(key) {
			*dst = a.v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if a.v.IsSet(key) {
			*dst = a.v.GetInt(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if a.v.IsSet(key) {
			*dst = a.v.GetDuration(key)
		}
	}

	str("log.level", &cfg.Log.Level)
	str("fleet.listen", &cfg.Fleet.Listen)
	str("fleet.state_file", &cfg.Fleet.StateFile)
	str("fleet.validate.ip_prefix", &cfg.Fleet.Validation.IPPrefix)
	str("github.listen", &cfg.GitHub.Listen)
	str("github.repo", &cfg.GitHub.Repo)
	str("github.repo_dir", &cfg.GitHub.RepoDir)
	str("github.fallback_repo", &cfg.GitHub.FallbackRepo)
	str("github.gh_binary", &cfg.GitHub.GHBinary)
	str("github.git_binary", &cfg.GitHub.GitBinary)
	dur("github.command_timeout", &cfg.GitHub.CommandTimeout)
	num("github.list_limit", &cfg.GitHub.ListLimit)
	num("github.detail_limit", &cfg.GitHub.DetailLimit)
}

func fleetOptions(cfg *config.Config) fleet.Options {
	return fleet.Options{StatePath: cfg.Fleet.StateFile}
}

func infrastructure(cfg *config.Config) fleet.Infrastructure {
	v := cfg.Fleet.Validation
	infra := fleet.Infrastructure{IPPrefix: v.IPPrefix}
	for _, r := range v.VMIDRanges {
		infra.VMIDRanges = append(infra.VMIDRanges, fleet.IDRange{Min: r.Min, Max: r.Max})
	}
	return infra
}

func githubOptions(cfg *config.Config) github.Options {
	gh := cfg.GitHub
	return github.Options{
		Repo:         gh.Repo,
		RepoDir:      gh.RepoDir,
		FallbackRepo: gh.FallbackRepo,
		GHBinary:     gh.GHBinary,
		GitBinary:    gh.GitBinary,
		Timeout:      gh.CommandTimeout,
		ListLimit:    gh.ListLimit,
		DetailLimit:  gh.DetailLimit,
	}
}
