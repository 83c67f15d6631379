// Package main implements the remedyd CLI: run the validation suite with
// optional self-remediation, or roll back previously applied fixes.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/backup"
	"github.com/fyrsmithlabs/remedyd/internal/check"
	"github.com/fyrsmithlabs/remedyd/internal/config"
	"github.com/fyrsmithlabs/remedyd/internal/fix"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/remediate"
	"github.com/fyrsmithlabs/remedyd/internal/runner"
	"github.com/fyrsmithlabs/remedyd/internal/store"
	"github.com/fyrsmithlabs/remedyd/internal/strategy"
	"github.com/fyrsmithlabs/remedyd/internal/suite"
)

var (
	configPath string
	version    = "dev"

	// run flags
	flagRemediate   bool
	flagDryRun      bool
	flagStopOnFail  bool
	flagNoRetries   bool
	flagOnlyChecks  []string
	flagJSONOutput  bool
	flagSuggestions bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remedyd",
	Short: "Validation and self-remediation orchestrator",
	Long: `remedyd runs an ordered battery of health checks, classifies failures,
attempts automated reversible repairs, re-validates, and produces
machine- and human-readable reports.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (YAML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rollbackCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the validation suite",
	Long: `Run the validation suite and print the final report.

Examples:
  # Validate only
  remedyd run

  # Validate, repair failures, re-validate
  remedyd run --remediate

  # Show what would be repaired without executing anything
  remedyd run --remediate --dry-run

  # Restrict to named checks
  remedyd run --only store-roundtrip --only config-suite`,
	RunE: runSuite,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back fixes applied in this process",
	Long: `Replay the rollback actions of every ledgered fix operation, most
recently applied first. Out-of-band emergency reversal: the ledger is
cleared afterwards even if individual rollback actions fail.`,
	RunE: runRollback,
}

func init() {
	runCmd.Flags().BoolVar(&flagRemediate, "remediate", false, "attempt automated fixes for failures")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "resolve strategies without executing actions")
	runCmd.Flags().BoolVar(&flagStopOnFail, "stop-on-failure", false, "do not start later phases after a failure")
	runCmd.Flags().BoolVar(&flagNoRetries, "no-retries", false, "give each check a single attempt")
	runCmd.Flags().StringArrayVar(&flagOnlyChecks, "only", nil, "restrict the run to named checks (repeatable)")
	runCmd.Flags().BoolVar(&flagJSONOutput, "json", false, "print the structured report as JSON")
	runCmd.Flags().BoolVar(&flagSuggestions, "suggestions", false, "print the remediation suggestions document")
}

// remediationSettings derives the effective remediation switches:
// configuration supplies the defaults, explicitly set flags override them.
func remediationSettings(cfg *config.Config, flags *pflag.FlagSet) (enabled, dryRun bool) {
	enabled = cfg.Remediation.Enabled
	dryRun = cfg.Remediation.DryRun
	if flags == nil {
		return enabled, dryRun
	}
	if f := flags.Lookup("remediate"); f != nil && f.Changed {
		enabled, _ = flags.GetBool("remediate")
	}
	if f := flags.Lookup("dry-run"); f != nil && f.Changed {
		dryRun, _ = flags.GetBool("dry-run")
	}
	return enabled, dryRun
}

// buildService wires the full component graph from configuration.
func buildService(flags *pflag.FlagSet) (*remediate.Service, *zap.Logger, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	remediationEnabled, dryRun := remediationSettings(cfg, flags)

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.NewFileStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	registry := check.NewRegistry()
	builtins := map[string]check.Func{
		"store-roundtrip": check.StoreRoundTrip(st),
		"config-suite":    check.KeyPresent(st, "remedyd.config.suite"),
		"config-version":  check.KeyPresent(st, "remedyd.config.version"),
	}
	for name, fn := range builtins {
		if err := registry.Register(name, fn); err != nil {
			return nil, nil, err
		}
	}

	r, err := runner.New(&runner.Config{
		Timeout:    cfg.Runner.Timeout,
		MaxRetries: cfg.Runner.MaxRetries,
		RetryDelay: cfg.Runner.RetryDelay,
	}, logger.Named("runner"))
	if err != nil {
		return nil, nil, err
	}

	phases := make([]suite.Phase, 0, len(cfg.Suite.Phases))
	for _, p := range cfg.Suite.Phases {
		phases = append(phases, suite.Phase{Name: p.Name, Checks: p.Checks})
	}

	orch, err := suite.New(phases, registry, r, suite.NopEnvironment{},
		cfg.Suite.BootstrapCheck, logger.Named("suite"))
	if err != nil {
		return nil, nil, err
	}

	backups, err := backup.NewManager(st, logger.Named("backup"))
	if err != nil {
		return nil, nil, err
	}

	actions, err := fix.DefaultActions(st, cfg.Store.Path, logger.Named("actions"))
	if err != nil {
		return nil, nil, err
	}

	executor, err := fix.NewExecutor(actions, backups, logger.Named("fix"))
	if err != nil {
		return nil, nil, err
	}

	svc, err := remediate.NewService(orch, registry, r, strategy.DefaultResolver(),
		executor, actions, backups, remediate.Config{
			Enabled:              remediationEnabled,
			DryRun:               dryRun,
			BackupEnabled:        cfg.Remediation.BackupEnabled,
			RollbackEnabled:      cfg.Remediation.RollbackEnabled,
			RollbackOnAnyFailure: cfg.Remediation.RollbackOnAnyFailure,
		}, logger.Named("remediate"))
	if err != nil {
		return nil, nil, err
	}

	return svc, logger, nil
}

// runSuite handles the run command.
func runSuite(cmd *cobra.Command, args []string) error {
	svc, logger, err := buildService(cmd.Flags())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	result := svc.RunSuite(cmd.Context(), remediate.Options{
		EnableRetries:      !flagNoRetries,
		StopOnFirstFailure: flagStopOnFail,
		OnlyChecks:         flagOnlyChecks,
	})

	if flagJSONOutput {
		out := struct {
			Report     interface{} `json:"report"`
			Fixes      interface{} `json:"fixes,omitempty"`
			Validation interface{} `json:"validation,omitempty"`
			Rollback   interface{} `json:"rollback,omitempty"`
		}{Report: result.Final.Export()}
		if result.Fixes != nil {
			out.Fixes = result.Fixes
		}
		if result.Validation != nil {
			out.Validation = result.Validation
		}
		if result.Rollback != nil {
			out.Rollback = result.Rollback
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		fmt.Print(result.Final.Narrative())
		if result.Fixes != nil {
			fmt.Printf("\nFixes: %d applied, %d failed, %d skipped\n",
				result.Fixes.Applied, result.Fixes.Failed, result.Fixes.Skipped)
		}
		if result.Rollback != nil {
			fmt.Printf("Rollback: %d attempted, %d failed\n",
				result.Rollback.Attempted, result.Rollback.Failed)
		}
	}

	if flagSuggestions {
		fmt.Print("\n" + result.Final.Suggestions())
	}

	if result.Final.HasFailures() {
		os.Exit(1)
	}
	return nil
}

// runRollback handles the rollback command.
func runRollback(cmd *cobra.Command, args []string) error {
	svc, logger, err := buildService(nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	result := svc.RollbackAll(cmd.Context())
	fmt.Printf("Rollback: %d attempted, %d succeeded, %d failed\n",
		result.Attempted, result.Succeeded, result.Failed)
	if !result.AllSucceeded() {
		os.Exit(1)
	}
	return nil
}
