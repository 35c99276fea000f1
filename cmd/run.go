package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the checks of a plan, or a single check given with --check",
	Long: `Run executes every check listed in a YAML plan and prints one record per check.

A plan is a list of entries, or a mapping with a "checks" key:

  checks:
    - check: proto.ftp.is_anonymous_enabled
      params:
        host: ftp.example.com
    - check: lang.python.uses_eval
      params:
        path: ./src

Exit codes: 0 closed, 1 open (strict), 3 unknown (strict), 66 plan or check
not found, 70 check error, 78 configuration error. Set FA_STRICT=true or
"strict: true" in the config file to enable strict mode.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		if appCtx == nil {
			return &ConfigError{Reason: "application not initialized"}
		}
		return runPlan(cmd, appCtx, appCtx.Config.Run)
	},
}

func validateRunConfig(cfg RunRuntimeConfig) error {
	switch {
	case cfg.PlanPath == "" && cfg.Check == "":
		return &ConfigError{Reason: "one of --plan or --check is required"}
	case cfg.PlanPath != "" && cfg.Check != "":
		return &ConfigError{Reason: "--plan and --check are mutually exclusive"}
	case cfg.Check == "" && len(cfg.Params) > 0:
		return &ConfigError{Reason: "--param requires --check"}
	case cfg.Concurrency < 0, cfg.RateLimit < 0, cfg.TimeoutSecs < 0:
		return &ConfigError{Reason: "concurrency, rate-limit and timeout must not be negative"}
	}
	return nil
}

func runPlan(cmd *cobra.Command, appCtx *AppContext, cfg RunRuntimeConfig) error {
	if err := validateRunConfig(cfg); err != nil {
		return err
	}
	outputPath, err := resolveOutputPath(appCtx.ResultsDir, cfg.OutputPath)
	if err != nil {
		return err
	}

	var plan []assert.Invocation
	planName := cfg.PlanPath
	if cfg.Check != "" {
		planName = "--check " + cfg.Check
		plan, err = inlineInvocation(cfg.Check, cfg.Params)
	} else {
		plan, err = loadPlan(cfg.PlanPath)
	}
	if err != nil {
		return err
	}

	var tracker *telemetry.Tracker
	if cfg.TelemetryEnabled {
		tracker, err = telemetry.New(appCtx.ResultsDir, appCtx.Logger)
		if err != nil {
			return &ConfigError{Reason: "telemetry", Err: err}
		}
		assert.SetTracker(tracker)
		defer assert.SetTracker(nil)
	}

	var progress *progressPrinter
	if cfg.ProgressEnabled {
		progress = newProgressPrinter(cmd.ErrOrStderr(), len(plan))
		progress.Start()
	}

	runner := &assert.Runner{
		Registry:    appCtx.Registry,
		Concurrency: cfg.Concurrency,
		RateLimit:   cfg.RateLimit,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
	}
	start := time.Now()
	execs := runner.Run(cmd.Context(), plan, func(exec assert.Execution) {
		if progress != nil {
			progress.Increment(statusOf(exec), exec.Duration)
		}
	})
	elapsed := time.Since(start)
	if progress != nil {
		progress.Stop()
	}

	out := cmd.OutOrStdout()
	for _, exec := range execs {
		if err := printExecution(out, exec, cfg.Quiet); err != nil {
			return err
		}
	}
	printSummary(out, execs)

	if outputPath != "" {
		sum, err := writeRecords(outputPath, execs)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "records: %s (sha256 %s)\n", outputPath, sum)
	}

	if tracker != nil {
		statuses := make([]check.Status, 0, len(execs))
		for _, exec := range execs {
			statuses = append(statuses, statusOf(exec))
		}
		if err := tracker.RecordRun(telemetry.Summary{
			Command:  "run",
			Plan:     planName,
			Statuses: statuses,
			Duration: elapsed,
		}); err != nil {
			appCtx.Logger.Warn("record run telemetry", zap.Error(err))
		}
	}

	exitCode = exitCodeFor(execs, appCtx.Strict)
	appCtx.Logger.Info("run finished",
		zap.String("plan", planName),
		zap.Int("checks", len(execs)),
		zap.Duration("elapsed", elapsed),
		zap.Int("exit_code", exitCode),
	)
	return nil
}

func init() {
	flags := runCmd.Flags()
	flags.StringVarP(&cliConfig.Run.PlanPath, "plan", "p", "", "YAML plan listing the checks to run")
	flags.StringVar(&cliConfig.Run.Check, "check", "", "run a single registered check instead of a plan")
	flags.StringArrayVar(&cliConfig.Run.Params, "param", nil, "check parameter as key=value (repeatable, with --check)")
	flags.StringVarP(&cliConfig.Run.OutputPath, "output", "O", "", "also write the records to this YAML file (relative paths land in the results directory)")
	flags.IntVar(&cliConfig.Run.Concurrency, "concurrency", cliConfig.Run.Concurrency, "maximum checks running at once")
	flags.IntVar(&cliConfig.Run.RateLimit, "rate-limit", cliConfig.Run.RateLimit, "checks started per second, 0 for unlimited")
	flags.IntVar(&cliConfig.Run.TimeoutSecs, "timeout", cliConfig.Run.TimeoutSecs, "per-check timeout in seconds, 0 for none")
	flags.BoolVar(&cliConfig.Run.TelemetryEnabled, "telemetry", false, "append results to telemetry.jsonl in the results directory")
	flags.BoolVar(&cliConfig.Run.ProgressEnabled, "progress", false, "show a live progress line on stderr")
	flags.BoolVarP(&cliConfig.Run.Quiet, "quiet", "q", false, "print only status lines, not full records")

	_ = runCmd.RegisterFlagCompletionFunc("check", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var names []string
		if appCtx := getAppContext(cmd); appCtx != nil {
			for _, name := range appCtx.Registry.Names() {
				if strings.HasPrefix(name, toComplete) {
					names = append(names, name)
				}
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}
