package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/checker"
)

const envPrefix = "SECA_ASSERT"

var cfgFile string
var debug bool

var rootCmd = &cobra.Command{
	Use:           "seca-assert",
	Short:         "Security assertions for services, code and artifacts (for lawful testing only)",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appCtx, err := initAppContext()
		if err != nil {
			return err
		}
		storeAppContext(cmd, appCtx)
		applyConfigDefaults(cmd)
		return nil
	},
}

// initAppContext reads configuration, resolves the results directory and
// builds the logger shared by every command. The directory itself is only
// created once a run writes records or telemetry.
func initAppContext() (*AppContext, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".seca-assert")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("strict", "FA_STRICT", envPrefix+"_STRICT")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, &ConfigError{Reason: "read config", Err: err}
		}
	}

	resultsDir := viper.GetString("results_dir")
	if resultsDir == "" {
		resultsDir = "./results"
	}
	if abs, err := filepath.Abs(resultsDir); err == nil {
		resultsDir = abs
	}

	logger, err := newLogger(debug)
	if err != nil {
		return nil, &ConfigError{Reason: "init logger", Err: err}
	}
	assert.SetLogger(logger)
	logger.Debug("runtime initialized", zap.String("results_dir", resultsDir), zap.Bool("strict", viper.GetBool("strict")))

	return &AppContext{
		Logger:     logger,
		ResultsDir: resultsDir,
		Config:     cliConfig,
		Registry:   checker.NewRegistry(),
		Strict:     viper.GetBool("strict"),
	}, nil
}

// newLogger returns a production logger writing to stderr, or a
// development logger with --debug.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// Execute runs the root command and exits with the code of the outcome.
func Execute() {
	code := execute(os.Args[1:])
	if code != ExitClosed {
		os.Exit(code)
	}
}

func execute(args []string) int {
	exitCode = ExitClosed
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), errorColor.Sprint("error: ")+err.Error())
		return exitCodeForError(err)
	}
	return exitCode
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-assert.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose development logging")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ConfigError{Reason: "invalid flags", Err: err}
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}
