package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
)

const defaultConcurrency = 4

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Run      RunRuntimeConfig
}

// DefaultValues represent operator-level defaults, typically derived from env/config.
type DefaultValues struct {
	TimeoutSecs      int
	Concurrency      int
	RateLimit        int
	TelemetryEnabled bool
}

// RunRuntimeConfig consolidates flag-driven settings for the run command.
type RunRuntimeConfig struct {
	PlanPath         string
	OutputPath       string
	Check            string
	Params           []string
	Concurrency      int
	RateLimit        int
	TimeoutSecs      int
	TelemetryEnabled bool
	ProgressEnabled  bool
	Quiet            bool
}

type defaultOverrides struct {
	TimeoutSecs      *int
	Concurrency      *int
	RateLimit        *int
	TelemetryEnabled *bool
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	timeout := int(consts.DefaultTimeout.Seconds())
	return &CLIConfig{
		Defaults: DefaultValues{
			TimeoutSecs: timeout,
			Concurrency: defaultConcurrency,
		},
		Run: RunRuntimeConfig{
			Concurrency: defaultConcurrency,
			TimeoutSecs: timeout,
		},
	}
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("defaults.timeout_secs") {
		val := viper.GetInt("defaults.timeout_secs")
		overrides.TimeoutSecs = &val
	}

	if viper.IsSet("defaults.concurrency") {
		val := viper.GetInt("defaults.concurrency")
		overrides.Concurrency = &val
	}

	if viper.IsSet("defaults.rate_limit") {
		val := viper.GetInt("defaults.rate_limit")
		overrides.RateLimit = &val
	}

	if viper.IsSet("telemetry") {
		val := viper.GetBool("telemetry")
		overrides.TelemetryEnabled = &val
	}

	return overrides
}

// applyConfigDefaults merges config file defaults into the runtime config
// unless the corresponding flag was set on cmd.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()
	flags := cmd.Flags()

	if overrides.TimeoutSecs != nil {
		applyIntDefault(flags, "timeout", *overrides.TimeoutSecs, func(v int) {
			cliConfig.Defaults.TimeoutSecs = v
			cliConfig.Run.TimeoutSecs = v
		})
	}

	if overrides.Concurrency != nil {
		applyIntDefault(flags, "concurrency", *overrides.Concurrency, func(v int) {
			cliConfig.Defaults.Concurrency = v
			cliConfig.Run.Concurrency = v
		})
	}

	if overrides.RateLimit != nil {
		applyIntDefault(flags, "rate-limit", *overrides.RateLimit, func(v int) {
			cliConfig.Defaults.RateLimit = v
			cliConfig.Run.RateLimit = v
		})
	}

	if overrides.TelemetryEnabled != nil {
		applyBoolDefault(flags, "telemetry", *overrides.TelemetryEnabled, func(v bool) {
			cliConfig.Defaults.TelemetryEnabled = v
			cliConfig.Run.TelemetryEnabled = v
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
