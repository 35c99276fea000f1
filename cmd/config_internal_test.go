package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
)

func TestApplyIntDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("timeout", 0, "")

	var applied int
	applyIntDefault(flags, "timeout", 15, func(v int) {
		applied = v
	})
	if applied != 15 {
		t.Fatalf("expected setter to receive 15, got %d", applied)
	}

	// When flag already set, setter should not run.
	if err := flags.Set("timeout", "7"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	applied = 0
	applyIntDefault(flags, "timeout", 20, func(v int) {
		applied = v
	})
	if applied != 0 {
		t.Fatalf("setter should not run when flag overridden, got %d", applied)
	}
}

func TestApplyBoolDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("telemetry", false, "")

	applied := false
	applyBoolDefault(flags, "telemetry", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatal("expected setter to run with true")
	}

	if err := flags.Set("telemetry", "false"); err != nil {
		t.Fatalf("failed to set bool flag: %v", err)
	}
	applied = true
	applyBoolDefault(flags, "telemetry", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatalf("setter should not change value when flag already set")
	}
}

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	timeout := int(consts.DefaultTimeout.Seconds())
	if cfg.Run.TimeoutSecs != timeout || cfg.Defaults.TimeoutSecs != timeout {
		t.Fatalf("unexpected timeout default: %d/%d", cfg.Run.TimeoutSecs, cfg.Defaults.TimeoutSecs)
	}
	if cfg.Run.Concurrency != defaultConcurrency {
		t.Fatalf("unexpected concurrency default: %d", cfg.Run.Concurrency)
	}
	if cfg.Run.RateLimit != 0 {
		t.Fatalf("expected rate limiting to be off by default, got %d", cfg.Run.RateLimit)
	}
	if cfg.Run.TelemetryEnabled {
		t.Fatal("expected telemetry to be disabled by default")
	}
}

func TestLoadDefaultOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("defaults.timeout_secs", 30)
	viper.Set("defaults.concurrency", 8)
	viper.Set("telemetry", true)

	overrides := loadDefaultOverrides()

	if overrides.TimeoutSecs == nil || *overrides.TimeoutSecs != 30 {
		t.Fatalf("expected timeout override 30, got %+v", overrides.TimeoutSecs)
	}
	if overrides.Concurrency == nil || *overrides.Concurrency != 8 {
		t.Fatalf("expected concurrency override 8, got %+v", overrides.Concurrency)
	}
	if overrides.RateLimit != nil {
		t.Fatalf("expected no rate limit override, got %d", *overrides.RateLimit)
	}
	if overrides.TelemetryEnabled == nil || !*overrides.TelemetryEnabled {
		t.Fatalf("expected telemetry override true, got %+v", overrides.TelemetryEnabled)
	}
}

func TestApplyConfigDefaultsIgnoresOtherCommandsFlags(t *testing.T) {
	resetCLIState(t)
	viper.Set("defaults.concurrency", 3)

	other := &cobra.Command{Use: "other"}
	other.Flags().Int("concurrency", 0, "")
	if err := runCmd.Flags().Set("concurrency", "9"); err != nil {
		t.Fatalf("failed to set concurrency: %v", err)
	}

	// Only flags of the command being run can shadow config values.
	applyConfigDefaults(other)
	if cliConfig.Run.Concurrency != 3 {
		t.Fatalf("expected config concurrency 3, got %d", cliConfig.Run.Concurrency)
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	resetCLIState(t)

	viper.Set("defaults.timeout_secs", 20)
	viper.Set("defaults.rate_limit", 5)
	viper.Set("defaults.concurrency", 2)
	viper.Set("telemetry", true)

	// An explicit --concurrency wins over the config file.
	if err := runCmd.Flags().Set("concurrency", "9"); err != nil {
		t.Fatalf("failed to set concurrency: %v", err)
	}

	applyConfigDefaults(runCmd)

	if cliConfig.Defaults.TimeoutSecs != 20 || cliConfig.Run.TimeoutSecs != 20 {
		t.Fatalf("expected timeout defaults to update to 20, got %d/%d", cliConfig.Defaults.TimeoutSecs, cliConfig.Run.TimeoutSecs)
	}
	if cliConfig.Run.RateLimit != 5 {
		t.Fatalf("expected rate limit 5, got %d", cliConfig.Run.RateLimit)
	}
	if cliConfig.Run.Concurrency != 9 {
		t.Fatalf("expected flag concurrency 9 to be kept, got %d", cliConfig.Run.Concurrency)
	}
	if !cliConfig.Defaults.TelemetryEnabled || !cliConfig.Run.TelemetryEnabled {
		t.Fatal("expected telemetry defaults to be enabled")
	}
}
