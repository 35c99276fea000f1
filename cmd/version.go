package cmd

import (
	"fmt"
	"runtime"
	rtdebug "runtime/debug"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/checker"
)

// Set with -ldflags "-X github.com/khanhnv2901/seca-assert/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type buildInfo struct {
	Version   string         `yaml:"version"`
	GitCommit string         `yaml:"git_commit"`
	BuildDate string         `yaml:"build_date"`
	GoVersion string         `yaml:"go_version"`
	Platform  string         `yaml:"platform"`
	Checks    map[string]int `yaml:"checks"`
}

// currentBuild fills gaps left by ldflags from the module build info, so
// `go install` builds still report a version and revision.
func currentBuild() buildInfo {
	info := buildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Checks:    make(map[string]int, len(checker.Families)),
	}
	if bi, ok := rtdebug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.GitCommit == "unknown":
				info.GitCommit = s.Value
			case s.Key == "vcs.time" && info.BuildDate == "unknown":
				info.BuildDate = s.Value
			}
		}
	}
	for _, f := range checker.Families {
		r := assert.NewRegistry()
		f.Register(r)
		info.Checks[f.Name] = len(r.Catalog())
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the seca-assert version. --verbose adds build details and the number of checks per family as YAML.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		info := currentBuild()
		out := cmd.OutOrStdout()

		if !verbose {
			fmt.Fprintf(out, "seca-assert version %s\n", info.Version)
			return nil
		}
		data, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("encode version: %w", err)
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "Show build details and check counts")
}
