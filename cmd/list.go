package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/checker"
)

var (
	listFamily string
	listKind   string
	listYAML   bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := filteredCatalog(listFamily, listKind)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listYAML {
			data, err := yaml.Marshal(catalog)
			if err != nil {
				return fmt.Errorf("encode catalog: %w", err)
			}
			_, err = out.Write(data)
			return err
		}
		return printCatalog(out, catalog)
	},
}

// filteredCatalog returns the metadata of the checks in family (all when
// empty) whose kind matches.
func filteredCatalog(family, kind string) ([]assert.Meta, error) {
	var catalog []assert.Meta
	found := family == ""
	for _, f := range checker.Families {
		if family != "" && !strings.EqualFold(f.Name, family) {
			continue
		}
		found = true
		r := assert.NewRegistry()
		f.Register(r)
		catalog = append(catalog, r.Catalog()...)
	}
	if !found {
		names := make([]string, 0, len(checker.Families))
		for _, f := range checker.Families {
			names = append(names, f.Name)
		}
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown family %q (available: %s)", family, strings.Join(names, ", "))}
	}

	if kind == "" {
		return catalog, nil
	}
	filtered := catalog[:0]
	for _, meta := range catalog {
		if strings.EqualFold(string(meta.Kind), kind) {
			filtered = append(filtered, meta)
		}
	}
	return filtered, nil
}

func printCatalog(w io.Writer, catalog []assert.Meta) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tRISK\tDESCRIPTION")
	for _, meta := range catalog {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", meta.Name, meta.Kind, meta.Risk, meta.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d checks\n", len(catalog))
	return nil
}

func init() {
	listCmd.Flags().StringVar(&listFamily, "family", "", "only list checks of this family (dns, http, sast, ...)")
	listCmd.Flags().StringVar(&listKind, "kind", "", "only list checks of this kind (SAST, DAST, SCA)")
	listCmd.Flags().BoolVar(&listYAML, "yaml", false, "print the catalog as YAML")
}
