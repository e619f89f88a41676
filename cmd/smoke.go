package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/telemetry/errext"
	"github.com/liuxd6825/telemetry/errext/exitcodes"
	"github.com/liuxd6825/telemetry/pageset"
	"github.com/liuxd6825/telemetry/pageset/pagesettest"
)

// cmdSmoke handles the `telemetry smoke` sub-command
type cmdSmoke struct {
	gs   *globalState
	list bool
}

func (c *cmdSmoke) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.String("credentials", "", "credentials `file` used for pages that don't declare their own")
	flags.String("log-level", "info", "log level, one of trace, debug, info, warning, error")
	flags.BoolVar(&c.list, "list", false, "only list the discovered page sets")
	return flags
}

type listedPageSet struct {
	Name          string `yaml:"name"`
	Constructable bool   `yaml:"constructable"`
}

func (c *cmdSmoke) run(cmd *cobra.Command, args []string) error {
	cliConf := getConfig(cmd.Flags())
	if len(args) > 0 {
		cliConf.PageSetsDir.String, cliConf.PageSetsDir.Valid = args[0], true
	}
	conf, err := getConsolidatedConfig(c.gs, cliConf)
	if err != nil {
		return err
	}

	dir := conf.PageSetsDir.String
	reg := pageset.NewRegistry()
	if err := pageset.Discover(c.gs.fs, dir, reg); err != nil {
		return errext.WithExitCodeIfNone(
			fmt.Errorf("could not discover page sets in %s: %w", dir, err), exitcodes.InvalidConfig)
	}

	if c.list {
		entries := reg.Entries()
		listed := make([]listedPageSet, 0, len(entries))
		for _, e := range entries {
			listed = append(listed, listedPageSet{Name: e.Name, Constructable: e.Constructable()})
		}
		return c.gs.console.PrintYAML(listed)
	}

	maybePrintBanner(c.gs)
	st := pagesettest.New(c.gs.fs, c.gs.categoryLogger())
	st.CredentialsPath = conf.CredentialsPath.String

	failures := st.Collect(reg)
	for _, f := range failures {
		c.gs.console.Printf("%s %s\n", c.gs.console.Failure("FAIL"), f.Name)
		for _, msg := range f.Messages {
			c.gs.console.Printf("%s\n", indent(strings.TrimSpace(msg), "    "))
		}
	}
	if len(failures) > 0 {
		return errext.WithExitCodeIfNone(
			fmt.Errorf("%d of %d page sets in %s failed the smoke test", len(failures), reg.Len(), dir),
			exitcodes.SmokeTestFailed)
	}
	c.gs.console.Printf("%s %d page sets in %s\n", c.gs.console.ApplyTheme("ok"), reg.Len(), dir)
	return nil
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func getCmdSmoke(gs *globalState) *cobra.Command {
	c := &cmdSmoke{gs: gs}

	smokeCmd := &cobra.Command{
		Use:   "smoke [dir]",
		Short: "Smoke test page set declarations",
		Long: `Smoke test page set declarations.

Discovers the YAML page sets in dir and checks that their archive indexes,
credentials and attributes are usable before any of them is replayed.`,
		Example: `
  # Check every page set under ./page_sets.
  telemetry smoke page_sets

  # Use a shared credentials file for pages without their own.
  telemetry smoke --credentials ~/.config/telemetry/credentials.json page_sets`[1:],
		Args: maxArgsWithMsg(1, "only the page sets directory may be given"),
		RunE: c.run,
	}
	smokeCmd.Flags().AddFlagSet(c.flagSet())
	return smokeCmd
}
