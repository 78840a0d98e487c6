package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potential/internal/fixture"
)

// #region check
var checkCmd = &cobra.Command{
	Use:   "check <fixture.json|dir>...",
	Short: "Run regression fixtures and report failing cases",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	var fixtures []*fixture.Fixture
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("check %s: %w", arg, err)
		}
		if info.IsDir() {
			fs, err := fixture.LoadDir(arg)
			if err != nil {
				return err
			}
			fixtures = append(fixtures, fs...)
			continue
		}
		f, err := fixture.LoadFixture(arg)
		if err != nil {
			return err
		}
		fixtures = append(fixtures, f)
	}

	out := cmd.OutOrStdout()
	all := make([][]fixture.Result, 0, len(fixtures))
	for _, f := range fixtures {
		results := fixture.Run(f)
		all = append(all, results)
		for _, r := range results {
			if !r.Passed {
				fmt.Fprintf(out, "FAIL  %s  %-16s  %s\n", f.Path(), r.ID, r.Reason)
			}
		}
	}

	s := fixture.Summarize(all)
	fmt.Fprintf(out, "%d fixtures, %d cases: %d passed, %d failed\n", s.Fixtures, s.Cases, s.Passed, s.Failed)
	if s.Failed > 0 {
		return fmt.Errorf("%d fixture cases failed", s.Failed)
	}
	return nil
}

// #endregion check
