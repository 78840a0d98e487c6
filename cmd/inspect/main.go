package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/potential/internal/logging"
	"github.com/danielpatrickdp/potential/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to potential.db")
	last := flag.Int("last", 20, "show N most recent versions")
	name := flag.String("name", "", "restrict the listing to one potential")
	version := flag.String("version", "", "show single version detail")
	evals := flag.Int("evals", 10, "evaluation log rows shown in detail mode")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/potential.db [--last N] [--name potential] [--version id] [--evals N] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *version != "" {
		err = runDetailMode(st, *version, *evals, *jsonOut)
	} else {
		err = runListMode(st, *name, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string `json:"version_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Params    int    `json:"parameters"`
	Regions   int    `json:"regions"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runListMode(st *store.Store, name string, last int, jsonOut bool) error {
	versions, err := st.ListVersions(name, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}
	active, err := st.ListActive()
	if err != nil {
		return err
	}
	isActive := make(map[string]bool, len(active))
	for _, a := range active {
		isActive[a.VersionID] = true
	}

	// Store returns DESC, reverse for chronological.
	rows := make([]listRow, len(versions))
	for i, rec := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID: rec.VersionID,
			ParentID:  rec.ParentID,
			Name:      rec.Name,
			Active:    isActive[rec.VersionID],
			Params:    len(rec.Definition.Parameters),
			Regions:   len(rec.Definition.Regions),
			Note:      rec.Note,
			CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	return printListTable(rows)
}

func printListTable(rows []listRow) error {
	fmt.Printf("%-12s  %-12s  %-16s  %6s  %7s  %-6s  %-20s  %s\n",
		"Version", "Parent", "Name", "Params", "Regions", "Active", "Time", "Note")
	fmt.Printf("%-12s+-%-12s+-%-16s+-%6s+-%7s+-%-6s+-%-20s+-%s\n",
		"------------", "------------", "----------------", "------", "-------", "------", "--------------------", "----")
	for _, r := range rows {
		parent := "-"
		if r.ParentID != "" {
			parent = shortID(r.ParentID)
		}
		mark := ""
		if r.Active {
			mark = "*"
		}
		fmt.Printf("%-12s  %-12s  %-16s  %6d  %7d  %-6s  %-20s  %s\n",
			shortID(r.VersionID), parent, r.Name, r.Params, r.Regions, mark, r.CreatedAt, r.Note)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	VersionID   string        `json:"version_id"`
	ParentID    string        `json:"parent_id"`
	Name        string        `json:"name"`
	CreatedAt   string        `json:"created_at"`
	Note        string        `json:"note,omitempty"`
	Strength    float64       `json:"strength"`
	Parameters  []paramRow    `json:"parameters"`
	Regions     []regionRow   `json:"regions"`
	Evaluations []evalSummary `json:"evaluations"`
}

type paramRow struct {
	Name  string `json:"name"`
	Expr  string `json:"expr"`
	Value string `json:"value"`
}

type regionRow struct {
	Index    int    `json:"index"`
	Lower    string `json:"lower"`
	Upper    string `json:"upper"`
	Function string `json:"function"`
}

type evalSummary struct {
	InputKind  string `json:"input_kind"`
	Points     int    `json:"points"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationUS int64  `json:"duration_us"`
	CreatedAt  string `json:"created_at"`
}

func runDetailMode(st *store.Store, versionID string, evals int, jsonOut bool) error {
	rec, err := st.GetVersion(versionID)
	if err != nil {
		return err
	}
	p, err := rec.Build()
	if err != nil {
		return fmt.Errorf("build version %s: %w", versionID, err)
	}

	out := detailOutput{
		VersionID: rec.VersionID,
		ParentID:  rec.ParentID,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Note:      rec.Note,
		Strength:  p.Strength(),
	}
	pairs := p.Params().Pairs()
	for i, e := range p.Params().All() {
		out.Parameters = append(out.Parameters, paramRow{
			Name:  e.Name,
			Expr:  pairs[i].Value,
			Value: fmt.Sprintf("%g", e.Value),
		})
	}
	for _, r := range p.Regions() {
		out.Regions = append(out.Regions, regionRow{
			Index:    r.Index(),
			Lower:    fmt.Sprintf("%g", r.Lower()),
			Upper:    fmt.Sprintf("%g", r.Upper()),
			Function: r.FunctionSpec(),
		})
	}

	entries, err := logging.ListEvaluations(st.DB(), rec.VersionID, evals)
	if err != nil {
		return err
	}
	for _, e := range entries {
		out.Evaluations = append(out.Evaluations, evalSummary{
			InputKind:  e.InputKind,
			Points:     e.Points,
			Outcome:    e.Outcome,
			Error:      e.Error,
			DurationUS: e.Duration.Microseconds(),
			CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:   %s\n", out.VersionID)
	fmt.Printf("Parent:    %s\n", out.ParentID)
	fmt.Printf("Name:      %s\n", out.Name)
	fmt.Printf("Created:   %s\n", out.CreatedAt)
	fmt.Printf("Note:      %s\n", out.Note)
	fmt.Printf("Strength:  %g\n", out.Strength)

	fmt.Printf("\nParameters:\n")
	for _, pr := range out.Parameters {
		fmt.Printf("  %-12s %-24s = %s\n", pr.Name, pr.Expr, pr.Value)
	}

	fmt.Printf("\nRegions:\n")
	for _, r := range out.Regions {
		fmt.Printf("  %3d  [%s, %s]  %s\n", r.Index, r.Lower, r.Upper, r.Function)
	}

	if len(out.Evaluations) > 0 {
		fmt.Printf("\nRecent evaluations:\n")
		for _, e := range out.Evaluations {
			line := fmt.Sprintf("  %-20s  %-6s  %8d pts  %8dus  %s", e.CreatedAt, e.InputKind, e.Points, e.DurationUS, e.Outcome)
			if e.Error != "" {
				line += "  " + strings.ReplaceAll(e.Error, "\n", " ")
			}
			fmt.Println(line)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
