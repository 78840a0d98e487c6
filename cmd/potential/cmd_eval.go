package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potential/internal/config"
	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/potential"
	"github.com/danielpatrickdp/potential/internal/rpc"
	"github.com/danielpatrickdp/potential/internal/store"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// #region flags
var (
	evalSets   []string
	evalScale  float64
	evalFrom   float64
	evalTo     float64
	evalNum    int
	evalJSON   bool
	evalRemote string

	evalCmd = &cobra.Command{
		Use:   "eval <file|name> [x...]",
		Short: "Evaluate a potential at the given points",
		Long: `eval evaluates a potential from a definition file, or the active catalog
version of a name, at the x values given as arguments and/or on an evenly
spaced grid (--from, --to, --num). With --remote the catalog lookup and
evaluation happen on a running server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEval,
	}
)

func init() {
	f := evalCmd.Flags()
	f.StringArrayVar(&evalSets, "set", nil, "override a parameter, name=value (repeatable)")
	f.Float64Var(&evalScale, "scale", 1, "multiply the potential by this factor")
	f.Float64Var(&evalFrom, "from", 0, "grid start")
	f.Float64Var(&evalTo, "to", 0, "grid stop (inclusive)")
	f.IntVar(&evalNum, "num", 0, "grid points; 0 disables the grid")
	f.BoolVar(&evalJSON, "json", false, "output as JSON instead of a table")
	f.StringVar(&evalRemote, "remote", "", "evaluate on the server at this address")
}

// #endregion flags

// #region run
func runEval(cmd *cobra.Command, args []string) error {
	xs, err := evalPoints(args[1:], evalFrom, evalTo, evalNum)
	if err != nil {
		return err
	}
	adjust, err := parseAssignments(evalSets)
	if err != nil {
		return err
	}

	var ys tensor.Value
	if evalRemote != "" {
		ys, err = evalRemotely(cmd.Context(), args[0], xs, adjust)
	} else {
		ys, err = evalLocally(args[0], xs, adjust)
	}
	if err != nil {
		return err
	}
	return printPoints(cmd.OutOrStdout(), xs, ys, evalJSON)
}

func evalLocally(source string, xs tensor.Value, adjust map[string]float64) (tensor.Value, error) {
	p, err := loadPotential(source)
	if err != nil {
		return tensor.Value{}, err
	}
	if len(adjust) > 0 {
		if p, err = p.Adjust(adjust); err != nil {
			return tensor.Value{}, err
		}
	}
	if evalScale != 1 {
		p = p.Scale(evalScale)
	}
	logger.Debug("evaluating", "potential", p.Name(), "points", xs.Len(), "regions", len(p.Regions()))
	return p.Evaluate(xs)
}

func evalRemotely(ctx context.Context, name string, xs tensor.Value, adjust map[string]float64) (tensor.Value, error) {
	client, err := rpc.NewClient(evalRemote)
	if err != nil {
		return tensor.Value{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req := rpc.EvaluateRequest{Name: name, X: xs, Adjust: adjust}
	if evalScale != 1 {
		req.Scale = &evalScale
	}
	res, err := client.Evaluate(ctx, req)
	if err != nil {
		return tensor.Value{}, err
	}
	logger.Debug("remote evaluation", "version_id", res.VersionID, "strength", res.Strength)
	return res.Y, nil
}

// loadPotential builds source as a definition file when it exists on disk,
// and as the active catalog version of that name otherwise.
func loadPotential(source string) (*potential.Potential, error) {
	if _, err := os.Stat(source); err == nil {
		def, err := config.Load(source)
		if err != nil {
			return nil, err
		}
		return potential.BuildDefinition(def)
	}

	st, err := store.NewStore(serverCfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	rec, err := st.GetActive(source)
	if err != nil {
		return nil, fmt.Errorf("%s is neither a file nor a stored potential: %w", source, err)
	}
	return rec.Build()
}

// #endregion run

// #region points
// evalPoints turns positional values and an optional grid into one input.
// A single positional value without a grid stays scalar.
func evalPoints(args []string, from, to float64, num int) (tensor.Value, error) {
	if num < 0 {
		return tensor.Value{}, fault.Config("--num must not be negative", nil)
	}
	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return tensor.Value{}, fault.Config(fmt.Sprintf("x value %q is not a number", a), nil)
		}
		vals[i] = v
	}
	if num == 0 {
		switch len(vals) {
		case 0:
			return tensor.Value{}, fault.Config("no points given: pass x values or --num", nil)
		case 1:
			return tensor.Scalar(vals[0]), nil
		}
		return tensor.Array(vals), nil
	}
	return tensor.Concat(tensor.Array(vals), tensor.Linspace(from, to, num)), nil
}

// parseAssignments reads name=value overrides.
func parseAssignments(sets []string) (map[string]float64, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(sets))
	for _, s := range sets {
		name, val, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fault.Config(fmt.Sprintf("--set %q: want name=value", s), nil)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fault.Parameter(name, fmt.Sprintf("override %q is not a number", val), err)
		}
		out[name] = v
	}
	return out, nil
}

// #endregion points

// #region output
type pointRow struct {
	X, V float64
}

func printPoints(w io.Writer, xs, ys tensor.Value, jsonOut bool) error {
	rows := make([]pointRow, xs.Len())
	for i := range rows {
		rows[i] = pointRow{X: xs.At(i), V: ys.At(i)}
	}
	if jsonOut {
		// encoding/json rejects Inf, so non-finite values are written as strings.
		out := make([]map[string]any, len(rows))
		for i, r := range rows {
			out[i] = map[string]any{"x": jsonNumber(r.X), "v": jsonNumber(r.V)}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "%14s  %14s\n", "x", "V(x)")
	fmt.Fprintf(w, "%14s+-%14s\n", "--------------", "--------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%14.6g  %14.6g\n", r.X, r.V)
	}
	return nil
}

func jsonNumber(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// #endregion output
