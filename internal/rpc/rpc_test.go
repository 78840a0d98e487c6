package rpc

import (
	"context"
	"errors"
	"math"
	"net"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/metrics"
	"github.com/danielpatrickdp/potential/internal/params"
	"github.com/danielpatrickdp/potential/internal/potential"
	"github.com/danielpatrickdp/potential/internal/store"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// #region helpers
type harness struct {
	store   *store.Store
	metrics *metrics.Metrics
	client  *Client
}

func newHarness(t *testing.T, maxPoints int) *harness {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "rpc.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	srv := NewServer(st, Options{EvalLog: st.DB(), Metrics: m, MaxPoints: maxPoints})
	grpcServer, healthServer := NewGRPCServer(srv)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, grpcServer, healthServer, lis) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &harness{store: st, metrics: m, client: client}
}

// splitParabola is x**2 left of zero and -(x**2) right of it.
func splitParabola() potential.Definition {
	return potential.Definition{
		Name:    "split",
		Regions: potential.Specs("-2, 0|x**2", "0, 2|-(x**2)"),
	}
}

func wellDefinition() potential.Definition {
	return potential.Definition{
		Name: "well",
		Parameters: []params.Pair{
			{Name: "a", Value: "1"},
			{Name: "v0", Value: "5"},
		},
		Regions: potential.Specs("-a, a|0", "-inf, inf|v0"),
	}
}

func (h *harness) save(t *testing.T, def potential.Definition) store.Record {
	t.Helper()
	rec, err := h.store.Save(def, "")
	if err != nil {
		t.Fatalf("Save %s: %v", def.Name, err)
	}
	return rec
}

// #endregion helpers

// #region evaluate-tests
func TestEvaluateArray(t *testing.T) {
	h := newHarness(t, 0)
	rec := h.save(t, splitParabola())

	res, err := h.client.Evaluate(context.Background(), EvaluateRequest{
		Name: "split",
		X:    tensor.Array([]float64{-1, 0, 1}),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []float64{1, 0, -1}
	got := res.Y.Floats()
	if !res.Y.IsArray() || len(got) != len(want) {
		t.Fatalf("expected array of %d, got %v", len(want), res.Y)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("y[%d] = %g, want %g", i, got[i], want[i])
		}
	}
	if res.VersionID != rec.VersionID || res.Name != "split" || res.Strength != 1 {
		t.Errorf("unexpected result header %+v", res)
	}
}

func TestEvaluateScalarWithAdjustAndScale(t *testing.T) {
	h := newHarness(t, 0)
	h.save(t, wellDefinition())

	scale := 3.0
	res, err := h.client.Evaluate(context.Background(), EvaluateRequest{
		Name:   "well",
		X:      tensor.Scalar(1.5),
		Adjust: map[string]float64{"a": 2, "v0": 4},
		Scale:  &scale,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Y.IsArray() {
		t.Fatal("scalar input produced an array")
	}
	// a = 2 moves 1.5 inside the well.
	if y, _ := res.Y.Float(); y != 0 {
		t.Errorf("expected 0 inside the widened well, got %g", y)
	}
	if res.Strength != 3 {
		t.Errorf("expected strength 3, got %g", res.Strength)
	}

	res, err = h.client.Evaluate(context.Background(), EvaluateRequest{Name: "well", X: tensor.Scalar(1.5)})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if y, _ := res.Y.Float(); y != 5 {
		t.Errorf("per-call adjust leaked into the stored potential: got %g", y)
	}
}

func TestEvaluateByVersionID(t *testing.T) {
	h := newHarness(t, 0)
	v1 := h.save(t, wellDefinition())
	deeper := wellDefinition()
	deeper.Parameters[1].Value = "9"
	h.save(t, deeper)

	res, err := h.client.Evaluate(context.Background(), EvaluateRequest{VersionID: v1.VersionID, X: tensor.Scalar(3)})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if y, _ := res.Y.Float(); y != 5 {
		t.Errorf("expected the first version's 5, got %g", y)
	}
}

// #endregion evaluate-tests

// #region error-tests
func TestEvaluateDomainError(t *testing.T) {
	h := newHarness(t, 0)
	h.save(t, splitParabola())

	_, err := h.client.Evaluate(context.Background(), EvaluateRequest{
		Name: "split",
		X:    tensor.Array([]float64{-1, 2.5, 1}),
	})
	if status.Code(err) != codes.OutOfRange {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
	if kind, ok := fault.KindOf(err); !ok || kind != fault.KindDomain {
		t.Fatalf("expected DOMAIN detail, got %q (%v)", kind, ok)
	}
}

func TestEvaluateInvalidArguments(t *testing.T) {
	h := newHarness(t, 2)
	h.save(t, splitParabola())

	cases := []struct {
		name string
		req  EvaluateRequest
	}{
		{"too many points", EvaluateRequest{Name: "split", X: tensor.Array([]float64{0, 1, 2})}},
		{"no selector", EvaluateRequest{X: tensor.Scalar(0)}},
		{"unknown adjust name", EvaluateRequest{Name: "split", X: tensor.Scalar(0), Adjust: map[string]float64{"w": 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.client.Evaluate(context.Background(), tc.req)
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestEvaluateRejectsNonNumericInput(t *testing.T) {
	h := newHarness(t, 0)
	h.save(t, splitParabola())

	inputs := map[string]*structpb.Value{
		"string":         structpb.NewStringValue("a"),
		"list of string": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue("1")}}),
		"bool":           structpb.NewBoolValue(true),
	}
	for name, x := range inputs {
		t.Run(name, func(t *testing.T) {
			in := &structpb.Struct{Fields: map[string]*structpb.Value{
				"name": structpb.NewStringValue("split"),
				"x":    x,
			}}
			err := h.client.cc.Invoke(context.Background(), EvaluateMethod, in, new(structpb.Struct))
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("expected InvalidArgument, got %v", err)
			}
			if kind, _ := fault.KindOf(err); kind != fault.KindConfig {
				t.Fatalf("expected CONFIG detail, got %q", kind)
			}
		})
	}
}

func TestEvaluateNotFound(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.client.Evaluate(context.Background(), EvaluateRequest{Name: "missing", X: tensor.Scalar(0)})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := h.client.Describe(context.Background(), "", "no-such-version"); status.Code(err) != codes.NotFound {
		t.Fatalf("Describe: expected NotFound, got %v", err)
	}
}

// #endregion error-tests

// #region describe-tests
func TestDescribe(t *testing.T) {
	h := newHarness(t, 0)
	rec := h.save(t, wellDefinition())

	d, err := h.client.Describe(context.Background(), "well", "")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if d.VersionID != rec.VersionID || d.Strength != 1 {
		t.Errorf("unexpected header %+v", d)
	}
	if len(d.Parameters) != 2 || d.Parameters[0].Name != "a" || d.Parameters[1].Value != 5 {
		t.Errorf("unexpected parameters %+v", d.Parameters)
	}
	if len(d.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(d.Regions))
	}
	r0, r1 := d.Regions[0], d.Regions[1]
	if r0.Index != 0 || r0.Lower != -1 || r0.Upper != 1 || r0.Function != "0" {
		t.Errorf("unexpected region 0 %+v", r0)
	}
	if !math.IsInf(r1.Lower, -1) || !math.IsInf(r1.Upper, 1) {
		t.Errorf("expected unbounded region 1, got %+v", r1)
	}
}

// #endregion describe-tests

// #region service-tests
func TestReady(t *testing.T) {
	h := newHarness(t, 0)
	if err := h.client.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
}

func TestMetricsAndEvaluationLog(t *testing.T) {
	h := newHarness(t, 0)
	rec := h.save(t, splitParabola())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.client.Evaluate(ctx, EvaluateRequest{Name: "split", X: tensor.Scalar(1)}); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
	}
	h.client.Evaluate(ctx, EvaluateRequest{Name: "split", X: tensor.Scalar(5)})

	if got := testutil.ToFloat64(h.metrics.Evaluations.WithLabelValues("split", "ok")); got != 3 {
		t.Errorf("expected 3 ok evaluations, got %g", got)
	}
	if got := testutil.ToFloat64(h.metrics.Evaluations.WithLabelValues("split", "DOMAIN")); got != 1 {
		t.Errorf("expected 1 domain failure, got %g", got)
	}
	if got := testutil.ToFloat64(h.metrics.Builds.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected one build for a cached version, got %g", got)
	}
	if got := testutil.ToFloat64(h.metrics.Cached); got != 1 {
		t.Errorf("expected 1 cached potential, got %g", got)
	}

	var rows, failures int
	h.store.DB().QueryRow(`SELECT COUNT(*) FROM evaluation_log WHERE version_id = ?`, rec.VersionID).Scan(&rows)
	h.store.DB().QueryRow(`SELECT COUNT(*) FROM evaluation_log WHERE outcome = 'DOMAIN' AND error IS NOT NULL`).Scan(&failures)
	if rows != 4 || failures != 1 {
		t.Errorf("expected 4 log rows with 1 failure, got %d / %d", rows, failures)
	}
}

func TestServerCacheEviction(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()
	for _, name := range []string{"a", "b", "c"} {
		def := splitParabola()
		def.Name = name
		if _, err := st.Save(def, ""); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	srv := NewServer(st, Options{CacheSize: 2})
	for _, name := range []string{"a", "b", "c"} {
		if _, _, err := srv.resolve(name, ""); err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
	}
	if n := len(srv.cache); n != 2 {
		t.Fatalf("expected cache capped at 2, got %d", n)
	}
}

func TestToStatusPlainError(t *testing.T) {
	if status.Code(toStatus(errors.New("disk on fire"))) != codes.Internal {
		t.Fatal("expected Internal for an unclassified error")
	}
}

// #endregion service-tests
