package rpc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/logging"
	"github.com/danielpatrickdp/potential/internal/metrics"
	"github.com/danielpatrickdp/potential/internal/potential"
	"github.com/danielpatrickdp/potential/internal/store"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

var tracer = otel.Tracer("potential.rpc")

// DefaultCacheSize bounds the number of built potentials a Server keeps.
const DefaultCacheSize = 64

// Catalog resolves stored definitions. *store.Store satisfies it.
type Catalog interface {
	GetActive(name string) (store.Record, error)
	GetVersion(id string) (store.Record, error)
}

// #region server
// Options configures a Server. Zero values disable the optional parts.
type Options struct {
	// EvalLog receives one evaluation_log row per resolved request.
	EvalLog   *sql.DB
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	MaxPoints int
	CacheSize int
}

// Server implements PotentialServiceServer over a Catalog. Built potentials
// are cached by version id; a version never changes once saved.
type Server struct {
	catalog   Catalog
	evalLog   *sql.DB
	metrics   *metrics.Metrics
	logger    *slog.Logger
	maxPoints int
	cacheSize int

	mu    sync.RWMutex
	cache map[string]*potential.Potential
}

// NewServer returns a Server reading from catalog.
func NewServer(catalog Catalog, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Server{
		catalog:   catalog,
		evalLog:   opts.EvalLog,
		metrics:   opts.Metrics,
		logger:    logger,
		maxPoints: opts.MaxPoints,
		cacheSize: size,
		cache:     make(map[string]*potential.Potential),
	}
}

// #endregion server

// #region evaluate
// Evaluate resolves the requested potential, applies any per-call Adjust
// and Scale, and evaluates it at x.
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	_, span := tracer.Start(ctx, "PotentialService.Evaluate")
	defer span.End()

	req, err := decodeEvaluateRequest(in)
	if err != nil {
		return nil, s.fail(span, err)
	}
	inputKind := "scalar"
	if req.X.IsArray() {
		inputKind = "array"
	}
	span.SetAttributes(
		attribute.String("potential.name", req.Name),
		attribute.String("potential.version_id", req.VersionID),
		attribute.String("potential.input", inputKind),
		attribute.Int("potential.points", req.X.Len()),
	)
	if s.maxPoints > 0 && req.X.Len() > s.maxPoints {
		return nil, s.fail(span, fault.Config(fmt.Sprintf("x has %d points, limit is %d", req.X.Len(), s.maxPoints), nil))
	}

	rec, p, err := s.resolve(req.Name, req.VersionID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	start := time.Now()
	y, err := evaluate(p, req)
	elapsed := time.Since(start)

	outcome := logging.OutcomeOf(err)
	s.metrics.ObserveEvaluation(rec.Name, inputKind, outcome, req.X.Len(), elapsed)
	s.record(rec.VersionID, inputKind, req, p, outcome, err, elapsed)
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	return encodeEvaluateResult(EvaluateResult{
		Name:      rec.Name,
		VersionID: rec.VersionID,
		Strength:  strengthOf(p, req),
		Y:         y,
	}), nil
}

func evaluate(p *potential.Potential, req EvaluateRequest) (y tensor.Value, err error) {
	if len(req.Adjust) > 0 {
		if p, err = p.Adjust(req.Adjust); err != nil {
			return y, err
		}
	}
	if req.Scale != nil {
		p = p.Scale(*req.Scale)
	}
	return p.Evaluate(req.X)
}

// strengthOf reports the strength the request was evaluated with.
func strengthOf(p *potential.Potential, req EvaluateRequest) float64 {
	if req.Scale != nil {
		return p.Strength() * *req.Scale
	}
	return p.Strength()
}

func (s *Server) record(versionID, inputKind string, req EvaluateRequest, p *potential.Potential, outcome string, evalErr error, d time.Duration) {
	if s.evalLog == nil {
		return
	}
	entry := logging.EvaluationEntry{
		VersionID: versionID,
		InputKind: inputKind,
		Points:    req.X.Len(),
		Strength:  strengthOf(p, req),
		Outcome:   outcome,
		Duration:  d,
	}
	if evalErr != nil {
		entry.Error = evalErr.Error()
	}
	if err := logging.LogEvaluation(s.evalLog, entry); err != nil {
		s.logger.Warn("evaluation log write failed", "version_id", versionID, "error", err)
	}
}

// #endregion evaluate

// #region describe
// Describe reports the parameters and resolved regions of a stored potential.
func (s *Server) Describe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	_, span := tracer.Start(ctx, "PotentialService.Describe")
	defer span.End()

	fields := in.GetFields()
	name, err := stringField(fields, "name")
	if err != nil {
		return nil, s.fail(span, err)
	}
	versionID, err := stringField(fields, "version_id")
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("potential.name", name), attribute.String("potential.version_id", versionID))

	rec, p, err := s.resolve(name, versionID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return encodeDescription(describe(rec.Name, rec.VersionID, p)), nil
}

// #endregion describe

// #region resolve
// resolve finds the record for versionID, or the active version of name,
// and returns its built potential.
func (s *Server) resolve(name, versionID string) (store.Record, *potential.Potential, error) {
	var rec store.Record
	var err error
	switch {
	case versionID != "":
		rec, err = s.catalog.GetVersion(versionID)
	case name != "":
		rec, err = s.catalog.GetActive(name)
	default:
		return store.Record{}, nil, fault.Config("name or version_id is required", nil)
	}
	if err != nil {
		return store.Record{}, nil, err
	}

	s.mu.RLock()
	p, ok := s.cache[rec.VersionID]
	s.mu.RUnlock()
	if ok {
		return rec, p, nil
	}

	p, err = rec.Build()
	s.metrics.IncrementBuild(err == nil)
	if err != nil {
		return store.Record{}, nil, fmt.Errorf("build version %s: %w", rec.VersionID, err)
	}

	s.mu.Lock()
	if len(s.cache) >= s.cacheSize {
		for id := range s.cache {
			delete(s.cache, id)
			break
		}
	}
	s.cache[rec.VersionID] = p
	n := len(s.cache)
	s.mu.Unlock()
	s.metrics.SetCached(n)

	s.logger.Debug("potential built", "name", rec.Name, "version_id", rec.VersionID, "regions", len(p.Regions()))
	return rec, p, nil
}

// #endregion resolve

// #region errors
func (s *Server) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	st := toStatus(err)
	if status.Code(st) == grpccodes.Internal {
		s.logger.Error("request failed", "error", err)
	}
	return st
}

func toStatus(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return status.Error(grpccodes.NotFound, err.Error())
	}
	return fault.ToStatus(err)
}

// #endregion errors

// #region grpc-server
// NewGRPCServer registers s and a health service on a new grpc.Server.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	RegisterPotentialServiceServer(grpcServer, s)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}

// Serve runs grpcServer on lis until ctx is cancelled, then stops it
// gracefully.
func Serve(ctx context.Context, grpcServer *grpc.Server, healthServer *health.Server, lis net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		if healthServer != nil {
			healthServer.Shutdown()
		}
		grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// #endregion grpc-server
