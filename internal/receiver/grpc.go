package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/nixlim/mailwatch/internal/config"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
)

// GRPCReceiver serves the OTLP LogsService over gRPC.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer

	cfg   config.ReceiverConfig
	rec   Recorder
	log   zerolog.Logger
	debug Logger

	listener net.Listener
	server   *grpc.Server
	stopOnce sync.Once
}

func NewGRPCReceiver(cfg config.ReceiverConfig, rec Recorder, opts ...Option) *GRPCReceiver {
	o := buildOptions(opts)
	return &GRPCReceiver{
		cfg:   cfg,
		rec:   rec,
		log:   o.logger,
		debug: o.debug,
	}
}

// Start binds the configured port and serves in the background until ctx is
// cancelled or Stop is called.
func (r *GRPCReceiver) Start(ctx context.Context) error {
	lis, err := listen(r.cfg.Bind, r.cfg.GRPCPort)
	if err != nil {
		return err
	}
	r.listener = lis
	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	go func() {
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			r.log.Error().Err(err).Msg("OTLP gRPC receiver stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	r.log.Info().Str("addr", lis.Addr().String()).Msg("OTLP gRPC receiver listening")
	return nil
}

// Stop gracefully stops the server. Safe to call more than once.
func (r *GRPCReceiver) Stop() {
	r.stopOnce.Do(func() {
		if r.server != nil {
			r.server.GracefulStop()
		}
	})
}

// Addr returns the bound address, or nil before Start.
func (r *GRPCReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Export implements collogspb.LogsServiceServer.
func (r *GRPCReceiver) Export(_ context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	res := processLogs(req, r.rec, r.debug)
	logResult(r.log, res)
	return &collogspb.ExportLogsServiceResponse{PartialSuccess: partialSuccess(res)}, nil
}

func listen(bind string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(bind, strconv.Itoa(port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("port %d already in use", port)
		}
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return lis, nil
}
