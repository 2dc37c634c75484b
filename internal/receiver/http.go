package receiver

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/mailwatch/internal/config"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
)

const (
	maxBodyBytes    = 4 << 20
	contentTypeJSON = "application/json"
	contentTypePB   = "application/x-protobuf"
)

// HTTPReceiver serves OTLP/HTTP log exports on /v1/logs, in protobuf or JSON.
type HTTPReceiver struct {
	cfg   config.ReceiverConfig
	rec   Recorder
	log   zerolog.Logger
	debug Logger

	listener net.Listener
	server   *http.Server
	stopOnce sync.Once
}

func NewHTTPReceiver(cfg config.ReceiverConfig, rec Recorder, opts ...Option) *HTTPReceiver {
	o := buildOptions(opts)
	return &HTTPReceiver{
		cfg:   cfg,
		rec:   rec,
		log:   o.logger,
		debug: o.debug,
	}
}

// Handler returns the receiver's routes.
func (r *HTTPReceiver) Handler() http.Handler {
	router := chi.NewRouter()
	router.Post("/v1/logs", r.handleLogs)
	return router
}

// Start binds the configured port and serves in the background until ctx is
// cancelled or Stop is called.
func (r *HTTPReceiver) Start(ctx context.Context) error {
	lis, err := listen(r.cfg.Bind, r.cfg.HTTPPort)
	if err != nil {
		return err
	}
	r.listener = lis
	r.server = &http.Server{
		Handler:      r.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error().Err(err).Msg("OTLP HTTP receiver stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	r.log.Info().Str("addr", lis.Addr().String()).Msg("OTLP HTTP receiver listening")
	return nil
}

// Stop shuts the server down, waiting up to five seconds for in-flight
// requests. Safe to call more than once.
func (r *HTTPReceiver) Stop() {
	r.stopOnce.Do(func() {
		if r.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.Warn().Err(err).Msg("OTLP HTTP receiver shutdown")
		}
	})
}

// Addr returns the bound address, or nil before Start.
func (r *HTTPReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *HTTPReceiver) handleLogs(w http.ResponseWriter, req *http.Request) {
	body, err := readBody(w, req)
	if err != nil {
		http.Error(w, "reading request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	isJSON := requestIsJSON(req)
	export := &collogspb.ExportLogsServiceRequest{}
	if isJSON {
		err = protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(body, export)
	} else {
		err = proto.Unmarshal(body, export)
	}
	if err != nil {
		r.log.Debug().Err(err).Bool("json", isJSON).Msg("malformed OTLP logs payload")
		http.Error(w, "malformed OTLP logs payload", http.StatusBadRequest)
		return
	}

	res := processLogs(export, r.rec, r.debug)
	logResult(r.log, res)

	resp := &collogspb.ExportLogsServiceResponse{PartialSuccess: partialSuccess(res)}
	var out []byte
	if isJSON {
		out, err = protojson.Marshal(resp)
		w.Header().Set("Content-Type", contentTypeJSON)
	} else {
		out, err = proto.Marshal(resp)
		w.Header().Set("Content-Type", contentTypePB)
	}
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func readBody(w http.ResponseWriter, req *http.Request) ([]byte, error) {
	var src io.Reader = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if req.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		src = io.LimitReader(gz, maxBodyBytes)
	}
	return io.ReadAll(src)
}

func requestIsJSON(req *http.Request) bool {
	mt, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	return err == nil && mt == contentTypeJSON
}
