package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/periscope-mesh/periscope/internal/constants"
)

// maxRequestBody bounds admission request reads. Pod specs are small; the
// apiserver never legitimately sends multi-megabyte reviews here.
const maxRequestBody = 4 << 20

// Server is the HTTPS admission endpoint.
type Server struct {
	cfg        ServerConfig
	engine     *Engine
	metrics    *Metrics
	registry   *prometheus.Registry
	logger     zerolog.Logger
	httpServer *http.Server
}

// NewServer builds the admission server around a mutation engine.
func NewServer(cfg *Config, logger zerolog.Logger) (*Server, error) {
	engine, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build mutation engine: %w", err)
	}

	s := &Server{
		cfg:    cfg.Server,
		engine: engine,
		logger: logger.With().Str("component", "webhook-server").Logger(),
	}

	if cfg.Server.Metrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector())
		s.metrics = NewMetrics(s.registry)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mutate", s.handleMutate)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	host := cfg.Server.Host
	port := cfg.Server.Port
	if port == 0 {
		port = constants.DefaultWebhookPort
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadTimeout:       constants.DefaultReadTimeout,
		ReadHeaderTimeout: constants.DefaultReadTimeout,
		WriteTimeout:      constants.DefaultWriteTimeout,
	}

	if err := http2.ConfigureServer(s.httpServer, nil); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
	}

	return s, nil
}

// Start serves HTTPS until ctx is cancelled, then shuts down gracefully.
// TLS material is provided externally; the server only consumes it.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().
			Str("addr", s.httpServer.Addr).
			Str("cert", s.cfg.CertFile).
			Msg("Admission webhook listening")
		if err := s.httpServer.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down admission webhook")
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleMutate answers one AdmissionReview. The engine must answer every
// well-formed request; a panic inside the decision degrades to an allow
// without patch (the cluster-side failure policy is fail open anyway).
func (s *Server) handleMutate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var review admissionv1.AdmissionReview
	if err := json.Unmarshal(body, &review); err != nil || review.Request == nil {
		s.logger.Warn().Err(err).Msg("Malformed admission review")
		http.Error(w, "malformed admission review", http.StatusBadRequest)
		return
	}

	resp, outcome := s.decide(review.Request)

	if s.metrics != nil {
		s.metrics.Observe(outcome, time.Since(start).Seconds(), countPatchOps(resp.Patch))
	}

	out := admissionv1.AdmissionReview{
		TypeMeta: metav1.TypeMeta{
			APIVersion: admissionv1.SchemeGroupVersion.String(),
			Kind:       "AdmissionReview",
		},
		Response: resp,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn().Err(err).Msg("Failed writing admission response")
	}
}

// decide runs the engine with panic containment.
func (s *Server) decide(req *admissionv1.AdmissionRequest) (resp *admissionv1.AdmissionResponse, outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().
				Interface("panic", rec).
				Str("uid", string(req.UID)).
				Msg("Mutation engine panicked, allowing unmutated")
			resp = &admissionv1.AdmissionResponse{UID: req.UID, Allowed: true}
			outcome = OutcomeError
		}
	}()

	return s.engine.Decide(req)
}

func countPatchOps(patch []byte) int {
	if len(patch) == 0 {
		return 0
	}
	var ops []json.RawMessage
	if err := json.Unmarshal(patch, &ops); err != nil {
		return 0
	}
	return len(ops)
}
