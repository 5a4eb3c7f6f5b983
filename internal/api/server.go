package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sigil-attest/go-engine/internal/hardware"
	"sigil-attest/go-engine/internal/platform/ratelimiter"
	"sigil-attest/go-engine/internal/pqc"
	"sigil-attest/go-engine/internal/provision"
	"sigil-attest/go-engine/pkg/models"
)

const (
	DefaultListenAddr = "127.0.0.1:8878"

	maxRequestBody = 1 << 20
)

// Engine is the attestation surface the server exposes over HTTP.
type Engine interface {
	Generate(payload []byte) (models.SignalState, error)
	Validate(sig models.SignalState) (models.ValidationOutcome, error)
	CurrentHardwareProfile() (models.HardwareProfile, error)
	ValidateHardwareBinding(profile models.HardwareProfile) bool
}

// Escrower wraps the engine's sealed key material for an enrollment peer's
// KEM public key.
type Escrower interface {
	Escrow(recipientPublicKey []byte) (provision.EscrowedKeys, error)
}

type Server struct {
	httpServer *http.Server
	engine     Engine
	escrower   Escrower
	logger     *slog.Logger
	limiter    *ratelimiter.MapLimiter
	now        func() time.Time
}

func NewServer(addr string, engine Engine, escrower Escrower, logger *slog.Logger, registry *prometheus.Registry) *Server {
	if addr == "" {
		addr = DefaultListenAddr
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		engine:   engine,
		escrower: escrower,
		logger:   logger,
		limiter:  ratelimiter.New(50, 100, 10*time.Minute),
		now:      time.Now,
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/signal", s.handleGenerate)
	mux.HandleFunc("/v1/signal/validate", s.handleValidate)
	mux.HandleFunc("/v1/hardware/profile", s.handleHardwareProfile)
	mux.HandleFunc("/v1/hardware/validate", s.handleHardwareValidate)
	if escrower != nil {
		mux.HandleFunc("/v1/keystore/escrow", s.handleEscrow)
	}
	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

type generateRequest struct {
	Data []byte `json:"data"`
}

type hardwareProfileResponse struct {
	ProfileID string                 `json:"profile_id"`
	Profile   models.HardwareProfile `json:"profile"`
}

type hardwareValidateResponse struct {
	Bound bool `json:"bound"`
}

type escrowRequest struct {
	RecipientPublicKey []byte `json:"recipient_public_key"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.admitRequest(w, r, http.MethodPost) {
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sig, err := s.engine.Generate(req.Data)
	if err != nil {
		s.logger.Error("signal generation failed", "err", err)
		http.Error(w, "signal generation failed", engineErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !s.admitRequest(w, r, http.MethodPost) {
		return
	}
	var sig models.SignalState
	if !decodeBody(w, r, &sig) {
		return
	}
	outcome, err := s.engine.Validate(sig)
	if err != nil {
		s.logger.Error("signal validation failed", "err", err)
		http.Error(w, "signal validation failed", engineErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleHardwareProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	profile, err := s.engine.CurrentHardwareProfile()
	if err != nil {
		s.logger.Error("hardware profile read failed", "err", err)
		http.Error(w, "hardware profile unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hardwareProfileResponse{
		ProfileID: hardware.ProfileID(profile),
		Profile:   profile,
	})
}

func (s *Server) handleHardwareValidate(w http.ResponseWriter, r *http.Request) {
	if !s.admitRequest(w, r, http.MethodPost) {
		return
	}
	var profile models.HardwareProfile
	if !decodeBody(w, r, &profile) {
		return
	}
	writeJSON(w, http.StatusOK, hardwareValidateResponse{
		Bound: s.engine.ValidateHardwareBinding(profile),
	})
}

func (s *Server) handleEscrow(w http.ResponseWriter, r *http.Request) {
	if !s.admitRequest(w, r, http.MethodPost) {
		return
	}
	var req escrowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	esc, err := s.escrower.Escrow(req.RecipientPublicKey)
	if err != nil {
		if errors.Is(err, pqc.ErrMalformedKey) {
			http.Error(w, "malformed recipient public key", http.StatusBadRequest)
			return
		}
		s.logger.Error("keystore escrow failed", "err", err)
		http.Error(w, "keystore escrow failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func (s *Server) admitRequest(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if !s.limiter.Allow(clientKey(r), s.now()) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func engineErrorStatus(err error) int {
	if errors.Is(err, pqc.ErrCryptoUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
