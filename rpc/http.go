package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"escrowd/core"
	"escrowd/observability"
)

const (
	maxRequestBytes = 1 << 20 // 1 MiB

	// Mutating methods are throttled per source address.
	mutationRate  = rate.Limit(10)
	mutationBurst = 20
)

// AuthTokenEnv names the environment variable holding the bearer token
// required for mutating methods.
const AuthTokenEnv = "ESCROWD_RPC_TOKEN"

type Server struct {
	node      *core.Node
	log       *slog.Logger
	authToken string
	metrics   *observability.ModuleMetrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:      node,
		log:       logger,
		authToken: strings.TrimSpace(os.Getenv(AuthTokenEnv)),
		metrics:   observability.Metrics(),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetAuthToken overrides the token read from the environment. Primarily for
// tests.
func (s *Server) SetAuthToken(token string) { s.authToken = strings.TrimSpace(token) }

// Router assembles the HTTP surface: JSON-RPC on /, liveness on /healthz and
// prometheus on /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", slog.String("addr", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "failed to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, 0, codeInvalidRequest, "request body too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", req.JSONRPC)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	started := time.Now()
	s.dispatch(recorder, r, &req)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
		s.metrics.ObserveError(req.Method, strconv.Itoa(recorder.status))
	}
	s.metrics.ObserveRequest(req.Method, outcome, time.Since(started))
	s.log.Debug("rpc request",
		slog.String("method", req.Method),
		slog.String("outcome", outcome),
		slog.String("requestId", recorder.Header().Get("X-Request-ID")),
	)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	// mutating surface: authenticated and throttled
	case "escrow_create":
		s.guardMutation(w, r, req, s.handleEscrowCreate)
	case "escrow_confirmDelivery":
		s.guardMutation(w, r, req, s.handleEscrowConfirmDelivery)
	case "escrow_approvePayment":
		s.guardMutation(w, r, req, s.handleEscrowApprovePayment)
	case "escrow_raiseDispute":
		s.guardMutation(w, r, req, s.handleEscrowRaiseDispute)
	case "escrow_resolveDispute":
		s.guardMutation(w, r, req, s.handleEscrowResolveDispute)
	case "escrow_emergencyRefund":
		s.guardMutation(w, r, req, s.handleEscrowEmergencyRefund)
	case "escrow_addArbiter":
		s.guardMutation(w, r, req, s.handleEscrowAddArbiter)
	case "escrow_removeArbiter":
		s.guardMutation(w, r, req, s.handleEscrowRemoveArbiter)
	case "fees_withdraw":
		s.guardMutation(w, r, req, s.handleFeesWithdraw)
	case "ledger_deposit":
		s.guardMutation(w, r, req, s.handleLedgerDeposit)

	// read surface
	case "escrow_get":
		s.handleEscrowGet(w, r, req)
	case "escrow_getStatus":
		s.handleEscrowGetStatus(w, r, req)
	case "escrow_listByParticipant":
		s.handleEscrowListByParticipant(w, r, req)
	case "escrow_platformInfo":
		s.handleEscrowPlatformInfo(w, r, req)
	case "escrow_listEvents":
		s.handleEscrowListEvents(w, r, req)
	case "fees_available":
		s.handleFeesAvailable(w, r, req)
	case "ledger_balance":
		s.handleLedgerBalance(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) guardMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	source := clientSource(r)
	if !s.allowSource(source) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(mutationRate, mutationBurst)
		s.limiters[source] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
