package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lendpool/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	defaultVisitorTTL = 5 * time.Minute
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Config carries the transport settings for the JSON-RPC server.
type Config struct {
	ListenAddress     string
	AuthToken         string
	RequestsPerMinute float64
	Burst             int
	Logger            *slog.Logger
}

// Server serves the ledger operation ABI as JSON-RPC 2.0 over HTTP. Write
// methods require the configured bearer token; reads are open.
type Server struct {
	lending *modules.LendingModule
	cfg     Config
	logger  *slog.Logger

	mu         sync.Mutex
	visitors   map[string]*rate.Limiter
	visitorTTL time.Duration

	httpServer *http.Server
}

// NewServer wires the lending module behind the RPC surface.
func NewServer(lendingModule *modules.LendingModule, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		lending:    lendingModule,
		cfg:        cfg,
		logger:     logger,
		visitors:   make(map[string]*rate.Limiter),
		visitorTTL: defaultVisitorTTL,
	}
}

// Start serves requests until the context is cancelled, then drains with a
// short grace period.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc server listening", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is the JSON-RPC error member.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModuleError(w http.ResponseWriter, id interface{}, moduleErr *modules.ModuleError) {
	writeError(w, moduleErr.HTTPStatus, id, moduleErr.Code, moduleErr.Message, moduleErr.Data)
}

// handle is the main request handler that routes to method handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.allow(r) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "lend_initializePool":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleInitializePool(w, req)
	case "lend_contribute":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleContribute(w, req)
	case "lend_requestLoan":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRequestLoan(w, req)
	case "lend_repayLoan":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRepayLoan(w, req)
	case "lend_getLenderBalance":
		s.handleGetLenderBalance(w, req)
	case "lend_getLoanStatus":
		s.handleGetLoanStatus(w, req)
	case "lend_getPool":
		s.handleGetPool(w, req)
	case "lend_getLenderEarnings":
		s.handleGetLenderEarnings(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	token := strings.TrimSpace(s.cfg.AuthToken)
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid auth token"}
	}
	return nil
}

func (s *Server) allow(r *http.Request) bool {
	if s.cfg.RequestsPerMinute <= 0 {
		return true
	}
	identifier := clientID(r)
	s.mu.Lock()
	limiter, ok := s.visitors[identifier]
	if !ok {
		burst := s.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerMinute/60.0), burst)
		s.visitors[identifier] = limiter
		go s.expireVisitor(identifier)
	}
	s.mu.Unlock()
	return limiter.Allow()
}

// expireVisitor drops the visitor's limiter after the TTL so the map does
// not grow without bound. A returning client simply gets a fresh limiter.
func (s *Server) expireVisitor(identifier string) {
	ttl := s.visitorTTL
	if ttl <= 0 {
		ttl = defaultVisitorTTL
	}
	timer := time.NewTimer(ttl)
	defer timer.Stop()
	<-timer.C
	s.mu.Lock()
	delete(s.visitors, identifier)
	s.mu.Unlock()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
