// Package api serves the control API over a Unix socket and provides its client.
//
// Every operation is POST /rpc/<Operation> with a JSON request body and a
// JSON response body. Failures return {"code": ..., "message": ...} with a
// stable code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

const maxRequestBodyBytes = 1 << 20

// Regulator is the set of account and regulation operations the API exposes.
type Regulator interface {
	ManageAccount(ctx context.Context, idOrName, password string, interval clock.Duration) (domain.AccountSnapshot, error)
	UnmanageAccount(ctx context.Context, id domain.AccountID) error
	Account(ctx context.Context, id domain.AccountID) (domain.AccountSnapshot, error)
	ListAccounts(ctx context.Context) []domain.AccountSnapshot
	EnableRegulationApplication(ctx context.Context, id domain.AccountID) error
	DisableRegulationApplication(ctx context.Context, id domain.AccountID) error
	SetCheckInterval(ctx context.Context, id domain.AccountID, interval clock.Duration) error
	CreatePolicy(ctx context.Context, id domain.AccountID, name string) (uuid.UUID, error)
	DeletePolicy(ctx context.Context, id domain.AccountID, policyID uuid.UUID) error
	RenamePolicy(ctx context.Context, id domain.AccountID, policyID uuid.UUID, name string) error
	IncreasePolicyProtection(ctx context.Context, id domain.AccountID, policyID uuid.UUID, increment clock.Duration) error
	CreateRule(ctx context.Context, id domain.AccountID, policyID uuid.UUID, activator policy.Activator) (uuid.UUID, error)
	DeleteRule(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID) error
	UpdateRuleTimeRange(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID, next clock.TimeRange) error
	UpdateRuleWeekdayRange(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID, next clock.WeekdayRange) error
}

// StatusFunc reports the daemon status.
type StatusFunc func() StatusResponse

// Server is the control API HTTP server.
type Server struct {
	regulator Regulator
	status    StatusFunc
	clock     clock.Clock
	logger    *zap.Logger
	router    chi.Router
}

// NewServer creates the API server and its routes.
func NewServer(regulator Regulator, status StatusFunc, clk clock.Clock, logger *zap.Logger) *Server {
	s := &Server{
		regulator: regulator,
		status:    status,
		clock:     clk,
		logger:    logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBodyBytes))
	r.Use(s.logRequests)

	r.Route("/rpc", func(r chi.Router) {
		r.Post("/"+OpStatus, handle(s, s.statusOp))
		r.Post("/"+OpListAccounts, handle(s, s.listAccounts))
		r.Post("/"+OpGetAccount, handle(s, s.getAccount))
		r.Post("/"+OpManageAccount, handle(s, s.manageAccount))
		r.Post("/"+OpUnmanageAccount, handle(s, s.unmanageAccount))
		r.Post("/"+OpSetCheckInterval, handle(s, s.setCheckInterval))
		r.Post("/"+OpEnableRegulationApplication, handle(s, s.enable))
		r.Post("/"+OpDisableRegulationApplication, handle(s, s.disable))
		r.Post("/"+OpCreatePolicy, handle(s, s.createPolicy))
		r.Post("/"+OpDeletePolicy, handle(s, s.deletePolicy))
		r.Post("/"+OpUpdatePolicyName, handle(s, s.updatePolicyName))
		r.Post("/"+OpIncreasePolicyProtection, handle(s, s.increasePolicyProtection))
		r.Post("/"+OpCreateRule, handle(s, s.createRule))
		r.Post("/"+OpDeleteRule, handle(s, s.deleteRule))
		r.Post("/"+OpUpdateRuleActivatorTimeRange, handle(s, s.updateRuleTimeRange))
		r.Post("/"+OpUpdateRuleActivatorWeekdayRange, handle(s, s.updateRuleWeekdayRange))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, &Error{Code: CodeUnknownOperation, Message: r.URL.Path})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api request",
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

// handle adapts a typed operation to an HTTP handler.
func handle[Req, Resp any](s *Server, op func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			s.writeError(w, invalidRequest(fmt.Errorf("decode request: %w", err)))
			return
		}
		resp, err := op(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, status := classify(err)
	msg := err.Error()
	if code == CodeInternalError {
		// Causes are logged where they happen; do not leak them.
		msg = "internal error"
	}
	writeJSON(w, status, &Error{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve listens on socketPath until ctx is canceled, then shuts down gracefully.
// A stale socket file from a previous run is replaced.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	// Only the owner may steer the daemon.
	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return err
	}
	defer os.Remove(socketPath)

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()
	s.logger.Info("control API listening", zap.String("socket", socketPath))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// --- operations ---

func (s *Server) statusOp(_ context.Context, _ Empty) (StatusResponse, error) {
	return s.status(), nil
}

func (s *Server) listAccounts(ctx context.Context, _ Empty) (ListAccountsResponse, error) {
	now := s.clock.Now()
	resp := ListAccountsResponse{Accounts: []Account{}}
	for _, snap := range s.regulator.ListAccounts(ctx) {
		resp.Accounts = append(resp.Accounts, AccountFromSnapshot(snap, now))
	}
	return resp, nil
}

func (s *Server) getAccount(ctx context.Context, req AccountRequest) (Account, error) {
	snap, err := s.regulator.Account(ctx, req.Account)
	if err != nil {
		return Account{}, err
	}
	return AccountFromSnapshot(snap, s.clock.Now()), nil
}

func (s *Server) manageAccount(ctx context.Context, req ManageAccountRequest) (Account, error) {
	var interval clock.Duration
	if req.CheckInterval != "" {
		d, err := clock.ParseDuration(req.CheckInterval)
		if err != nil {
			return Account{}, invalidRequest(err)
		}
		interval = d
	}
	snap, err := s.regulator.ManageAccount(ctx, req.Account, req.Password, interval)
	if err != nil {
		return Account{}, err
	}
	return AccountFromSnapshot(snap, s.clock.Now()), nil
}

func (s *Server) unmanageAccount(ctx context.Context, req AccountRequest) (Empty, error) {
	return Empty{}, s.regulator.UnmanageAccount(ctx, req.Account)
}

func (s *Server) setCheckInterval(ctx context.Context, req SetCheckIntervalRequest) (Empty, error) {
	d, err := clock.ParseDuration(req.Interval)
	if err != nil {
		return Empty{}, invalidRequest(err)
	}
	return Empty{}, s.regulator.SetCheckInterval(ctx, req.Account, d)
}

func (s *Server) enable(ctx context.Context, req AccountRequest) (Empty, error) {
	return Empty{}, s.regulator.EnableRegulationApplication(ctx, req.Account)
}

func (s *Server) disable(ctx context.Context, req AccountRequest) (Empty, error) {
	return Empty{}, s.regulator.DisableRegulationApplication(ctx, req.Account)
}

func (s *Server) createPolicy(ctx context.Context, req CreatePolicyRequest) (IDResponse, error) {
	id, err := s.regulator.CreatePolicy(ctx, req.Account, req.Name)
	return IDResponse{ID: id}, err
}

func (s *Server) deletePolicy(ctx context.Context, req PolicyRequest) (Empty, error) {
	return Empty{}, s.regulator.DeletePolicy(ctx, req.Account, req.Policy)
}

func (s *Server) updatePolicyName(ctx context.Context, req UpdatePolicyNameRequest) (Empty, error) {
	return Empty{}, s.regulator.RenamePolicy(ctx, req.Account, req.Policy, req.Name)
}

func (s *Server) increasePolicyProtection(ctx context.Context, req IncreasePolicyProtectionRequest) (Empty, error) {
	d, err := clock.ParseDuration(req.Increment)
	if err != nil {
		return Empty{}, invalidRequest(err)
	}
	return Empty{}, s.regulator.IncreasePolicyProtection(ctx, req.Account, req.Policy, d)
}

func (s *Server) createRule(ctx context.Context, req CreateRuleRequest) (IDResponse, error) {
	a, err := req.Activator.ToPolicy()
	if err != nil {
		return IDResponse{}, invalidRequest(err)
	}
	id, err := s.regulator.CreateRule(ctx, req.Account, req.Policy, a)
	return IDResponse{ID: id}, err
}

func (s *Server) deleteRule(ctx context.Context, req RuleRequest) (Empty, error) {
	return Empty{}, s.regulator.DeleteRule(ctx, req.Account, req.Policy, req.Rule)
}

func (s *Server) updateRuleTimeRange(ctx context.Context, req UpdateRuleRangeRequest) (Empty, error) {
	r, err := ParseTimeRange(req.From, req.Till)
	if err != nil {
		return Empty{}, invalidRequest(err)
	}
	return Empty{}, s.regulator.UpdateRuleTimeRange(ctx, req.Account, req.Policy, req.Rule, r)
}

func (s *Server) updateRuleWeekdayRange(ctx context.Context, req UpdateRuleRangeRequest) (Empty, error) {
	r, err := ParseWeekdayRange(req.From, req.Till)
	if err != nil {
		return Empty{}, invalidRequest(err)
	}
	return Empty{}, s.regulator.UpdateRuleWeekdayRange(ctx, req.Account, req.Policy, req.Rule, r)
}
