package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"group-wager-go/internal/api"
	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserHeader carries the caller's identity, asserted by an upstream gateway
const UserHeader = "X-User-Id"

const maxBodyBytes = 1 << 20

// Server exposes the wager service as JSON over HTTP
type Server struct {
	svc *api.WagerService
}

func NewServer(svc *api.WagerService) *Server {
	return &Server{svc: svc}
}

// Router returns the mux with every route wrapped in request logging
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bets", s.createBet)
	mux.HandleFunc("GET /bets", s.listBets)
	mux.HandleFunc("GET /bets/{id}", s.getBet)
	mux.HandleFunc("POST /bets/{id}/stakes", s.placeStake)
	mux.HandleFunc("GET /bets/{id}/participations", s.participations)
	mux.HandleFunc("GET /bets/{id}/totals", s.outcomeTotals)
	mux.HandleFunc("GET /bets/{id}/settlement", s.settlement)
	mux.HandleFunc("POST /bets/{id}/resolve", s.resolve)
	mux.HandleFunc("POST /bets/{id}/cancel", s.cancel)
	mux.HandleFunc("POST /users", s.createUser)
	mux.HandleFunc("GET /users/{id}/balance", s.balance)
	mux.HandleFunc("GET /users/{id}/transactions", s.transactions)
	mux.HandleFunc("POST /users/{id}/deposit", s.deposit)
	mux.HandleFunc("POST /users/{id}/withdraw", s.withdraw)
	mux.HandleFunc("GET /leaderboard", s.leaderboard)
	return withRequestContext(mux)
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	var req CreateBetRequest
	if !decode(w, r, &req) {
		return
	}
	bet, err := s.svc.CreateBet(r.Context(), models.CreateBetRequest{
		GroupId:     req.GroupId,
		CreatorId:   r.Header.Get(UserHeader),
		Title:       req.Title,
		Description: req.Description,
		MinStake:    req.MinStake,
		Outcomes:    req.Outcomes,
		Deadline:    req.Deadline,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, bet)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bets, err := s.svc.ListBets(r.Context(), q.Get("groupId"), models.BetStatus(q.Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	if bets == nil {
		bets = []models.Bet{}
	}
	writeJSON(w, bets)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.svc.GetBet(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, bet)
}

func (s *Server) placeStake(w http.ResponseWriter, r *http.Request) {
	var req PlaceStakeRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.PlaceStake(r.Context(), models.StakeRequest{
		UserId:    r.Header.Get(UserHeader),
		BetId:     r.PathValue("id"),
		OutcomeId: req.OutcomeId,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

func (s *Server) participations(w http.ResponseWriter, r *http.Request) {
	participations, err := s.svc.ParticipationsFor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if participations == nil {
		participations = []models.Participation{}
	}
	writeJSON(w, participations)
}

func (s *Server) outcomeTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.svc.OutcomeTotals(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, totals)
}

func (s *Server) settlement(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetSettlement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.Resolve(r.Context(), r.PathValue("id"), req.WinningOutcomeId, r.Header.Get(UserHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Cancel(r.Context(), r.PathValue("id"), r.Header.Get(UserHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := s.svc.CreateUser(r.Context(), models.CreateUserRequest{
		Id:             req.Id,
		Name:           req.Name,
		Email:          req.Email,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, user)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	userId := r.PathValue("id")
	balance, err := s.svc.BalanceOf(r.Context(), userId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, BalanceResponse{UserId: userId, Balance: balance})
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	history, err := s.svc.TransactionHistory(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, history)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req WalletRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.Deposit(r.Context(), r.PathValue("id"), req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(UserHeader) != r.PathValue("id") {
		writeError(w, fmt.Errorf("%w: only the owner may withdraw", store.ErrUnauthorized))
		return
	}
	var req WalletRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.Withdraw(r.Context(), r.PathValue("id"), req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidState), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSONStatus(w, status, ErrorResponse{Error: msg, Kind: store.Kind(err)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: bad json: %v", store.ErrInvalidArgument, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestContext tags each request with a correlation id that ends up on
// the journal rows it writes, and logs the outcome
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get("X-Request-Id")
		if requestId == "" {
			requestId = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", requestId)

		ctx := models.WithRequestContext(r.Context(), &models.RequestContext{RequestId: requestId, Source: "http"})
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		zap.L().Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", requestId),
			zap.String("user_id", r.Header.Get(UserHeader)),
			zap.Duration("duration", time.Since(started)))
	})
}
