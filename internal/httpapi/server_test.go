package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"group-wager-go/internal/api"
	"group-wager-go/internal/database"
	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	svc := api.NewWagerService(db, models.SettlementConfig{
		FeeRate:    decimal.RequireFromString("0.03"),
		MoneyScale: 2,
	}, nil, nil)
	return NewServer(svc).Router()
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestBetLifecycleOverHTTP(t *testing.T) {
	h := newTestServer(t)

	for _, id := range []string{"host", "ann", "ben"} {
		rec := do(t, h, http.MethodPost, "/users", "", map[string]string{
			"id": id, "name": id, "email": id + "@example.com", "opening_balance": "50",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodPost, "/bets", "host", map[string]any{
		"group_id":  "pub-quiz",
		"title":     "Final round",
		"min_stake": "5",
		"outcomes":  []string{"red", "blue"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bet := decodeBody[models.Bet](t, rec)
	require.Len(t, bet.Outcomes, 2)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	red, blue := bet.Outcomes[0].Id, bet.Outcomes[1].Id

	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/stakes", "ann", map[string]string{"outcome_id": red, "amount": "10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/stakes", "ben", map[string]string{"outcome_id": blue, "amount": "10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/stakes", "ann", map[string]string{"outcome_id": blue, "amount": "10"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeBody[ErrorResponse](t, rec).Kind)

	rec = do(t, h, http.MethodGet, "/bets/"+bet.Id+"/participations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Participation](t, rec), 2)

	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/resolve", "ann", map[string]string{"winning_outcome_id": red})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// no identity at all is refused the same way as the wrong one
	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/resolve", "", map[string]string{"winning_outcome_id": red})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/cancel", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/resolve", "host", map[string]string{"winning_outcome_id": red})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/users/ann/balance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decodeBody[BalanceResponse](t, rec)
	assert.Equal(t, "59.40", balance.Balance.StringFixed(2))

	rec = do(t, h, http.MethodPost, "/bets/"+bet.Id+"/cancel", "host", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/leaderboard?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeBody[[]models.LeaderboardEntry](t, rec)
	require.Len(t, board, 1)
	assert.Equal(t, "ann", board[0].UserId)

	rec = do(t, h, http.MethodGet, "/bets/"+bet.Id+"/settlement", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[models.Settlement](t, rec)
	assert.Equal(t, models.BetStatusResolved, st.Status)

	rec = do(t, h, http.MethodGet, "/bets?groupId=pub-quiz&status=RESOLVED", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Bet](t, rec), 1)
}

func TestWalletRoutes(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/users", "", map[string]string{"id": "kim", "name": "Kim", "email": "kim@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/users/kim/deposit", "", map[string]string{"amount": "20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/users/kim/withdraw", "someone-else", map[string]string{"amount": "5"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/users/kim/withdraw", "kim", map[string]string{"amount": "25"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/users/kim/withdraw", "kim", map[string]string{"amount": "5"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/kim/transactions?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]models.TransactionRecord](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "15.00", history[0].Balance.StringFixed(2))

	rec = do(t, h, http.MethodGet, "/users/nobody/balance", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadInput(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/bets", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/bets", "", map[string]any{"group_id": "g", "min_stake": "1", "outcomes": []string{"a", "b"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "creator comes from the user header")

	rec = do(t, h, http.MethodGet, "/bets/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrInvalidArgument, http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrInvalidState, http.StatusConflict},
		{store.ErrConflict, http.StatusConflict},
		{store.ErrUnauthorized, http.StatusForbidden},
		{store.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{store.ErrInternal, http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(fmt.Errorf("wrapped: %w", tt.err)), tt.err.Error())
	}
}
