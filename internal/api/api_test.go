package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wallet_ledger/internal/ledger"
	"wallet_ledger/internal/logging"
	"wallet_ledger/internal/middleware"
	"wallet_ledger/internal/store/memory"
	"wallet_ledger/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	mr     *miniredis.Miniredis
	store  *memory.Store
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logging.Discard()
	store := memory.New()
	router, err := NewRouter(Deps{
		Users:     store,
		Ledger:    ledger.NewEngine(store, ledger.WithLogger(log), ledger.WithBackoff(0)),
		Blacklist: utils.NewTokenBlacklist(rdb),
		Redis:     rdb,
		Probes: map[string]Pinger{
			"database": store,
			"redis":    PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
		JWTSecret:      testSecret,
		JWTTTL:         time.Hour,
		LoginRateLimit: 5,
		Log:            log,
	})
	require.NoError(t, err)
	return &testServer{router: router, mr: mr, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// register signs up a fresh user and logs them in
func (s *testServer) register(t *testing.T) string {
	t.Helper()
	email := uuid.NewString() + "@example.com"
	w, _ := s.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "Test User", "email": email, "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func walletFrom(t *testing.T, env envelope) WalletResponse {
	t.Helper()
	var w WalletResponse
	require.NoError(t, json.Unmarshal(env.Data, &w))
	return w
}

func TestSignup(t *testing.T) {
	s := newTestServer(t)
	body := gin.H{"name": "Ada", "email": "Ada@Example.com", "password": "password123"}

	w, env := s.do(t, http.MethodPost, "/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	var data struct {
		User UserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ada@example.com", data.User.Email)
	assert.NotContains(t, string(env.Data), "password")

	wallet, err := s.store.Wallet(context.Background(), data.User.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())

	w, env = s.do(t, http.MethodPost, "/auth/signup", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already exists", env.Message)

	for _, bad := range []gin.H{
		{"name": "Ada", "email": "not-an-email", "password": "password123"},
		{"name": "Ada", "email": "ada2@example.com", "password": "short"},
		{"email": "ada3@example.com", "password": "password123"},
	} {
		w, env = s.do(t, http.MethodPost, "/auth/signup", "", bad)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "Bo", "email": "bo@example.com", "password": "password123"})

	w, env := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "bo@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", env.Message)

	w, env = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "nobody@example.com", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", env.Message)

	w, env = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "BO@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "token")
}

func TestLogin_RateLimited(t *testing.T) {
	s := newTestServer(t)
	body := gin.H{"email": "flood@example.com", "password": "whatever1"}
	for i := 0; i < 5; i++ {
		w, _ := s.do(t, http.MethodPost, "/auth/login", "", body)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	w, env := s.do(t, http.MethodPost, "/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.Success)

	s.mr.FastForward(time.Minute + time.Second)
	w, _ = s.do(t, http.MethodPost, "/auth/login", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWallet_CreditDebitHistory(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)

	w, env := s.do(t, http.MethodGet, "/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0.00", walletFrom(t, env).Balance.String())

	w, env = s.do(t, http.MethodPost, "/wallet/credit", token, gin.H{"amount": 100})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Wallet credited successfully", env.Message)
	assert.Equal(t, "100.00", walletFrom(t, env).Balance.String())

	w, env = s.do(t, http.MethodPost, "/wallet/debit", token, gin.H{"amount": "30"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Wallet debited successfully", env.Message)
	assert.Equal(t, "70.00", walletFrom(t, env).Balance.String())

	w, env = s.do(t, http.MethodGet, "/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Wallet balance fetched successfully", env.Message)
	assert.Equal(t, "70.00", walletFrom(t, env).Balance.String())

	w, env = s.do(t, http.MethodGet, "/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Transaction history fetched successfully", env.Message)
	var txs []TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "debit", string(txs[0].Type))
	assert.Equal(t, "30.00", txs[0].Amount.String())
	assert.Equal(t, "credit", string(txs[1].Type))
	assert.Equal(t, "100.00", txs[1].Amount.String())
}

func TestWallet_EmptyHistoryIsArray(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)
	w, env := s.do(t, http.MethodGet, "/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestWallet_InsufficientFunds(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)
	s.do(t, http.MethodPost, "/wallet/credit", token, gin.H{"amount": 50})

	w, env := s.do(t, http.MethodPost, "/wallet/debit", token, gin.H{"amount": 75})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, ledger.ReasonInsufficientFunds, env.Reason)

	_, env = s.do(t, http.MethodGet, "/wallet/balance", token, nil)
	assert.Equal(t, "50.00", walletFrom(t, env).Balance.String())
	_, env = s.do(t, http.MethodGet, "/wallet/transactions", token, nil)
	var txs []TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &txs))
	assert.Len(t, txs, 1)
}

func TestWallet_AmountValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)

	for name, body := range map[string]any{
		"missing":     gin.H{},
		"null":        `{"amount": null}`,
		"empty body":  "",
		"text":        gin.H{"amount": "abc"},
		"negative":    gin.H{"amount": -5},
		"zero":        gin.H{"amount": 0},
		"too precise": gin.H{"amount": 1.234},
		"bool":        `{"amount": true}`,
		"huge exp":    `{"amount": 1e7000000}`,
		"too large":   `{"amount": 1e20}`,
	} {
		w, env := s.do(t, http.MethodPost, "/wallet/credit", token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Equal(t, ledger.ReasonInvalidAmount, env.Reason, name)
	}

	w, _ := s.do(t, http.MethodPost, "/wallet/credit", token, `{"amount": [1`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(t, http.MethodPost, "/wallet/credit", token, gin.H{"amount": "10.5"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10.50", walletFrom(t, env).Balance.String())
}

func TestWallet_CreditBeyondMaxBalance(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)
	w, _ := s.do(t, http.MethodPost, "/wallet/credit", token, `{"amount": "999999999999999999.99"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPost, "/wallet/credit", token, gin.H{"amount": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, ledger.ReasonBalanceOutOfRange, env.Reason)

	w, env = s.do(t, http.MethodGet, "/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "999999999999999999.99", walletFrom(t, env).Balance.String())
}

func TestWallet_ConcurrentDebits(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)
	s.do(t, http.MethodPost, "/wallet/credit", token, gin.H{"amount": 100})

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i, amount := range []int{70, 60} {
		wg.Add(1)
		go func(i, amount int) {
			defer wg.Done()
			w, _ := s.do(t, http.MethodPost, "/wallet/debit", token, gin.H{"amount": amount})
			codes[i] = w.Code
		}(i, amount)
	}
	wg.Wait()
	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusUnprocessableEntity}, codes)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)

	req := func(header string) (int, string) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, r)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		return w.Code, env.Message
	}

	code, msg := req("")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "No token provided", msg)

	code, msg = req("Token " + token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid authorization format", msg)

	code, msg = req("Bearer not.a.jwt")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Invalid or expired token", msg)

	expired, err := utils.GenerateJWT(uuid.NewString(), testSecret, -time.Minute)
	require.NoError(t, err)
	code, _ = req("Bearer " + expired)
	assert.Equal(t, http.StatusForbidden, code)

	ghost, err := utils.GenerateJWT(uuid.NewString(), testSecret, time.Hour)
	require.NoError(t, err)
	code, msg = req("Bearer " + ghost)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found or no longer exists", msg)

	code, _ = req("Bearer " + token)
	assert.Equal(t, http.StatusOK, code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t)

	w, env := s.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Authorization header missing", env.Message)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid token format")

	w, env = s.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logout successful", env.Message)

	w, env = s.do(t, http.MethodGet, "/wallet/balance", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token blacklisted, please login", env.Message)

	// The entry lives only as long as the token would have.
	var revoked []string
	for _, k := range s.mr.Keys() {
		if strings.HasPrefix(k, "blacklist:") {
			revoked = append(revoked, k)
		}
	}
	require.Len(t, revoked, 1)
	ttl := s.mr.TTL(revoked[0])
	assert.True(t, ttl > 0 && ttl <= time.Hour, "ttl %s", ttl)
}

func TestLogout_UnusableTokensWriteNothing(t *testing.T) {
	s := newTestServer(t)
	forged, err := utils.GenerateJWT(uuid.NewString(), "another-secret", 100*24*time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateJWT(uuid.NewString(), testSecret, -time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage": "not-a-jwt",
		"junk":    strings.Repeat("x", 512),
		"forged":  forged,
		"expired": expired,
	} {
		w, env := s.do(t, http.MethodPost, "/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, w.Code, name)
		assert.Equal(t, "Logout successful", env.Message, name)
	}
	assert.Empty(t, s.mr.Keys())
}

func TestAPIDocs_CoverEveryRoute(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocsPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), DocsPath+"/openapi.json")

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocsPath+"/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		OpenAPI string                                `json:"openapi"`
		Paths   map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.1", doc.OpenAPI)

	for _, route := range s.router.Routes() {
		if strings.HasPrefix(route.Path, DocsPath) {
			continue
		}
		ops, ok := doc.Paths[route.Path]
		if assert.True(t, ok, "undocumented path %s", route.Path) {
			assert.Contains(t, ops, strings.ToLower(route.Method), "undocumented %s %s", route.Method, route.Path)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	s.mr.Close()
	w, env = s.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, string(env.Data), `"redis":"down"`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(ledger.ReasonInvalidAmount))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(ledger.ReasonInsufficientFunds))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(ledger.ReasonBalanceOutOfRange))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ledger.ReasonWalletNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(ledger.ReasonTransactionAborted))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(ledger.ReasonStoreUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(ledger.ReasonCanceled))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ledger.ReasonInternal))
}
