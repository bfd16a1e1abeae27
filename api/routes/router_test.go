package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/loans"
	pkgAuth "github.com/angelmondragon/labinventory-backend/pkg/auth"
	"github.com/angelmondragon/labinventory-backend/pkg/auth/session"
	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/metrics"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "lab-test", ExpirationMinutes: 60}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCache) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryCache) IdempotencyKey(scope, id string) string { return "lab:idem:" + scope + ":" + id }

func (m *memoryCache) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryCache) RateLimitKey(scope string) string { return "lab:rl:" + scope }

func (m *memoryCache) Ping(context.Context) error { return nil }

type stubItemService struct{}

func (stubItemService) Create(ctx context.Context, actor access.Actor, input items.CreateInput) (*items.ItemDTO, error) {
	return &items.ItemDTO{ID: uuid.New(), Code: input.Code}, nil
}

func (stubItemService) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*items.ItemDTO, error) {
	return &items.ItemDTO{ID: id}, nil
}

func (stubItemService) List(ctx context.Context, actor access.Actor, filter items.ListFilter) ([]items.ItemDTO, error) {
	return []items.ItemDTO{{ID: uuid.New(), Code: "MIC-01"}}, nil
}

func (stubItemService) Update(ctx context.Context, actor access.Actor, id uuid.UUID, input items.UpdateInput) (*items.ItemDTO, error) {
	return &items.ItemDTO{ID: id}, nil
}

func (stubItemService) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	return nil
}

type countingLoanService struct {
	mu      sync.Mutex
	created int
}

func (s *countingLoanService) Create(ctx context.Context, actor access.Actor, input loans.CreateInput) (*loans.LoanDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return &loans.LoanDTO{ID: uuid.New(), UserID: actor.UserID, Status: enums.LoanStatusPending}, nil
}

func (s *countingLoanService) Transition(ctx context.Context, actor access.Actor, loanID uuid.UUID, to enums.LoanStatus) (*loans.LoanDTO, error) {
	return &loans.LoanDTO{ID: loanID, Status: to}, nil
}

func (s *countingLoanService) UpdateReturnDate(ctx context.Context, actor access.Actor, loanID uuid.UUID, returnDate *time.Time) (*loans.LoanDTO, error) {
	return &loans.LoanDTO{ID: loanID, ReturnDate: returnDate}, nil
}

func (s *countingLoanService) Get(ctx context.Context, actor access.Actor, loanID uuid.UUID) (*loans.LoanDTO, error) {
	return &loans.LoanDTO{ID: loanID}, nil
}

func (s *countingLoanService) List(ctx context.Context, actor access.Actor, status *enums.LoanStatus) ([]loans.LoanDTO, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: testJWT,
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:        time.Minute,
			LoginIPLimit:       2,
			LoginUsernameLimit: 5,
		},
	}
}

func newTestRouter(t *testing.T, loanSvc *countingLoanService) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		Config:   testConfig(),
		Database: stubPinger{},
		Cache:    newMemoryCache(),
		Sessions: stubSessionManager{},
		Metrics:  metrics.NewHTTPMetrics(reg),
		Gatherer: reg,
		Items:    stubItemService{},
		Loans:    loanSvc,
	})
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "tester",
		Role:     role,
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, &countingLoanService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsEndpointExposesHTTPSeries(t *testing.T) {
	router := newTestRouter(t, &countingLoanService{})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "/health/live") {
		t.Fatalf("expected route label in metrics output")
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router := newTestRouter(t, &countingLoanService{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestGuruCanListItems(t *testing.T) {
	router := newTestRouter(t, &countingLoanService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleGuru))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRejectGuru(t *testing.T) {
	router := newTestRouter(t, &countingLoanService{})
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/users", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleGuru))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestManualNotificationIsAdminOnly(t *testing.T) {
	router := newTestRouter(t, &countingLoanService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, enums.RoleGuru))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCreateLoanRequiresIdempotencyKey(t *testing.T) {
	loanSvc := &countingLoanService{}
	router := newTestRouter(t, loanSvc)
	body := `{"item_id":"` + uuid.NewString() + `","quantity":1,"borrow_date":"2024-03-01"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, enums.RoleGuru))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if loanSvc.created != 0 {
		t.Fatalf("expected no loan to be created")
	}
}

func TestCreateLoanReplaysWithSameKey(t *testing.T) {
	loanSvc := &countingLoanService{}
	router := newTestRouter(t, loanSvc)
	token := bearer(t, enums.RoleGuru)
	body := `{"item_id":"` + uuid.NewString() + `","quantity":1,"borrow_date":"2024-03-01"}`

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(body))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "loan-req-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d: %s", i, resp.Code, resp.Body.String())
		}
		if i == 0 {
			first = resp.Body.String()
		} else if resp.Body.String() != first {
			t.Fatalf("expected replayed body")
		}
	}
	if loanSvc.created != 1 {
		t.Fatalf("expected one create call, got %d", loanSvc.created)
	}
}

func TestLoginRateLimitedPerIP(t *testing.T) {
	router := newTestRouter(t, &countingLoanService{})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"guru1","password":"x"}`))
		req.RemoteAddr = "10.0.0.9:5555"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt got %d", last)
	}
}
