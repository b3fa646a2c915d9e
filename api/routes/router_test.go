package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/internal/auth"
	"github.com/angelmondragon/localbiz-backend/internal/businesses"
	"github.com/angelmondragon/localbiz-backend/internal/notifications"
	"github.com/angelmondragon/localbiz-backend/internal/review"
	"github.com/angelmondragon/localbiz-backend/internal/users"
	pkgAuth "github.com/angelmondragon/localbiz-backend/pkg/auth"
	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/db/dbtest"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, enums.Role, auth.Credentials) (*auth.Grant, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubAuthService) Register(_ context.Context, role enums.Role, _ auth.Signup) (*auth.Grant, error) {
	return &auth.Grant{User: &users.Profile{ID: uuid.New(), Role: role}}, nil
}

func (stubAuthService) Refresh(context.Context, string, string) (*auth.Grant, error) {
	return &auth.Grant{}, nil
}

func (stubAuthService) Logout(context.Context, string) error { return nil }

type liveSessions struct{}

func (liveSessions) Live(context.Context, string) (bool, error) { return true, nil }

type stubBusinessService struct{}

func (stubBusinessService) StatusPage(context.Context, uuid.UUID) (*businesses.StatusView, error) {
	view := businesses.BuildStatusView(nil)
	return &view, nil
}

func (stubBusinessService) GetMine(context.Context, uuid.UUID) (*businesses.BusinessDTO, error) {
	return &businesses.BusinessDTO{}, nil
}

func (stubBusinessService) Register(_ context.Context, ownerID uuid.UUID, _ businesses.RegisterInput) (*businesses.BusinessDTO, error) {
	return &businesses.BusinessDTO{ID: uuid.New(), OwnerID: ownerID, Status: enums.BusinessStatusPending}, nil
}

func (stubBusinessService) Search(context.Context, businesses.SearchParams) (*businesses.SearchResult, error) {
	return &businesses.SearchResult{Items: []businesses.BusinessDTO{}}, nil
}

type countingReviewService struct {
	approvals int
}

func (s *countingReviewService) ListPending(context.Context) ([]businesses.BusinessDTO, error) {
	return []businesses.BusinessDTO{}, nil
}

func (s *countingReviewService) Approve(_ context.Context, _ review.Actor, id uuid.UUID) (*review.Result, error) {
	s.approvals++
	return &review.Result{Business: businesses.BusinessDTO{ID: id, Status: enums.BusinessStatusActive}, Pending: []businesses.BusinessDTO{}}, nil
}

func (s *countingReviewService) Decline(_ context.Context, _ review.Actor, id uuid.UUID, _ string) (*review.Result, error) {
	return &review.Result{Business: businesses.BusinessDTO{ID: id, Status: enums.BusinessStatusRejected}, Pending: []businesses.BusinessDTO{}}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubNotificationsService) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 0, nil }

type routerFixture struct {
	handler http.Handler
	cfg     *config.Config
	tokens  *pkgAuth.Issuer
	db      *gorm.DB
	review  *countingReviewService
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	return newRouterFixtureEnv(t, "test")
}

func newRouterFixtureEnv(t *testing.T, env string) routerFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{
		App: config.AppConfig{Env: env, RequestTimeout: 5 * time.Second},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "localbiz-test", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60},
	}
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	db := dbtest.Open(t)
	hook, err := notifications.NewHandler(notifications.NewRepository(db), metrics.NewNotificationMetrics(reg), logg)
	require.NoError(t, err)

	tokens, err := pkgAuth.NewIssuer(cfg.JWT)
	require.NoError(t, err)

	reviewSvc := &countingReviewService{}
	handler := NewRouter(
		cfg,
		logg,
		stubPinger{},
		redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})),
		reg,
		tokens,
		liveSessions{},
		stubAuthService{},
		stubBusinessService{},
		reviewSvc,
		stubNotificationsService{},
		hook,
	)
	return routerFixture{handler: handler, cfg: cfg, tokens: tokens, db: db, review: reviewSvc}
}

func (f routerFixture) token(t *testing.T, role enums.Role) string {
	t.Helper()
	token, _, err := f.tokens.Mint(pkgAuth.Principal{UserID: uuid.New(), Role: role, SessionID: uuid.NewString()})
	require.NoError(t, err)
	return token
}

func (f routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/api/v1/businesses?q=bakery", nil)).Code)
}

func TestOwnerRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/businesses/me/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/businesses/me/status", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.RoleOwner))
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestRegisterBusinessRequiresIdempotencyKey(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"name":"Corner Bakery","category":"bakery","address_line1":"1 Main St","city":"Tulsa","state":"OK","postal_code":"74103"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/businesses/me", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.RoleOwner))
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/businesses/me", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.RoleOwner))
	req.Header.Set("Idempotency-Key", "register-1")
	assert.Equal(t, http.StatusCreated, f.do(req).Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/businesses/pending", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.RoleOwner))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/businesses/pending", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.RoleAdmin))
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestAdminApproveReplaysWithSameKey(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t, enums.RoleAdmin)
	path := "/api/admin/v1/businesses/" + uuid.NewString() + "/approve"

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "approve-1")
		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 1, f.review.approvals)
}

func TestBusinessStatusHookInsertsEveryCall(t *testing.T) {
	f := newRouterFixture(t)
	businessID, ownerID := uuid.New(), uuid.New()
	body := fmt.Sprintf(`{"type":"UPDATE","table":"businesses","record":{"id":%q,"owner_id":%q,"name":"Corner Bakery","status":"active"},"old_record":null}`, businessID, ownerID)

	for i := 0; i < 2; i++ {
		rec := f.do(httptest.NewRequest(http.MethodPost, "/api/hooks/business-status", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Where("user_id = ?", ownerID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestAdminRegisterOnlyOutsideProduction(t *testing.T) {
	body := `{"first_name":"Root","last_name":"Admin","email":"admin@example.com","password":"Secret123"}`

	dev := newRouterFixture(t)
	rec := dev.do(httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	prod := newRouterFixtureEnv(t, config.AppEnvProd)
	rec = prod.do(httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
