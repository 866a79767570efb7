package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/api/http/handlers"
	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/config"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/observability"
	"github.com/spec-kit/peer-review-service/internal/ratelimit"
	"github.com/spec-kit/peer-review-service/internal/repository"
	"github.com/spec-kit/peer-review-service/internal/service"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Pagination service.Pagination `json:"pagination"`
	Error      struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testServer struct {
	app     *fiber.App
	store   *repository.MemoryStore
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{
		App: config.AppConfig{Env: "test", PublicURL: "http://localhost:8080"},
		Auth: config.AuthConfig{
			JWTSecret:              "test-secret",
			AccessTokenTTLMinutes:  60,
			VerificationTTLMinutes: 60,
			BcryptCost:             4,
		},
	}

	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	metrics.Subscribe(dispatcher)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	revocations := auth.NewRedisRevocationStore(client)

	reviewSvc := service.NewReviewService(service.ReviewDependencies{
		IdentityRepo: store.Identities(),
		ReviewRepo:   store.Reviews(),
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	identitySvc := service.NewIdentityService(service.IdentityDependencies{
		IdentityRepo:  store.Identities(),
		ReviewRepo:    store.Reviews(),
		ReviewService: reviewSvc,
		Logger:        logger,
	})
	adminSvc := service.NewAdminService(service.AdminDependencies{
		IdentityRepo:  store.Identities(),
		ReviewRepo:    store.Reviews(),
		ReviewService: reviewSvc,
		Dispatcher:    dispatcher,
		Logger:        logger,
		BcryptCost:    cfg.Auth.BcryptCost,
	})
	authSvc := service.NewAuthService(cfg, service.AuthDependencies{
		IdentityRepo: store.Identities(),
		Tokens:       tokens,
		Revocations:  revocations,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	require.NoError(t, authSvc.EnsureAdmin(ctx, config.AdminSeedConfig{Email: "admin@uni.edu", Name: "Admin", Password: "adminpass"}))

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler("peer-review-service", "test", "memory", store, nil),
		Auth:            handlers.NewAuthHandler(authSvc),
		Reviews:         handlers.NewReviewsHandler(reviewSvc),
		Identities:      handlers.NewIdentitiesHandler(identitySvc),
		Admin:           handlers.NewAdminHandler(adminSvc, reviewSvc),
		AuthMiddleware:  auth.NewAuthMiddleware(tokens, store.Identities(), revocations, logger),
		Metrics:         metrics,
		RegisterLimiter: ratelimit.Middleware("register", ratelimit.NewLocalLimiter(3, time.Minute), nil, metrics, logger),
	})
	return &testServer{app: app, store: store, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) register(t *testing.T, name, email string) {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name":             name,
		"email":            email,
		"password":         "secret123",
		"confirm_password": "secret123",
		"faculty":          "Engineering",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error.Message)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status, env.Error.Code)
	var data struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Auth.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestReviewLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@uni.edu")
	s.register(t, "Bob", "bob@uni.edu")
	alice := s.login(t, "alice@uni.edu", "secret123")
	bob := s.login(t, "bob@uni.edu", "secret123")

	review := map[string]any{
		"reviewed_email": "bob@uni.edu",
		"rating":         5,
		"comment":        "Carried the whole database design.",
		"project_type":   "course_project",
	}

	status, env := s.do(t, fiber.MethodPost, "/reviews", "", review)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)

	status, env = s.do(t, fiber.MethodPost, "/reviews", alice, review)
	require.Equal(t, fiber.StatusCreated, status, env.Error.Message)
	var created struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "persisted", created.State)

	status, env = s.do(t, fiber.MethodPost, "/reviews", alice, review)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, apperrors.CodeDuplicateReview, env.Error.Code)

	review["reviewed_email"] = "alice@uni.edu"
	status, env = s.do(t, fiber.MethodPost, "/reviews", alice, review)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, apperrors.CodeSelfReview, env.Error.Code)

	review["reviewed_email"] = "ghost@uni.edu"
	status, env = s.do(t, fiber.MethodPost, "/reviews", alice, review)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeSubjectNotFound, env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/reviews", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, env.Pagination.Total)
	var feed []struct {
		ReviewerName string `json:"reviewer_name"`
		ReviewedName string `json:"reviewed_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "Alice", feed[0].ReviewerName)
	assert.Equal(t, "Bob", feed[0].ReviewedName)

	edit := map[string]any{"rating": 3, "comment": "Good work but late on the report."}
	status, env = s.do(t, fiber.MethodPut, "/reviews/"+created.ID, bob, edit)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, env.Error.Code)

	status, env = s.do(t, fiber.MethodPut, "/reviews/"+created.ID, alice, edit)
	require.Equal(t, fiber.StatusOK, status)
	var edited struct {
		Rating int    `json:"rating"`
		State  string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &edited))
	assert.Equal(t, 3, edited.Rating)
	assert.Equal(t, "edited", edited.State)

	status, env = s.do(t, fiber.MethodGet, "/identities/search?q=bob", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var found []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.Len(t, found, 1)

	status, env = s.do(t, fiber.MethodGet, "/identities/"+found[0].ID, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var profile struct {
		Stats struct {
			Count         int64            `json:"count"`
			AverageRating float64          `json:"average_rating"`
			Distribution  map[string]int64 `json:"distribution"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.EqualValues(t, 1, profile.Stats.Count)
	assert.Equal(t, 3.0, profile.Stats.AverageRating)
	assert.EqualValues(t, 1, profile.Stats.Distribution["3"])

	status, _ = s.do(t, fiber.MethodDelete, "/reviews/"+created.ID, alice, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, env = s.do(t, fiber.MethodGet, "/reviews/"+created.ID, "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@uni.edu")
	alice := s.login(t, "alice@uni.edu", "secret123")

	status, env := s.do(t, fiber.MethodPost, "/reviews", alice, map[string]any{
		"reviewed_email": "not-an-email",
		"rating":         9,
		"comment":        "ok",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)
	assert.Contains(t, env.Error.Details, "reviewed_email")
	assert.Contains(t, env.Error.Details, "rating")

	status, env = s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Carl", "email": "carl@uni.edu", "password": "secret123", "confirm_password": "secret124",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, env.Error.Details, "confirm_password")

	status, env = s.do(t, fiber.MethodGet, "/reviews?rating=8", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)
}

func TestRegisterIsRateLimited(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"name": "X", "email": "bad", "password": "1", "confirm_password": "1"}
	for i := 0; i < 3; i++ {
		status, _ := s.do(t, fiber.MethodPost, "/auth/register", "", body)
		assert.Equal(t, fiber.StatusBadRequest, status)
	}
	status, env := s.do(t, fiber.MethodPost, "/auth/register", "", body)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, apperrors.CodeRateLimited, env.Error.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@uni.edu")
	token := s.login(t, "alice@uni.edu", "secret123")

	status, _ := s.do(t, fiber.MethodGet, "/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, fiber.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, fiber.StatusNoContent, status)

	status, env := s.do(t, fiber.MethodGet, "/profile", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@uni.edu")
	s.register(t, "Bob", "bob@uni.edu")
	alice := s.login(t, "alice@uni.edu", "secret123")
	admin := s.login(t, "admin@uni.edu", "adminpass")

	status, _ := s.do(t, fiber.MethodPost, "/reviews", alice, map[string]any{
		"reviewed_email": "bob@uni.edu", "rating": 4, "comment": "Helpful during the lab sessions.",
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, env := s.do(t, fiber.MethodGet, "/admin/dashboard", alice, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/admin/dashboard", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var dash struct {
		IdentityCount      int64 `json:"identity_count"`
		ReviewCount        int64 `json:"review_count"`
		AdministratorCount int64 `json:"administrator_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.EqualValues(t, 3, dash.IdentityCount)
	assert.EqualValues(t, 1, dash.ReviewCount)
	assert.EqualValues(t, 1, dash.AdministratorCount)

	status, env = s.do(t, fiber.MethodGet, "/admin/identities?search=bob", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var rows []struct {
		ID              string `json:"id"`
		ReviewsReceived int64  `json:"reviews_received"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0].ReviewsReceived)

	status, _ = s.do(t, fiber.MethodGet, "/admin/identities?role=owner", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = s.do(t, fiber.MethodGet, "/admin/reviews", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, env.Pagination.Total)
	assert.Equal(t, 15, env.Pagination.PerPage)

	status, env = s.do(t, fiber.MethodDelete, "/admin/identities/"+rows[0].ID, admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var removed struct {
		ReviewsRemoved int64 `json:"reviews_removed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &removed))
	assert.EqualValues(t, 1, removed.ReviewsRemoved)

	count, err := s.store.Reviews().Count(context.Background(), repository.ReviewFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)
}
