package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/dof-service/internal/api/http/handlers"
	"github.com/spec-kit/dof-service/internal/auth"
	"github.com/spec-kit/dof-service/internal/config"
	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/events"
	"github.com/spec-kit/dof-service/internal/observability"
	"github.com/spec-kit/dof-service/internal/repository/memory"
	"github.com/spec-kit/dof-service/internal/service"
)

type apiEnv struct {
	t      *testing.T
	app    *fiber.App
	store  *memory.Store
	org    *service.OrgService
	tokens *auth.TokenManager
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}, store.Repos().Users)
	org := service.NewOrgService(service.OrgDependencies{Store: store, Hasher: authService.HashPassword})
	notifications := service.NewNotificationService(service.NotificationDependencies{Store: store, Dispatcher: dispatcher})
	notifications.RegisterHandlers()
	cases := service.NewCaseService(service.CaseDependencies{Store: store, Dispatcher: dispatcher, Metrics: metrics})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("dof-service", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Cases:          handlers.NewCasesHandler(cases),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Org:            handlers.NewOrgHandler(org, service.NewStatisticsService(store)),
		Admin:          handlers.NewAdminHandler(org),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(authService.Tokens(), store.Repos().Users),
	})
	return &apiEnv{t: t, app: app, store: store, org: org, tokens: authService.Tokens()}
}

func (e *apiEnv) user(email string, role domain.Role) *domain.User {
	e.t.Helper()
	u, err := e.org.CreateUser(context.Background(), service.CreateUserInput{Name: email, Email: email, Password: "password1", Role: role})
	if err != nil {
		e.t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *apiEnv) token(u *domain.User) string {
	e.t.Helper()
	token, _, err := e.tokens.GenerateToken(u)
	if err != nil {
		e.t.Fatalf("token: %v", err)
	}
	return token
}

// do sends a request and decodes the JSON body into a generic map.
func (e *apiEnv) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			e.t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func errorCodeOf(body map[string]any) string {
	env, _ := body["error"].(map[string]any)
	code, _ := env["code"].(string)
	return code
}

func dataOf(body map[string]any) map[string]any {
	data, _ := body["data"].(map[string]any)
	return data
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.do(fiber.MethodGet, "/health/live", "", nil)
	if status != fiber.StatusOK || body["status"] != "alive" {
		t.Fatalf("live: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodGet, "/health/ready", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("ready: %d %v", status, body)
	}
	deps, _ := body["dependencies"].(map[string]any)
	if deps["postgres"] != "disabled" || deps["redis"] != "disabled" {
		t.Fatalf("dependencies %v", deps)
	}
	if status, _ := env.do(fiber.MethodGet, "/metrics", "", nil); status != fiber.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
}

func TestErrorEnvelope(t *testing.T) {
	env := newAPIEnv(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{name: "missing token", method: fiber.MethodGet, path: "/cases", status: fiber.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "garbage token", method: fiber.MethodGet, path: "/stats", token: "nope", status: fiber.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "unknown route", method: fiber.MethodGet, path: "/nowhere", status: fiber.StatusNotFound, code: "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(tc.method, tc.path, tc.token, nil)
			if status != tc.status || errorCodeOf(body) != tc.code {
				t.Fatalf("got %d %v", status, body)
			}
		})
	}
}

func TestMalformedPathIDReadsAsNotFound(t *testing.T) {
	env := newAPIEnv(t)
	admin := env.token(env.user("admin@example.com", domain.RoleAdmin))

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{fiber.MethodGet, "/cases/not-a-uuid", nil},
		{fiber.MethodGet, "/cases/42/actions", nil},
		{fiber.MethodPost, "/cases/not-a-uuid/transitions", map[string]string{"target": "SUBMITTED"}},
		{fiber.MethodPost, "/cases/not-a-uuid/comments", map[string]string{"comment": "hello"}},
		{fiber.MethodPost, "/notifications/not-a-uuid/read", nil},
		{fiber.MethodPut, "/admin/users/not-a-uuid/active", map[string]bool{"active": false}},
		{fiber.MethodPut, "/admin/departments/not-a-uuid/manager", map[string]any{"manager_id": nil}},
		{fiber.MethodPut, "/admin/directors/not-a-uuid/managers", map[string][]string{"manager_ids": {}}},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			status, body := env.do(tc.method, tc.path, admin, tc.body)
			if status != fiber.StatusNotFound || errorCodeOf(body) != "NOT_FOUND" {
				t.Fatalf("got %d %v", status, body)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	env := newAPIEnv(t)
	env.user("qm@example.com", domain.RoleQualityManager)

	status, body := env.do(fiber.MethodPost, "/auth/login", "", map[string]string{"email": "QM@example.com", "password": "password1"})
	if status != fiber.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	token, _ := dataOf(body)["token"].(string)
	if token == "" {
		t.Fatalf("no token in %v", body)
	}
	if status, body := env.do(fiber.MethodGet, "/notifications/unread-count", token, nil); status != fiber.StatusOK {
		t.Fatalf("token not accepted: %d %v", status, body)
	}

	status, body = env.do(fiber.MethodPost, "/auth/login", "", map[string]string{"email": "qm@example.com", "password": "wrong"})
	if status != fiber.StatusUnauthorized || errorCodeOf(body) != "UNAUTHORIZED" {
		t.Fatalf("wrong password: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodPost, "/auth/login", "", map[string]string{"email": "not-an-email"})
	if status != fiber.StatusBadRequest || errorCodeOf(body) != "VALIDATION_FAILED" {
		t.Fatalf("bad payload: %d %v", status, body)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newAPIEnv(t)
	admin := env.token(env.user("admin@example.com", domain.RoleAdmin))
	regularUser := env.user("user@example.com", domain.RoleRegularUser)
	regular := env.token(regularUser)

	status, body := env.do(fiber.MethodPost, "/admin/departments", regular, map[string]string{"name": "Kanyon"})
	if status != fiber.StatusForbidden || errorCodeOf(body) != "FORBIDDEN" {
		t.Fatalf("regular user: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodPost, "/admin/departments", admin, map[string]string{"name": "Kanyon"})
	if status != fiber.StatusCreated || dataOf(body)["name"] != "Kanyon" {
		t.Fatalf("admin: %d %v", status, body)
	}

	status, body = env.do(fiber.MethodPut, "/admin/settings/mail", admin, map[string]any{
		"host": "smtp.example.com", "port": 587, "use_tls": true, "password": "pw", "default_sender": "dof@example.com",
	})
	if status != fiber.StatusOK || dataOf(body)["password_set"] != true {
		t.Fatalf("save mail settings: %d %v", status, body)
	}
	if _, found := dataOf(body)["password"]; found {
		t.Fatal("password echoed back")
	}
	status, body = env.do(fiber.MethodPut, "/admin/settings/mail", admin, map[string]any{
		"host": "smtp.example.com", "port": 465, "use_tls": true, "use_ssl": true,
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("tls+ssl accepted: %d %v", status, body)
	}

	status, body = env.do(fiber.MethodPut, "/admin/users/"+regularUser.ID+"/active", admin, map[string]bool{"active": false})
	if status != fiber.StatusOK || dataOf(body)["active"] != false {
		t.Fatalf("deactivate: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodGet, "/stats", regular, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("inactive user token accepted: %d %v", status, body)
	}
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	creatorUser := env.user("creator@example.com", domain.RoleRegularUser)
	creator := env.token(creatorUser)
	qm := env.token(env.user("qm@example.com", domain.RoleQualityManager))
	stranger := env.token(env.user("stranger@example.com", domain.RoleRegularUser))

	status, body := env.do(fiber.MethodPost, "/cases", creator, map[string]any{"title": "Broken door", "description": "Lobby door does not close"})
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	created := dataOf(body)
	id, _ := created["id"].(string)
	if created["status"] != "DRAFT" || id == "" {
		t.Fatalf("created %v", created)
	}

	if status, body := env.do(fiber.MethodPost, "/cases", creator, map[string]any{"description": "no title"}); status != fiber.StatusBadRequest {
		t.Fatalf("missing title: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodPost, "/cases/"+id+"/transitions", creator, map[string]string{"target": "FLYING"})
	if status != fiber.StatusBadRequest || errorCodeOf(body) != "VALIDATION_FAILED" {
		t.Fatalf("unknown status: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodPost, "/cases/"+id+"/transitions", creator, map[string]string{"target": "CLOSED"})
	if status != fiber.StatusConflict || errorCodeOf(body) != "INVALID_TRANSITION" {
		t.Fatalf("draft to closed: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodPost, "/cases/"+id+"/transitions", qm, map[string]string{"target": "submitted"})
	if status != fiber.StatusForbidden || errorCodeOf(body) != "NOT_AUTHORIZED" {
		t.Fatalf("qm submitting someone else's draft: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodPost, "/cases/"+id+"/transitions", creator, map[string]string{"target": "SUBMITTED"})
	if status != fiber.StatusOK || dataOf(body)["status"] != "SUBMITTED" {
		t.Fatalf("submit: %d %v", status, body)
	}

	status, body = env.do(fiber.MethodGet, "/notifications/unread-count", qm, nil)
	if status != fiber.StatusOK || dataOf(body)["unread"] != float64(2) {
		t.Fatalf("qm unread: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodPost, "/notifications/read-all", qm, nil)
	if status != fiber.StatusOK || dataOf(body)["updated"] != float64(2) {
		t.Fatalf("read all: %d %v", status, body)
	}

	status, body = env.do(fiber.MethodPost, "/cases/"+id+"/comments", creator, map[string]string{"comment": "photos attached"})
	if status != fiber.StatusCreated {
		t.Fatalf("comment: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodGet, "/cases/"+id+"/actions", creator, nil)
	actions, _ := body["data"].([]any)
	if status != fiber.StatusOK || len(actions) != 2 {
		t.Fatalf("actions: %d %v", status, body)
	}

	if status, body := env.do(fiber.MethodGet, "/cases/"+id, stranger, nil); status != fiber.StatusForbidden || errorCodeOf(body) != "NOT_AUTHORIZED" {
		t.Fatalf("stranger sees case: %d %v", status, body)
	}
	status, body = env.do(fiber.MethodGet, "/cases?status=SUBMITTED", qm, nil)
	listed, _ := body["data"].([]any)
	if status != fiber.StatusOK || len(listed) != 1 {
		t.Fatalf("qm list: %d %v", status, body)
	}
}
