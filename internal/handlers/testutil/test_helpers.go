package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/api"
	"github.com/steamsedu/steams/internal/app"
	iauth "github.com/steamsedu/steams/internal/auth"
	sharedtestutil "github.com/steamsedu/steams/internal/database/testutil"
	"github.com/steamsedu/steams/internal/middleware"
	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/internal/push"
	"github.com/steamsedu/steams/internal/realtime"
	"github.com/steamsedu/steams/internal/store"
	"github.com/steamsedu/steams/pkg/response"
)

// VAPIDPublicKey is the public key served by test environments.
const VAPIDPublicKey = "BPublicTestKey"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Rooms  *realtime.Registry
	Push   *FakeSender
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: jwtSecret, Issuer: "test-suite", TTL: time.Hour},
		},
		Push: app.PushConfig{Enabled: true, VAPIDPublicKey: VAPIDPublicKey},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}

	rooms := realtime.NewRegistry()
	t.Cleanup(rooms.Close)

	subscriptions, err := store.NewSubscriptionStore(db)
	require.NoError(t, err)
	sender := &FakeSender{failures: map[string]error{}}
	dispatcher, err := push.NewDispatcher(subscriptions, sender, push.WithTimeout(time.Second))
	require.NoError(t, err)

	router, err := api.NewRouter(db, jwtSvc, cfg, rooms, dispatcher, middleware.NewMemoryRateStore(context.Background(), time.Minute))
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Rooms:  rooms,
		Push:   sender,
	}
}

// CreateUser inserts a user with a random id and returns the record.
func (e *Env) CreateUser(name string) *models.User {
	e.T.Helper()

	id := uuid.NewString()
	user := &models.User{
		BaseModel: models.BaseModel{ID: id},
		Name:      name,
		Email:     id + "@example.com",
		Type:      models.UserTypeChild,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Token issues an access token for user.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		UserType: user.Type,
	})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// FakeSender is a push.Sender that records deliveries in memory.
type FakeSender struct {
	mu       sync.Mutex
	sent     []push.Subscription
	failures map[string]error
}

// Fail makes every delivery to endpoint return err.
func (f *FakeSender) Fail(endpoint string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[endpoint] = err
}

// Send implements push.Sender.
func (f *FakeSender) Send(_ context.Context, sub push.Subscription, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[sub.Endpoint]; err != nil {
		return err
	}
	f.sent = append(f.sent, sub)
	return nil
}

// Delivered returns the endpoints that accepted a payload.
func (f *FakeSender) Delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, sub := range f.sent {
		out = append(out, sub.Endpoint)
	}
	return out
}
