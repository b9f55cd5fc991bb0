package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/intervia/intervia/internal/api"
	iauth "github.com/intervia/intervia/internal/auth"
	dbtestutil "github.com/intervia/intervia/internal/database/testutil"
	"github.com/intervia/intervia/internal/services"
	"github.com/intervia/intervia/pkg/mail"
)

// CapturingMailer records every message instead of delivering it.
type CapturingMailer struct {
	Messages []mail.Message
	Fail     error
}

func (m *CapturingMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// Env bundles a fully wired router with the fakes the tests poke at.
type Env struct {
	DB     *gorm.DB
	JWT    *iauth.JWTService
	Mailer *CapturingMailer
	Router *gin.Engine
}

// NewEnv builds an API environment on an in-memory database.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := dbtestutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "handler-suite-super-secret-key!!",
		Issuer: "handler-suite",
	})
	require.NoError(t, err)

	mailer := &CapturingMailer{}

	authSvc, err := services.NewAuthService(db, jwtSvc, mailer)
	require.NoError(t, err)

	resetSvc, err := services.NewPasswordResetService(db, mailer)
	require.NoError(t, err)

	router, err := api.NewRouter(api.RouterConfig{
		DB:             db,
		JWT:            jwtSvc,
		Auth:           authSvc,
		PasswordResets: resetSvc,
	})
	require.NoError(t, err)

	return &Env{DB: db, JWT: jwtSvc, Mailer: mailer, Router: router}
}

// Request performs a JSON request against the router and returns the recorder.
func (e *Env) Request(t *testing.T, method, path string, body interface{}, headers ...http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, h := range headers {
		for key, values := range h {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
	}

	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

// Envelope mirrors the wire format every endpoint responds with.
type Envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Decode parses the recorded body into the standard envelope.
func Decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
