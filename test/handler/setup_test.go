package handler_test

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/sahzadahmad246/perfectceiling/internal/handler"
	"github.com/sahzadahmad246/perfectceiling/internal/middleware"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/jwt"
	"github.com/sahzadahmad246/perfectceiling/internal/ratelimit"
	"github.com/sahzadahmad246/perfectceiling/internal/repo"
	"github.com/sahzadahmad246/perfectceiling/internal/service"
	"github.com/sahzadahmad246/perfectceiling/test/testutil"
)

var testJWTSecret = []byte("test-secret")

func newSuffix() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

type testEnv struct {
	router     http.Handler
	db         *sql.DB
	quotations *repo.QuotationRepo
	audits     *repo.AuditRepo
	accesses   *repo.AccessRepo
	limiter    *ratelimit.Limiter
}

func setupRouter(t *testing.T) (*testEnv, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, cleanup := testutil.OpenTestDB(t)
	quotationRepo := repo.NewQuotationRepo(conn)
	auditRepo := repo.NewAuditRepo(conn)
	accessRepo := repo.NewAccessRepo(conn)

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	quotationService := service.NewQuotationService(quotationRepo, auditRepo)
	sharingService := service.NewSharingService(quotationRepo, auditRepo, accessRepo, limiter, "https://example.com")
	monitorService := service.NewMonitorService(auditRepo, accessRepo, limiter, 50)

	deps := handler.RouterDeps{
		Quotations: handler.NewQuotationHandler(quotationService),
		Shares:     handler.NewShareHandler(sharingService),
		Monitor:    handler.NewMonitorHandler(monitorService),
		JWTSecret:  testJWTSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	env := &testEnv{
		router:     engine,
		db:         conn,
		quotations: quotationRepo,
		audits:     auditRepo,
		accesses:   accessRepo,
		limiter:    limiter,
	}
	return env, cleanup
}

func staffToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.GenerateToken("staff-1", "staff@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return tok
}
