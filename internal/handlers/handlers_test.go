package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/handlers"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

func newHealthRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	healthHandler := handlers.NewHealthHandler(db, nil, nil, logger.New("error"))
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)
	return router, db
}

func TestHealthReturnsOK(t *testing.T) {
	router, db := newHealthRouter(t)
	defer func() { sqlDB, _ := db.DB(); sqlDB.Close() }()

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLiveReturnsOK(t *testing.T) {
	router, db := newHealthRouter(t)
	defer func() { sqlDB, _ := db.DB(); sqlDB.Close() }()

	req, _ := http.NewRequest(http.MethodGet, "/health/live", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyReturnsOKWhenDatabaseReachable(t *testing.T) {
	router, db := newHealthRouter(t)
	defer func() { sqlDB, _ := db.DB(); sqlDB.Close() }()

	req, _ := http.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyReturnsUnavailableWhenDatabaseClosed(t *testing.T) {
	router, db := newHealthRouter(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	req, _ := http.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
