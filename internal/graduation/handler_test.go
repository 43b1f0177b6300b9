package graduation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/liquidity"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHandler_TriggerGraduationCheck(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	svc.On("TriggerGraduationCheck", mock.Anything, uint(1)).Return(&models.PoolMigration{
		TokenID:        1,
		CompletedSteps: pq.StringArray{StepMetadataCreated},
	}, nil)
	svc.On("TriggerGraduationCheck", mock.Anything, uint(2)).Return(nil, nil)
	svc.On("TriggerGraduationCheck", mock.Anything, uint(3)).Return(&models.PoolMigration{TokenID: 3, Failed: true}, apperrors.ErrProtocol)

	w := serve(router, http.MethodPost, "/api/v1/tokens/1/graduation")
	assert.Equal(t, http.StatusOK, w.Code)
	var m models.PoolMigration
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, []string{StepMetadataCreated}, []string(m.CompletedSteps))

	w = serve(router, http.MethodPost, "/api/v1/tokens/2/graduation")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"graduating":false`)

	w = serve(router, http.MethodPost, "/api/v1/tokens/3/graduation")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandler_GetMigrationAndPoolFees(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	svc.On("Migration", mock.Anything, uint(1)).Return(&models.PoolMigration{TokenID: 1, PoolAddress: "pool-1"}, nil)
	svc.On("Migration", mock.Anything, uint(2)).Return(nil, apperrors.ErrTokenNotFound)
	svc.On("PoolFeeMetrics", mock.Anything, uint(1)).Return(&liquidity.PoolFeeMetrics{
		PoolAddress:  "pool-1",
		TotalFeesSol: decimal.RequireFromString("1.5"),
	}, nil)

	w := serve(router, http.MethodGet, "/api/v1/tokens/1/graduation")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pool-1")

	w = serve(router, http.MethodGet, "/api/v1/tokens/2/graduation")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodGet, "/api/v1/tokens/1/pool-fees")
	assert.Equal(t, http.StatusOK, w.Code)
	var metrics liquidity.PoolFeeMetrics
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	assert.True(t, metrics.TotalFeesSol.Equal(decimal.RequireFromString("1.5")))

	w = serve(router, http.MethodGet, "/api/v1/tokens/x/pool-fees")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
