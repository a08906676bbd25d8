package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(ctx *gin.Context) { ctx.Set(RequestIDKey, "rid-1") })
	r.POST("/novels", func(ctx *gin.Context) { Created(ctx, gin.H{"id": 3}) })
	r.GET("/boom", func(ctx *gin.Context) { Error(ctx, http.StatusInternalServerError, 50021, "failed to count novels") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/novels", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"code":0,"message":"created","data":{"id":3},"request_id":"rid-1"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":50021,"message":"failed to count novels","request_id":"rid-1"}`, rec.Body.String())
}
