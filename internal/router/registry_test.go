package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingModule struct{}

func (pingModule) Register(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("mw")) })
}

func TestRegistryMountsModulesUnderAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	reg := NewRegistry(r)
	reg.Use(func(c *gin.Context) { c.Set("mw", "applied"); c.Next() })
	reg.Add(pingModule{})
	reg.RegisterAll()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "applied", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterAllTwiceDoesNotPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry(gin.New())
	reg.Add(pingModule{})
	reg.RegisterAll()
	assert.NotPanics(t, reg.RegisterAll)
}
