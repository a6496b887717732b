package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hiring-gateway/internal/middleware"
	"hiring-gateway/internal/warehouse"
)

type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Service   string                   `json:"service"`
	Version   string                   `json:"version"`
	Backends  map[string]BackendStatus `json:"backends"`
}

type BackendStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthController struct {
	db        *gorm.DB
	warehouse warehouse.Warehouse
	version   string
	timeout   time.Duration
}

func NewHealthController(db *gorm.DB, wh warehouse.Warehouse, version string) *HealthController {
	return &HealthController{
		db:        db,
		warehouse: wh,
		version:   version,
		timeout:   5 * time.Second,
	}
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), hc.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   "hiring-gateway",
		Version:   hc.version,
		Backends: map[string]BackendStatus{
			"metadata":  hc.check("metadata", hc.pingDatabase(ctx)),
			"warehouse": hc.check("warehouse", hc.warehouse.Ping(ctx)),
		},
	}
	for _, b := range resp.Backends {
		if b.Status != "connected" {
			resp.Status = "unhealthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, resp)
}

func (hc *HealthController) pingDatabase(ctx context.Context) error {
	sqlDB, err := hc.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (hc *HealthController) check(backend string, err error) BackendStatus {
	middleware.UpdateBackendHealth(backend, err == nil)
	if err != nil {
		return BackendStatus{Status: "disconnected", Message: err.Error()}
	}
	return BackendStatus{Status: "connected"}
}
