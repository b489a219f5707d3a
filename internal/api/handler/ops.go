// Package handler provides HTTP handlers for the city air export API.
package handler

import (
	"net/http"
	"time"

	"github.com/cityair/cityair-export/internal/api/models"
	"github.com/cityair/cityair-export/internal/api/response"
	"github.com/cityair/cityair-export/internal/catalog"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	catalog   *catalog.Catalog
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, cat *catalog.Catalog) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		catalog:   cat,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The
// service is ready once the station directory is loaded.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	if h.catalog == nil || h.catalog.Len() == 0 {
		status = models.HealthStatusDegraded
	}
	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"stations": h.catalogLen(),
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

func (h *OpsHandler) catalogLen() int {
	if h.catalog == nil {
		return 0
	}
	return h.catalog.Len()
}
