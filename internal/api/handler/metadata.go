package handler

import (
	"net/http"

	"github.com/cityair/cityair-export/internal/api/models"
	"github.com/cityair/cityair-export/internal/api/response"
	"github.com/cityair/cityair-export/internal/catalog"
	"github.com/cityair/cityair-export/internal/pollutant"
)

// MetadataHandler serves the selectable cities and pollutants.
type MetadataHandler struct {
	catalog    *catalog.Catalog
	pollutants *pollutant.Registry
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(cat *catalog.Catalog, reg *pollutant.Registry) *MetadataHandler {
	return &MetadataHandler{
		catalog:    cat,
		pollutants: reg,
	}
}

// ListCities handles GET /v1/metadata/cities - distinct cities from the
// station directory, sorted by name.
func (h *MetadataHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	infos := h.catalog.Cities()

	cities := make([]models.City, 0, len(infos))
	for _, info := range infos {
		cities = append(cities, models.City{City: info.City, State: info.State})
	}

	response.JSON(w, r, http.StatusOK, models.CityList{Cities: cities})
}

// ListPollutants handles GET /v1/metadata/pollutants - the label-to-code
// mapping of the pollutant allow-list.
func (h *MetadataHandler) ListPollutants(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.PollutantList{
		Pollutants: h.pollutants.Labels(),
	})
}
