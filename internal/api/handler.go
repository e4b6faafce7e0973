package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-evac-shelters/internal/classifier"
	"github.com/mr1hm/go-evac-shelters/internal/geo"
	"github.com/mr1hm/go-evac-shelters/internal/ingestion"
	"github.com/mr1hm/go-evac-shelters/internal/models"
)

const maxLimit = 500

// Catalog serves the published shelter snapshot and triggers reloads.
type Catalog interface {
	Snapshot() *models.Snapshot
	Refresh(ctx context.Context) (*models.Snapshot, error)
}

type Handler struct {
	catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	return &Handler{
		catalog: catalog,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/api/shelters", h.getShelters)
	r.GET("/api/shelters/:id", h.getShelter)
	r.POST("/api/shelters/refresh", h.refresh)
	r.GET("/api/legend", h.legend)
	r.GET("/api/region", h.region)
}

func (h *Handler) getShelters(c *gin.Context) {
	snap := h.catalog.Snapshot()

	var category *models.Category
	if q := c.Query("category"); q != "" {
		cat, ok := models.ParseCategory(q)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown category: %s", q)})
			return
		}
		category = &cat
	}

	hazard := ""
	if q := c.Query("type"); q != "" {
		hazard = classifier.NormalizeType(q)
	}

	var origin *models.Coordinates
	if q := c.Query("near"); q != "" {
		coords, err := parseLatLon(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		origin = &coords
	}

	radius := 0.0
	if q := c.Query("radius_km"); q != "" {
		r, err := strconv.ParseFloat(q, 64)
		if err != nil || r <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius_km must be a positive number"})
			return
		}
		if origin == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius_km requires near"})
			return
		}
		radius = r
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLimit {
			limit = lim
		}
	}

	matches := make([]match, 0, snap.Len())
	if snap != nil {
		for i := range snap.Shelters {
			sh := &snap.Shelters[i]
			cat := classifier.Classify(sh.Types)
			if category != nil && cat != *category {
				continue
			}
			if hazard != "" && !sh.HasType(hazard) {
				continue
			}
			m := match{shelter: sh, category: cat}
			if origin != nil {
				d := geo.DistanceKm(*origin, sh.Coordinates())
				if radius > 0 && d > radius {
					continue
				}
				m.distanceKm = &d
			}
			matches = append(matches, m)
		}
	}

	if origin != nil {
		sort.SliceStable(matches, func(i, j int) bool {
			return *matches[i].distanceKm < *matches[j].distanceKm
		})
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	if snap != nil {
		c.Header("X-Snapshot-Generation", strconv.FormatUint(snap.Generation, 10))
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(matches))
}

func (h *Handler) getShelter(c *gin.Context) {
	sh, ok := h.catalog.Snapshot().Find(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "shelter not found"})
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toFeature(match{shelter: sh, category: classifier.Classify(sh.Types)}))
}

func (h *Handler) refresh(c *gin.Context) {
	snap, err := h.catalog.Refresh(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, refreshBody(snap, false))
	case errors.Is(err, ingestion.ErrSuperseded):
		c.JSON(http.StatusOK, refreshBody(snap, true))
	case errors.Is(err, ingestion.ErrSourceUnavailable):
		body := refreshBody(snap, false)
		body["error"] = err.Error()
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh cancelled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh shelters"})
	}
}

func refreshBody(snap *models.Snapshot, superseded bool) gin.H {
	body := gin.H{
		"generation": uint64(0),
		"source":     "",
		"shelters":   snap.Len(),
		"superseded": superseded,
	}
	if snap != nil {
		body["generation"] = snap.Generation
		body["source"] = snap.Source
	}
	return body
}

func (h *Handler) legend(c *gin.Context) {
	var shelters []models.Shelter
	if snap := h.catalog.Snapshot(); snap != nil {
		shelters = snap.Shelters
	}

	c.JSON(http.StatusOK, gin.H{
		"legend": classifier.Legend(),
		"counts": classifier.Count(shelters),
	})
}

// region centres the default viewport on an optional location fix. A missing
// or unusable fix is not an error.
func (h *Handler) region(c *gin.Context) {
	var fix *models.Coordinates
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr == nil && lonErr == nil {
		fix = &models.Coordinates{Latitude: lat, Longitude: lon}
	}

	c.JSON(http.StatusOK, geo.CenterOn(geo.DefaultRegion, fix))
}

func (h *Handler) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if snap := h.catalog.Snapshot(); snap != nil {
		body["generation"] = snap.Generation
		body["shelters"] = len(snap.Shelters)
	}
	c.JSON(http.StatusOK, body)
}

func parseLatLon(s string) (models.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coordinates{}, fmt.Errorf("near must be lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid latitude in near: %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid longitude in near: %q", parts[1])
	}
	if !geo.Valid(lat, lon) {
		return models.Coordinates{}, fmt.Errorf("near is out of range")
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}
