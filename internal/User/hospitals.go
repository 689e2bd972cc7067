package user

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

/* =================================================================================
						NEARBY HOSPITALS HANDLER
=================================================================================*/

// NearbyHospitalsHandler handles GET /hospitals/nearby?lat=&lon=&radius=
func NearbyHospitalsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query parameter 'lat' is required and must be a number"})
	}
	lon, err := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query parameter 'lon' is required and must be a number"})
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Coordinates out of range"})
	}

	radius := 0
	if radiusStr := c.QueryParam("radius"); radiusStr != "" {
		radius, err = strconv.Atoi(radiusStr)
		if err != nil || radius < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query parameter 'radius' must be a positive integer (meters)"})
		}
	}

	results, err := hospitals.NearbyHospitals(ctx, lat, lon, radius)
	if err != nil {
		log.Error().Err(err).Msg("Overpass hospital lookup failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to fetch hospitals. Please try again."})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"count":     len(results),
		"hospitals": results,
	})
}
