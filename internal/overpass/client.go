/*
Package overpass finds hospitals near a coordinate through the public
Overpass API over OpenStreetMap data.
*/
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://overpass-api.de"
	interpreterURL = "/api/interpreter"

	// DefaultRadiusMeters is used when the caller does not pass a radius.
	DefaultRadiusMeters = 5000
	MaxRadiusMeters     = 50000
)

// Hospital is one normalized result. Way results carry their computed
// center as the coordinate.
type Hospital struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Website   string  `json:"website,omitempty"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NearbyHospitals queries nodes and ways tagged amenity=hospital within
// radiusMeters of the coordinate. Elements without a usable coordinate
// are dropped.
func (c *Client) NearbyHospitals(ctx context.Context, lat, lon float64, radiusMeters int) ([]Hospital, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	if radiusMeters > MaxRadiusMeters {
		radiusMeters = MaxRadiusMeters
	}

	query := fmt.Sprintf(
		`[out:json];(node["amenity"="hospital"](around:%d,%f,%f);way["amenity"="hospital"](around:%d,%f,%f););out center;`,
		radiusMeters, lat, lon, radiusMeters, lat, lon,
	)
	endpoint := base + interpreterURL + "?data=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create overpass request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute overpass request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read overpass response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("overpass request failed with status %d", resp.StatusCode)
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	hospitals := make([]Hospital, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		elLat, elLon := el.Lat, el.Lon
		if elLat == 0 && elLon == 0 && el.Center != nil {
			elLat, elLon = el.Center.Lat, el.Center.Lon
		}
		if elLat == 0 && elLon == 0 {
			continue
		}
		name := el.Tags["name"]
		if name == "" {
			name = "Hospital"
		}
		hospitals = append(hospitals, Hospital{
			ID:        el.ID,
			Name:      name,
			Latitude:  elLat,
			Longitude: elLon,
			Address:   addressFromTags(el.Tags),
			Phone:     el.Tags["phone"],
			Website:   el.Tags["website"],
		})
	}
	return hospitals, nil
}

// addressFromTags assembles a display address from the addr:* tags,
// falling back to the bare address tag some elements carry.
func addressFromTags(tags map[string]string) string {
	parts := make([]string, 0, 3)
	if v := strings.TrimSpace(tags["addr:street"]); v != "" {
		if num := strings.TrimSpace(tags["addr:housenumber"]); num != "" {
			v = num + " " + v
		}
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(tags["addr:city"]); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(tags["addr:postcode"]); v != "" {
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return strings.TrimSpace(tags["address"])
	}
	return strings.Join(parts, ", ")
}
