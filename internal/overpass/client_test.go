package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNearbyHospitalsParsesNodesAndWays(t *testing.T) {
	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.Query().Get("data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[
			{"id":1,"lat":52.52,"lon":13.40,"tags":{"name":"Charite","addr:street":"Chariteplatz","addr:housenumber":"1","addr:city":"Berlin","phone":"+49 30 450 50"}},
			{"id":2,"center":{"lat":52.50,"lon":13.39},"tags":{"name":"Vivantes","website":"https://example.org"}},
			{"id":3,"tags":{"name":"No Coordinates"}}
		]}`))
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	hospitals, err := client.NearbyHospitals(context.Background(), 52.52, 13.40, 3000)
	if err != nil {
		t.Fatalf("nearby hospitals: %v", err)
	}

	if len(hospitals) != 2 {
		t.Fatalf("expected 2 hospitals after dropping the coordinate-less one, got %d", len(hospitals))
	}
	if hospitals[0].Name != "Charite" || hospitals[0].Latitude != 52.52 {
		t.Errorf("node result malformed: %+v", hospitals[0])
	}
	if hospitals[0].Address != "1 Chariteplatz, Berlin" {
		t.Errorf("unexpected address %q", hospitals[0].Address)
	}
	if hospitals[1].Latitude != 52.50 || hospitals[1].Longitude != 13.39 {
		t.Errorf("way result did not use its center: %+v", hospitals[1])
	}

	if !strings.Contains(capturedQuery, `node["amenity"="hospital"](around:3000,`) {
		t.Errorf("query missing node clause: %s", capturedQuery)
	}
	if !strings.Contains(capturedQuery, `way["amenity"="hospital"]`) {
		t.Errorf("query missing way clause: %s", capturedQuery)
	}
}

func TestNearbyHospitalsDefaultsAndCapsRadius(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("data"))
		_, _ = w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := client.NearbyHospitals(context.Background(), 1, 2, 0); err != nil {
		t.Fatalf("default radius: %v", err)
	}
	if _, err := client.NearbyHospitals(context.Background(), 1, 2, 9999999); err != nil {
		t.Fatalf("capped radius: %v", err)
	}

	if !strings.Contains(queries[0], "around:5000,") {
		t.Errorf("expected default radius 5000, got %s", queries[0])
	}
	if !strings.Contains(queries[1], "around:50000,") {
		t.Errorf("expected radius cap 50000, got %s", queries[1])
	}
}

func TestNearbyHospitalsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too busy", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := client.NearbyHospitals(context.Background(), 1, 2, 1000); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}
