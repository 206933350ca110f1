package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

type GoogleMapsProvider struct {
	client *maps.Client
}

func NewGoogleMapsProvider(apiKey string) (*GoogleMapsProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleMapsProvider{
		client: client,
	}, nil
}

func (g *GoogleMapsProvider) GetRoute(ctx context.Context, request *RouteRequest) (*RouteResponse, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", request.Origin.Latitude, request.Origin.Longitude),
		Destination: fmt.Sprintf("%f,%f", request.Destination.Latitude, request.Destination.Longitude),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no route found")
	}

	route := routes[0]

	var distance float64
	var duration int
	for _, leg := range route.Legs {
		distance += float64(leg.Distance.Meters)
		duration += int(leg.Duration.Seconds())
	}

	decoded, err := route.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	points := make([]Location, len(decoded))
	for i, p := range decoded {
		points[i] = Location{Latitude: p.Lat, Longitude: p.Lng}
	}

	return &RouteResponse{
		Points:   points,
		Polyline: route.OverviewPolyline.Points,
		Distance: distance,
		Duration: duration,
	}, nil
}
