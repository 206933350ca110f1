package maps

import "context"

// Provider is the routing collaborator: given two coordinates, return a
// route and an ETA. Nothing in the ride lifecycle depends on its output.
type Provider interface {
	GetRoute(ctx context.Context, request *RouteRequest) (*RouteResponse, error)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type RouteRequest struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
}

type RouteResponse struct {
	Points   []Location `json:"points"`
	Polyline string     `json:"polyline"`
	Distance float64    `json:"distance"` // meters
	Duration int        `json:"duration"` // seconds
}
