package models

// Location is a GeoJSON point. Coordinates are [longitude, latitude],
// matching the order MongoDB expects for 2dsphere indexes.
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,len=2"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
}

func NewLocation(lng, lat float64) Location {
	return Location{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) >= 1 {
		return l.Coordinates[0]
	}
	return 0
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) >= 2 {
		return l.Coordinates[1]
	}
	return 0
}

func (l Location) Valid() bool {
	if len(l.Coordinates) != 2 {
		return false
	}
	lng, lat := l.Coordinates[0], l.Coordinates[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// Route is a display-only polyline between pickup and dropoff, produced by
// the maps provider. It never influences lifecycle decisions.
type Route struct {
	Points   []Location `json:"points" bson:"points"`
	Polyline string     `json:"polyline,omitempty" bson:"polyline,omitempty"`
	Distance float64    `json:"distance" bson:"distance"` // meters
	Duration int        `json:"duration" bson:"duration"` // seconds
}
