package models

import (
	"encoding/json"
	"fmt"
)

// Point is a GeoJSON-style position. The wire shape is
// {"type":"Point","coordinates":[longitude,latitude]} — longitude first.
type Point struct {
	Lng float64
	Lat float64
}

type pointJSON struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{
		Type:        "Point",
		Coordinates: [2]float64{p.Lng, p.Lat},
	})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "Point" {
		return fmt.Errorf("unsupported geometry type %q", raw.Type)
	}
	p.Lng = raw.Coordinates[0]
	p.Lat = raw.Coordinates[1]
	return p.Validate()
}

// Validate checks coordinate ranges.
func (p Point) Validate() error {
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", p.Lat)
	}
	return nil
}
