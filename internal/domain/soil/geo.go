package soil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// ParseLatLon parses the MIxS lat_lon field. Accepted forms are
// "12.5 S 48.3 W" (hemisphere letters) and "-12.5 -48.3" (signed decimals).
// Latitude always comes first.
func ParseLatLon(raw string) (GeoPoint, error) {
	fields := strings.Fields(strings.ReplaceAll(strings.TrimSpace(raw), ",", " "))
	var nums []float64
	var hemis []string
	for _, f := range fields {
		upper := strings.ToUpper(f)
		switch upper {
		case "N", "S", "E", "W":
			hemis = append(hemis, upper)
			continue
		}
		// "12.5S" style suffixes
		if n := len(upper); n > 1 && strings.ContainsAny(upper[n-1:], "NSEW") {
			hemis = append(hemis, upper[n-1:])
			upper = upper[:n-1]
		}
		v, err := strconv.ParseFloat(upper, 64)
		if err != nil {
			return GeoPoint{}, fmt.Errorf("lat_lon %q: %w", raw, err)
		}
		nums = append(nums, v)
	}
	if len(nums) != 2 {
		return GeoPoint{}, fmt.Errorf("lat_lon %q: expected two coordinates", raw)
	}
	p := GeoPoint{Latitude: nums[0], Longitude: nums[1]}
	for _, h := range hemis {
		switch h {
		case "S":
			p.Latitude = -math.Abs(p.Latitude)
		case "W":
			p.Longitude = -math.Abs(p.Longitude)
		}
	}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, fmt.Errorf("lat_lon %q: %w", raw, err)
	}
	return p, nil
}

// BoundingBox is a validated geosearch window.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

func (b BoundingBox) Validate() error {
	if err := (GeoPoint{Latitude: b.MinLat, Longitude: b.MinLon}).Validate(); err != nil {
		return err
	}
	if err := (GeoPoint{Latitude: b.MaxLat, Longitude: b.MaxLon}).Validate(); err != nil {
		return err
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("minLat %v greater than maxLat %v", b.MinLat, b.MaxLat)
	}
	if b.MinLon > b.MaxLon {
		return fmt.Errorf("minLon %v greater than maxLon %v", b.MinLon, b.MaxLon)
	}
	return nil
}
