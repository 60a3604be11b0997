package fitlog

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371008.8

// TrackSummary describes the extent of a GPS track.
type TrackSummary struct {
	Points       int     `json:"points"`
	MinLat       float64 `json:"min_lat"`
	MinLon       float64 `json:"min_lon"`
	MaxLat       float64 `json:"max_lat"`
	MaxLon       float64 `json:"max_lon"`
	LengthMeters float64 `json:"length_meters"`
}

// SummarizeTrack computes the bounding box and great-circle length of points.
// It reports false for an empty track.
func SummarizeTrack(points []GpsPoint) (TrackSummary, bool) {
	if len(points) == 0 {
		return TrackSummary{}, false
	}
	rect := s2.EmptyRect()
	var length s1.Angle
	var prev s2.LatLng
	for i, p := range points {
		ll := s2.LatLngFromDegrees(p.Lat, p.Lon)
		rect = rect.AddPoint(ll)
		if i > 0 {
			length += prev.Distance(ll)
		}
		prev = ll
	}
	return TrackSummary{
		Points:       len(points),
		MinLat:       rect.Lo().Lat.Degrees(),
		MinLon:       rect.Lo().Lng.Degrees(),
		MaxLat:       rect.Hi().Lat.Degrees(),
		MaxLon:       rect.Hi().Lng.Degrees(),
		LengthMeters: length.Radians() * earthRadiusMeters,
	}, true
}
