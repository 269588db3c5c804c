package model

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// BoundingBox is an inclusive lon/lat rectangle.
type BoundingBox struct {
	MinLongitude float64 `json:"minLongitude"`
	MinLatitude  float64 `json:"minLatitude"`
	MaxLongitude float64 `json:"maxLongitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLongitude && lon <= b.MaxLongitude &&
		lat >= b.MinLatitude && lat <= b.MaxLatitude
}

// ParseBoundingBox reads "minLon,minLat,maxLon,maxLat".
func ParseBoundingBox(s string) (*BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.New("boundingBox must have four comma-separated values")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("boundingBox value %q: %w", p, err)
		}
		v[i] = f
	}
	bb := &BoundingBox{MinLongitude: v[0], MinLatitude: v[1], MaxLongitude: v[2], MaxLatitude: v[3]}
	if bb.MinLongitude > bb.MaxLongitude || bb.MinLatitude > bb.MaxLatitude {
		return nil, errors.New("boundingBox minimum exceeds maximum")
	}
	return bb, nil
}

// Filter narrows record reads. Empty fields do not filter.
type Filter struct {
	BoundingBox     *BoundingBox
	OperatorRefs    []string
	LineRefs        []string
	VehicleRef      string
	ProducerRef     string
	OriginRef       string
	DestinationRef  string
	SubscriptionIDs []string
}

// Empty reports whether the filter selects every record.
func (f Filter) Empty() bool {
	return f.BoundingBox == nil && len(f.OperatorRefs) == 0 && len(f.LineRefs) == 0 &&
		f.VehicleRef == "" && f.ProducerRef == "" && f.OriginRef == "" &&
		f.DestinationRef == "" && len(f.SubscriptionIDs) == 0
}

// Match applies the filter to a single record.
func (f Filter) Match(r VehicleActivityRecord) bool {
	if f.BoundingBox != nil && !f.BoundingBox.Contains(r.Longitude, r.Latitude) {
		return false
	}
	if len(f.OperatorRefs) > 0 && !slices.Contains(f.OperatorRefs, r.OperatorRef) {
		return false
	}
	if len(f.LineRefs) > 0 && !slices.Contains(f.LineRefs, r.LineRef) {
		return false
	}
	if len(f.SubscriptionIDs) > 0 && !slices.Contains(f.SubscriptionIDs, r.SubscriptionID) {
		return false
	}
	if f.VehicleRef != "" && f.VehicleRef != r.VehicleRef {
		return false
	}
	if f.ProducerRef != "" && f.ProducerRef != r.ProducerRef {
		return false
	}
	if f.OriginRef != "" && f.OriginRef != r.OriginRef {
		return false
	}
	if f.DestinationRef != "" && f.DestinationRef != r.DestinationRef {
		return false
	}
	return true
}

// SplitList splits a comma-separated query value, dropping blanks.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
