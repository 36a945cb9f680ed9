// Package mapview holds the local state of the map widget driven by
// assistant tool calls.
package mapview

import (
	"fmt"
	"sync"
)

// Marker is a labeled point on the map.
type Marker struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Label     string  `json:"label"`
}

// View is the current viewport of the map.
type View struct {
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"lat"`
	Zoom      float64 `json:"zoom"`
}

// Widget is the map widget model. Tool handlers mutate it; the
// presentation layer reads snapshots. Repeated updates within one batch of
// tool calls apply in order, last write wins.
type Widget struct {
	mu      sync.Mutex
	view    View
	markers []Marker
}

// NewWidget creates an empty widget centered on the default view.
func NewWidget() *Widget {
	return &Widget{
		view: View{Longitude: 0, Latitude: 0, Zoom: 2},
	}
}

// UpdateView recenters the map.
func (w *Widget) UpdateView(longitude, latitude, zoom float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = View{Longitude: longitude, Latitude: latitude, Zoom: zoom}
}

// AddMarker places a labeled marker.
func (w *Widget) AddMarker(latitude, longitude float64, label string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markers = append(w.markers, Marker{Latitude: latitude, Longitude: longitude, Label: label})
}

// Snapshot returns a copy of the current view and markers.
func (w *Widget) Snapshot() (View, []Marker) {
	w.mu.Lock()
	defer w.mu.Unlock()
	markers := make([]Marker, len(w.markers))
	copy(markers, w.markers)
	return w.view, markers
}

// Reset clears all markers and recenters the default view.
func (w *Widget) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = View{Longitude: 0, Latitude: 0, Zoom: 2}
	w.markers = nil
}

// String renders a one-line description for the terminal client.
func (w *Widget) String() string {
	view, markers := w.Snapshot()
	return fmt.Sprintf("map center=(%.4f, %.4f) zoom=%.1f markers=%d", view.Latitude, view.Longitude, view.Zoom, len(markers))
}
