package toolkit

import (
	"encoding/json"
	"fmt"

	"github.com/ashleydavis/wunderlust-example/internal/chat/mapview"
)

// UpdateMapArgs are the arguments for the update_map function.
type UpdateMapArgs struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
}

// AddMarkerArgs are the arguments for the add_marker function.
type AddMarkerArgs struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Label     string  `json:"label"`
}

// RegisterMapTools wires the two map functions into the registry, backed by
// the given widget.
func RegisterMapTools(r *Registry, widget *mapview.Widget) {
	r.MustRegister("update_map", func(args json.RawMessage) (string, error) {
		var a UpdateMapArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return "", fmt.Errorf("update_map: bad arguments: %w", err)
		}
		widget.UpdateView(a.Longitude, a.Latitude, a.Zoom)
		return "Map updated", nil
	})
	r.MustRegister("add_marker", func(args json.RawMessage) (string, error) {
		var a AddMarkerArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return "", fmt.Errorf("add_marker: bad arguments: %w", err)
		}
		widget.AddMarker(a.Latitude, a.Longitude, a.Label)
		return "Marker added", nil
	})
}
