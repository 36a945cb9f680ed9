package toolkit

import (
	"encoding/json"
	"testing"

	"github.com/ashleydavis/wunderlust-example/internal/chat/mapview"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("noop", func(args json.RawMessage) (string, error) { return "ok", nil }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, ok := r.Lookup("noop"); !ok {
		t.Fatal("registered handler not found")
	}
	if _, ok := r.Lookup("NOOP"); ok {
		t.Fatal("lookup must be exact-name match")
	}
	if err := r.Register("noop", func(args json.RawMessage) (string, error) { return "", nil }); err == nil {
		t.Fatal("duplicate registration must fail")
	}
	if err := r.Register("", func(args json.RawMessage) (string, error) { return "", nil }); err == nil {
		t.Fatal("empty name must fail")
	}
}

func TestMapToolHandlers(t *testing.T) {
	widget := mapview.NewWidget()
	r := NewRegistry()
	RegisterMapTools(r, widget)

	update, _ := r.Lookup("update_map")
	out, err := update(json.RawMessage(`{"longitude":2.35,"latitude":48.85,"zoom":12}`))
	if err != nil {
		t.Fatalf("update_map failed: %v", err)
	}
	if out != "Map updated" {
		t.Fatalf("unexpected confirmation %q", out)
	}

	marker, _ := r.Lookup("add_marker")
	out, err = marker(json.RawMessage(`{"lat":48.8584,"lng":2.2945,"label":"Eiffel Tower"}`))
	if err != nil {
		t.Fatalf("add_marker failed: %v", err)
	}
	if out != "Marker added" {
		t.Fatalf("unexpected confirmation %q", out)
	}

	view, markers := widget.Snapshot()
	if view.Zoom != 12 || view.Latitude != 48.85 {
		t.Fatalf("view not updated: %+v", view)
	}
	if len(markers) != 1 || markers[0].Label != "Eiffel Tower" {
		t.Fatalf("marker not placed: %+v", markers)
	}
}

func TestMapToolHandlersBadArguments(t *testing.T) {
	widget := mapview.NewWidget()
	r := NewRegistry()
	RegisterMapTools(r, widget)

	update, _ := r.Lookup("update_map")
	if _, err := update(json.RawMessage(`not json`)); err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}

// Repeated updates within one batch apply in order; the last one wins.
func TestMapUpdateLastWriteWins(t *testing.T) {
	widget := mapview.NewWidget()
	r := NewRegistry()
	RegisterMapTools(r, widget)

	update, _ := r.Lookup("update_map")
	update(json.RawMessage(`{"longitude":2.35,"latitude":48.85,"zoom":12}`))
	update(json.RawMessage(`{"longitude":-0.12,"latitude":51.5,"zoom":10}`))

	view, _ := widget.Snapshot()
	if view.Latitude != 51.5 || view.Longitude != -0.12 {
		t.Fatalf("expected London to win: %+v", view)
	}
}
