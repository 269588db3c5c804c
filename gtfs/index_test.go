package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
)

// buildZip creates an in-memory GTFS zip from file name -> CSV contents.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func sampleFeed(t *testing.T) []byte {
	t.Helper()
	return buildZip(t, map[string]string{
		"routes.txt": "route_id,agency_id,route_short_name,route_type\n" +
			"R72,OP1,72,3\n" +
			"R1A,OP2,1,3\n" +
			"R1B,OP2,1,3\n" +
			"R9,OP3,9,3\n",
		"agency.txt": "\ufeffagency_id,agency_name,agency_noc\n" +
			"OP1,First Bristol,FBRI\n" +
			"OP2,Stagecoach,SCGH\n",
		"trips.txt": "route_id,service_id,trip_id,block_id,vehicle_journey_code\n" +
			"R72,S1,T100,B1,1012\n" +
			"R72,S1,T101,B1,1013\n" +
			"R72,S2,T102,B2,1013\n" +
			"R1A,S1,T200,,2001\n" +
			"R1B,S1,T201,,2002\n",
		"stops.txt": "stop_id,stop_name\nS,Stop\n",
	})
}

func ptr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestGTFSIndex_Match(t *testing.T) {
	idx, err := NewIndexFromBytes(sampleFeed(t))
	if err != nil {
		t.Fatalf("NewIndexFromBytes: %v", err)
	}

	tests := []struct {
		name      string
		operator  string
		line      string
		journey   string
		wantRoute string
		wantTrip  string
	}{
		{"route and trip", "FBRI", "72", "1012", "R72", "T100"},
		{"case insensitive key", "fbri", "72", "1012", "R72", "T100"},
		{"duplicate journey code is ambiguous", "FBRI", "72", "1013", "R72", "<nil>"},
		{"unknown journey", "FBRI", "72", "9999", "R72", "<nil>"},
		{"no journey ref", "FBRI", "72", "", "R72", "<nil>"},
		{"ambiguous route resolved by trip", "SCGH", "1", "2001", "R1A", "T200"},
		{"ambiguous route without trip", "SCGH", "1", "", "<nil>", "<nil>"},
		{"ambiguous route, unknown journey", "SCGH", "1", "9999", "<nil>", "<nil>"},
		{"unknown operator", "XXXX", "72", "1012", "<nil>", "<nil>"},
		{"route without operator code", "", "9", "", "<nil>", "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := idx.Match(tt.operator, tt.line, tt.journey)
			if got := ptr(m.RouteID); got != tt.wantRoute {
				t.Errorf("route = %s, want %s", got, tt.wantRoute)
			}
			if got := ptr(m.TripID); got != tt.wantTrip {
				t.Errorf("trip = %s, want %s", got, tt.wantTrip)
			}
		})
	}
}

func TestGTFSIndex_NilAndEmpty(t *testing.T) {
	var nilIdx *GTFSIndex
	if m := nilIdx.Match("FBRI", "72", "1012"); m.RouteID != nil || m.TripID != nil {
		t.Error("nil index should never match")
	}
	if m := NewGTFSIndex().Match("FBRI", "72", "1012"); m.RouteID != nil {
		t.Error("empty index should never match")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	idx, err := NewIndexFromBytes(sampleFeed(t))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "index.gob")
	if err := SerializeIndexToFile(idx, path); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	loaded, err := DeserializeIndexFromFile(path)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if loaded.RouteCount() != idx.RouteCount() {
		t.Errorf("route count %d, want %d", loaded.RouteCount(), idx.RouteCount())
	}
	if m := loaded.Match("FBRI", "72", "1012"); ptr(m.TripID) != "T100" {
		t.Errorf("cached index lost lookup map, trip = %s", ptr(m.TripID))
	}
}

func TestLoadIndex_FromURLWritesCache(t *testing.T) {
	data := sampleFeed(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := filepath.Join(t.TempDir(), "cache.gob")
	cfg := config.GTFSConfig{StaticURL: srv.URL, CachePath: cache}

	idx, err := LoadIndex(context.Background(), srv.Client(), cfg, logger)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if idx.RouteCount() != 4 {
		t.Errorf("expected 4 routes, got %d", idx.RouteCount())
	}

	// Second load must come from the cache even with the server gone.
	srv.Close()
	again, err := LoadIndex(context.Background(), http.DefaultClient, cfg, logger)
	if err != nil {
		t.Fatalf("LoadIndex from cache: %v", err)
	}
	if again.RouteCount() != 4 {
		t.Errorf("expected cached index with 4 routes, got %d", again.RouteCount())
	}
}

func TestLoadIndex_NoSource(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx, err := LoadIndex(context.Background(), http.DefaultClient, config.GTFSConfig{}, logger)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if idx.RouteCount() != 0 {
		t.Error("expected empty index")
	}
}
