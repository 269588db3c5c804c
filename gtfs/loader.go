package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
)

var indexedFiles = map[string]bool{"agency.txt": true, "routes.txt": true, "trips.txt": true}

// NewIndexFromBytes builds an index from an in-memory GTFS zip.
func NewIndexFromBytes(data []byte) (*GTFSIndex, error) {
	return NewIndexFromReader(bytes.NewReader(data), int64(len(data)))
}

// NewIndexFromReader builds an index from any GTFS zip source.
func NewIndexFromReader(r io.ReaderAt, size int64) (*GTFSIndex, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open gtfs zip: %w", err)
	}
	g := NewGTFSIndex()
	for _, f := range zr.File {
		if !indexedFiles[strings.ToLower(f.Name)] {
			continue
		}
		if err := g.consumeCSV(f); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	g.finalize()
	return g, nil
}

// NewIndexFromFile opens a local GTFS zip file.
func NewIndexFromFile(path string) (*GTFSIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewIndexFromBytes(data)
}

// FetchStatic downloads a GTFS zip.
func FetchStatic(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch gtfs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch gtfs: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// LoadIndex builds the reference index from configuration. A readable
// cache file wins over the zip; a freshly parsed zip refreshes the cache.
// With no source configured an empty index is returned and nothing matches.
func LoadIndex(ctx context.Context, client *http.Client, cfg config.GTFSConfig, logger *slog.Logger) (*GTFSIndex, error) {
	if cfg.CachePath != "" {
		if idx, err := DeserializeIndexFromFile(cfg.CachePath); err == nil {
			logger.Info("gtfs index loaded from cache", "path", cfg.CachePath, "routes", idx.RouteCount())
			return idx, nil
		}
	}
	var (
		idx *GTFSIndex
		err error
	)
	switch {
	case cfg.LocalPath != "":
		idx, err = NewIndexFromFile(cfg.LocalPath)
	case cfg.StaticURL != "":
		var data []byte
		if data, err = FetchStatic(ctx, client, cfg.StaticURL); err == nil {
			idx, err = NewIndexFromBytes(data)
		}
	default:
		logger.Warn("no gtfs source configured, vehicle activity will not be matched")
		return NewGTFSIndex(), nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("gtfs index built", "routes", idx.RouteCount())
	if cfg.CachePath != "" {
		if err := SerializeIndexToFile(idx, cfg.CachePath); err != nil {
			logger.Warn("gtfs cache write failed", "path", cfg.CachePath, "error", err)
		}
	}
	return idx, nil
}

func (g *GTFSIndex) consumeCSV(f *zip.File) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) == 0 {
		return nil
	}
	head := rec[0]
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	switch strings.ToLower(f.Name) {
	case "agency.txt":
		agID := idx("agency_id")
		noc := idx("agency_noc")
		for _, row := range rec[1:] {
			if v := cell(row, noc); v != "" {
				g.AgencyNOC[cell(row, agID)] = v
			}
		}
	case "routes.txt":
		rID := idx("route_id")
		agID := idx("agency_id")
		rSN := idx("route_short_name")
		for _, row := range rec[1:] {
			id := cell(row, rID)
			if id == "" {
				continue
			}
			g.Routes[id] = Route{ID: id, AgencyID: cell(row, agID), ShortName: cell(row, rSN)}
		}
	case "trips.txt":
		rID := idx("route_id")
		tID := idx("trip_id")
		vjc := idx("vehicle_journey_code")
		blk := idx("block_id")
		for _, row := range rec[1:] {
			t := Trip{ID: cell(row, tID), RouteID: cell(row, rID), VehicleJourneyCode: cell(row, vjc), BlockID: cell(row, blk)}
			if t.ID == "" || t.RouteID == "" {
				continue
			}
			g.Trips[t.RouteID] = append(g.Trips[t.RouteID], t)
		}
	}
	return nil
}
