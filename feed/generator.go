package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/converter"
	"github.com/theoremus-urban-solutions/siri-vm-hub/formatter"
	"github.com/theoremus-urban-solutions/siri-vm-hub/gtfsrt"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/objectstore"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

// Variant names a download format.
type Variant string

const (
	VariantSiriVM Variant = "sirivm"
	VariantGTFSRT Variant = "gtfsrt"
)

// Content types of the two renders.
const (
	ContentTypeXML      = "application/xml"
	ContentTypeProtobuf = "application/x-protobuf"
)

// ParseVariant maps a downloadVariant query value; empty means sirivm.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantSiriVM:
		return VariantSiriVM, nil
	case VariantGTFSRT:
		return VariantGTFSRT, nil
	default:
		return "", fmt.Errorf("unknown download variant %q", s)
	}
}

// Generator renders and publishes the aggregated feed.
type Generator struct {
	records store.Records
	objects objectstore.Store
	metrics *metrics.Metrics
	cfg     config.FeedConfig
	presign time.Duration
	rb      *formatter.ResponseBuilder
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator creates a Generator. presign is the lifetime of snapshot
// download URLs.
func NewGenerator(records store.Records, objects objectstore.Store, m *metrics.Metrics, cfg config.FeedConfig, presign time.Duration, logger *slog.Logger) *Generator {
	return &Generator{
		records: records,
		objects: objects,
		metrics: m,
		cfg:     cfg,
		presign: presign,
		rb:      formatter.NewResponseBuilder(),
		logger:  logger.With("component", "feed"),
		now:     time.Now,
	}
}

func (g *Generator) validFor() time.Duration {
	return time.Duration(g.cfg.ValidUntilSeconds) * time.Second
}

// RenderRecords wraps records in a SIRI-VM ServiceDelivery with a fresh
// RequestMessageRef.
func (g *Generator) RenderRecords(records []model.VehicleActivityRecord) []byte {
	doc := formatter.WrapVehicleMonitoring(
		converter.VehicleActivities(records),
		g.now(),
		g.validFor(),
		g.cfg.ProducerRef,
		uuid.NewString(),
	)
	return g.rb.BuildXML(doc)
}

// RenderSiriVM renders the current fleet matching f as SIRI-VM XML.
func (g *Generator) RenderSiriVM(ctx context.Context, f model.Filter) ([]byte, error) {
	records, err := g.records.CurrentFleet(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("current fleet: %w", err)
	}
	return g.RenderRecords(records), nil
}

// RenderGTFSRT renders the current fleet matching f as a GTFS-RT feed.
func (g *Generator) RenderGTFSRT(ctx context.Context, f model.Filter) ([]byte, error) {
	records, err := g.records.CurrentFleet(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("current fleet: %w", err)
	}
	return gtfsrt.Marshal(records, g.now())
}

// Render dispatches on variant and returns the body and its content type.
func (g *Generator) Render(ctx context.Context, variant Variant, f model.Filter) ([]byte, string, error) {
	if variant == VariantGTFSRT {
		data, err := g.RenderGTFSRT(ctx, f)
		return data, ContentTypeProtobuf, err
	}
	data, err := g.RenderSiriVM(ctx, f)
	return data, ContentTypeXML, err
}

// Key returns the snapshot object key for variant.
func (g *Generator) Key(variant Variant) string {
	if variant == VariantGTFSRT {
		return g.cfg.GTFSRTKey
	}
	return g.cfg.SiriVMKey
}

// SnapshotURL returns a presigned URL for the published variant snapshot.
// objectstore.ErrPresignUnsupported is returned unchanged.
func (g *Generator) SnapshotURL(ctx context.Context, variant Variant) (string, error) {
	return g.objects.PresignedURL(ctx, g.Key(variant), g.presign)
}
