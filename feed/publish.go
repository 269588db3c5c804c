package feed

import (
	"context"
	"errors"
	"time"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

// Publish renders both variants of the unfiltered fleet and uploads them.
// Both uploads are attempted; the joined error reports any failures.
func (g *Generator) Publish(ctx context.Context) error {
	var errs []error
	for _, variant := range []Variant{VariantSiriVM, VariantGTFSRT} {
		if err := g.publish(ctx, variant); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Generator) publish(ctx context.Context, variant Variant) error {
	data, contentType, err := g.Render(ctx, variant, model.Filter{})
	if err == nil {
		err = g.objects.Put(ctx, g.Key(variant), data, contentType)
	}
	result := "ok"
	if err != nil {
		result = "error"
		g.logger.Error("snapshot publish failed", "variant", variant, "error", err)
	} else {
		g.logger.Debug("snapshot published", "variant", variant, "key", g.Key(variant), "bytes", len(data))
	}
	if g.metrics != nil {
		g.metrics.SnapshotPublishes.WithLabelValues(string(variant), result).Inc()
	}
	return err
}

// Run publishes every interval until ctx is cancelled.
func (g *Generator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	g.logger.Info("snapshot publisher started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = g.Publish(ctx)
		}
	}
}
