package matching

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/siri-vm-hub/gtfs"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

type fakeIndex struct {
	calls [][3]string
	match gtfs.Match
}

func (f *fakeIndex) Match(op, line, journey string) gtfs.Match {
	f.calls = append(f.calls, [3]string{op, line, journey})
	return f.match
}

func newTestEngine(idx ReferenceIndex) (*Engine, *store.Memory) {
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(mem, mem, idx, metrics.New(), time.Hour, logger), mem
}

func TestEngine_PartialBatch(t *testing.T) {
	ctx := context.Background()
	route, trip := "R72", "T100"
	eng, mem := newTestEngine(&fakeIndex{match: gtfs.Match{RouteID: &route, TripID: &trip}})

	bad1 := validActivity("V3")
	bad1.MonitoredVehicleJourney.LineRef = ""
	bad2 := validActivity("V4")
	bad2.MonitoredVehicleJourney.OriginAimedDepartureTime = "garbage"

	res, err := eng.Process(ctx, Batch{
		SubscriptionID:    "sub-1",
		ProducerRef:       "ItoWorld",
		ResponseTimestamp: "2024-03-01T10:15:30Z",
		Activities:        []siri.VehicleActivity{validActivity("V1"), bad1, validActivity("V2"), bad2},
	})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Len(t, res.Errors, 2)

	fleet, err := mem.CurrentFleet(ctx, model.Filter{})
	require.NoError(t, err)
	require.Len(t, fleet, 2)
	for _, r := range fleet {
		assert.Equal(t, "sub-1", r.SubscriptionID)
		assert.Equal(t, "ItoWorld", r.ProducerRef)
		assert.True(t, r.Matched())
	}

	stored, err := mem.ListValidationErrors(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "LineRef", stored[0].Name)
	assert.Equal(t, model.SeverityCritical, stored[0].Severity)
	assert.Equal(t, "OriginAimedDepartureTime", stored[1].Name)
	assert.Equal(t, model.SeverityNonCritical, stored[1].Severity)
	assert.Equal(t, "2024-03-01T10:15:30Z", stored[1].ResponseTimestamp)
}

func TestEngine_MatchUsesLineRefWhenNoPublishedName(t *testing.T) {
	idx := &fakeIndex{}
	eng, _ := newTestEngine(idx)

	va := validActivity("V1")
	va.MonitoredVehicleJourney.PublishedLineName = ""
	va.MonitoredVehicleJourney.LineRef = "X1"

	res, err := eng.Process(context.Background(), Batch{SubscriptionID: "s", Activities: []siri.VehicleActivity{va}})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Nil(t, res.Records[0].RouteID)
	assert.Equal(t, [][3]string{{"FBRI", "X1", "1012"}}, idx.calls)
}

func TestEngine_AllInvalid(t *testing.T) {
	eng, mem := newTestEngine(&fakeIndex{})
	bad := validActivity("V1")
	bad.MonitoredVehicleJourney.VehicleLocation = nil

	res, err := eng.Process(context.Background(), Batch{SubscriptionID: "s", Activities: []siri.VehicleActivity{bad}})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Len(t, res.Errors, 1)

	maxID, err := mem.MaxRecordID(context.Background())
	require.NoError(t, err)
	assert.Zero(t, maxID)
}
