package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func rec(op, veh string, recordedOffset time.Duration, lon, lat float64) model.VehicleActivityRecord {
	return model.VehicleActivityRecord{
		OperatorRef:    op,
		VehicleRef:     veh,
		LineRef:        "72",
		RecordedAtTime: base.Add(recordedOffset),
		ValidUntilTime: base.Add(recordedOffset + 5*time.Minute),
		Longitude:      lon,
		Latitude:       lat,
		SubscriptionID: "sub-1",
	}
}

func TestMemory_CurrentFleetLatestWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// Out-of-order arrival: the older report is inserted last.
	_, err := m.InsertRecords(ctx, []model.VehicleActivityRecord{
		rec("FBRI", "V1", 2*time.Minute, -2.50, 51.40),
		rec("FBRI", "V2", 0, -2.60, 51.50),
		rec("FBRI", "V1", 1*time.Minute, -2.51, 51.41),
	})
	require.NoError(t, err)

	fleet, err := m.CurrentFleet(ctx, model.Filter{})
	require.NoError(t, err)
	require.Len(t, fleet, 2)
	assert.Equal(t, "V1", fleet[0].VehicleRef)
	assert.Equal(t, base.Add(2*time.Minute), fleet[0].RecordedAtTime)
	assert.Equal(t, int64(1), fleet[0].ID)
}

func TestMemory_CurrentFleetTieGoesToLaterInsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertRecords(ctx, []model.VehicleActivityRecord{
		rec("FBRI", "V1", 0, -2.50, 51.40),
		rec("FBRI", "V1", 0, -2.52, 51.42),
	})
	require.NoError(t, err)

	fleet, err := m.CurrentFleet(ctx, model.Filter{})
	require.NoError(t, err)
	require.Len(t, fleet, 1)
	assert.Equal(t, int64(2), fleet[0].ID)
}

func TestMemory_CurrentFleetFiltersAfterSelection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertRecords(ctx, []model.VehicleActivityRecord{
		rec("FBRI", "V1", 0, -2.55, 51.45),
		rec("FBRI", "V1", time.Minute, 0.10, 52.00),
	})
	require.NoError(t, err)

	box := &model.BoundingBox{MinLongitude: -2.6, MinLatitude: 51.4, MaxLongitude: -2.5, MaxLatitude: 51.5}
	fleet, err := m.CurrentFleet(ctx, model.Filter{BoundingBox: box})
	require.NoError(t, err)
	assert.Empty(t, fleet, "a vehicle that left the box must not appear at its old position")
}

func TestMemory_RecordsAfter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	inserted, err := m.InsertRecords(ctx, []model.VehicleActivityRecord{
		rec("FBRI", "V1", 0, -2.5, 51.4),
		rec("SCGH", "V2", 0, -2.5, 51.4),
		rec("FBRI", "V3", 0, -2.5, 51.4),
	})
	require.NoError(t, err)
	require.Len(t, inserted, 3)

	got, err := m.RecordsAfter(ctx, 1, model.Filter{OperatorRefs: []string{"FBRI"}}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "V3", got[0].VehicleRef)

	got, err = m.RecordsAfter(ctx, 0, model.Filter{}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	maxID, err := m.MaxRecordID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxID)
}

func TestMemory_AdvanceCursorIsMonotonic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveConsumer(ctx, model.ConsumerSubscription{ID: "c1", Status: model.StatusLive, FailedAttempts: 2}))

	require.NoError(t, m.AdvanceCursor(ctx, "c1", 10, base))
	require.NoError(t, m.AdvanceCursor(ctx, "c1", 4, base))

	c, err := m.GetConsumer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.LastRecordID)
	assert.Zero(t, c.FailedAttempts)

	assert.ErrorIs(t, m.AdvanceCursor(ctx, "missing", 1, base), ErrSubscriptionNotFound)
}

func TestMemory_RecordDeliveryFailureEscalates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveConsumer(ctx, model.ConsumerSubscription{ID: "c1", Status: model.StatusLive}))

	for i := 1; i < 3; i++ {
		c, err := m.RecordDeliveryFailure(ctx, "c1", 3)
		require.NoError(t, err)
		assert.Equal(t, model.StatusLive, c.Status)
		assert.Equal(t, i, c.FailedAttempts)
	}
	c, err := m.RecordDeliveryFailure(ctx, "c1", 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, c.Status)
}

func TestMemory_ProducersAndConsumers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveProducer(ctx, model.ProducerSubscription{ID: "b", Status: model.StatusLive}))
	require.NoError(t, m.SaveProducer(ctx, model.ProducerSubscription{ID: "a", Status: model.StatusInactive}))

	all, err := m.ListProducers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	live, err := m.ListProducers(ctx, model.StatusLive)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "b", live[0].ID)

	_, err = m.GetProducer(ctx, "zzz")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	require.NoError(t, m.SaveConsumer(ctx, model.ConsumerSubscription{ID: "c1", UserID: "u1", Status: model.StatusLive, CreatedAt: base}))
	require.NoError(t, m.SaveConsumer(ctx, model.ConsumerSubscription{ID: "c2", UserID: "u2", Status: model.StatusInactive, CreatedAt: base}))
	mine, err := m.ListConsumers(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	liveConsumers, err := m.ListConsumersByStatus(ctx, model.StatusLive)
	require.NoError(t, err)
	require.Len(t, liveConsumers, 1)
	assert.Equal(t, "c1", liveConsumers[0].ID)
}

func TestMemory_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertRecords(ctx, []model.VehicleActivityRecord{
		rec("FBRI", "V1", 0, 0, 0),
		rec("FBRI", "V2", time.Hour, 0, 0),
	})
	require.NoError(t, err)

	n, err := m.DeleteExpired(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// ids keep increasing after a cleardown
	more, err := m.InsertRecords(ctx, []model.VehicleActivityRecord{rec("FBRI", "V3", 0, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), more[0].ID)
}

func TestMemory_ValidationErrorsExpire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.now = func() time.Time { return base }
	require.NoError(t, m.AddValidationErrors(ctx, []model.ValidationError{
		{ID: "1", SubscriptionID: "s", ExpiresAt: base.Add(time.Hour)},
		{ID: "2", SubscriptionID: "s", ExpiresAt: base.Add(-time.Second)},
		{ID: "3", SubscriptionID: "other", ExpiresAt: base.Add(time.Hour)},
	}))

	got, err := m.ListValidationErrors(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestMemory_HeartbeatUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	stale := base.Add(-5 * time.Minute)
	require.NoError(t, m.SaveProducer(ctx, model.ProducerSubscription{
		ID: "p1", APIKey: "k", Status: model.StatusLive, LastHeartbeat: &stale,
	}))

	other := stale.Add(time.Second)
	_, err := m.RecordMissedHeartbeat(ctx, "p1", &other, 2, base)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	_, err = m.RecordMissedHeartbeat(ctx, "p1", nil, 2, base)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	got, err := m.RecordMissedHeartbeat(ctx, "p1", &stale, 2, base)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLive, got.Status)
	got, err = m.RecordMissedHeartbeat(ctx, "p1", &stale, 2, base)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)

	_, err = m.RecordMissedHeartbeat(ctx, "p1", &stale, 2, base)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound, "only live subscriptions count misses")

	require.NoError(t, m.TouchHeartbeat(ctx, "p1", base, base))
	got, err = m.GetProducer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusLive, got.Status)
	assert.Equal(t, 0, got.HeartbeatAttempts)
	assert.Equal(t, "k", got.APIKey)

	assert.ErrorIs(t, m.TouchHeartbeat(ctx, "missing", base, base), ErrSubscriptionNotFound)
}
