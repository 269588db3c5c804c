package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

// Memory is an in-process Store and ValidationErrors implementation.
type Memory struct {
	mu        sync.RWMutex
	producers map[string]model.ProducerSubscription
	consumers map[string]model.ConsumerSubscription
	records   []model.VehicleActivityRecord
	nextID    int64
	verrs     map[string][]model.ValidationError
	now       func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		producers: map[string]model.ProducerSubscription{},
		consumers: map[string]model.ConsumerSubscription{},
		verrs:     map[string][]model.ValidationError{},
		now:       time.Now,
	}
}

func (m *Memory) Close() {}

func (m *Memory) SaveProducer(_ context.Context, sub model.ProducerSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.producers[sub.ID] = sub
	return nil
}

func (m *Memory) GetProducer(_ context.Context, id string) (model.ProducerSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.producers[id]
	if !ok {
		return model.ProducerSubscription{}, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (m *Memory) ListProducers(_ context.Context, statuses ...model.SubscriptionStatus) ([]model.ProducerSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ProducerSubscription, 0, len(m.producers))
	for _, s := range m.producers {
		if len(statuses) == 0 || slices.Contains(statuses, s.Status) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TouchHeartbeat(_ context.Context, id string, at, modified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.producers[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.LastHeartbeat = &at
	sub.HeartbeatAttempts = 0
	sub.LastModifiedDatetime = modified
	if sub.Status == model.StatusError {
		sub.Status = model.StatusLive
	}
	m.producers[id] = sub
	return nil
}

func (m *Memory) RecordMissedHeartbeat(_ context.Context, id string, seen *time.Time, maxAttempts int, modified time.Time) (model.ProducerSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.producers[id]
	if !ok || sub.Status != model.StatusLive || !sameInstant(sub.LastHeartbeat, seen) {
		return model.ProducerSubscription{}, ErrSubscriptionNotFound
	}
	sub.HeartbeatAttempts++
	if maxAttempts > 0 && sub.HeartbeatAttempts >= maxAttempts {
		sub.Status = model.StatusError
	}
	sub.LastModifiedDatetime = modified
	m.producers[id] = sub
	return sub, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (m *Memory) SaveConsumer(_ context.Context, sub model.ConsumerSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumers[sub.ID] = sub
	return nil
}

func (m *Memory) GetConsumer(_ context.Context, id string) (model.ConsumerSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.consumers[id]
	if !ok {
		return model.ConsumerSubscription{}, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (m *Memory) ListConsumers(_ context.Context, userID string) ([]model.ConsumerSubscription, error) {
	return m.listConsumers(func(c model.ConsumerSubscription) bool { return c.UserID == userID }), nil
}

func (m *Memory) ListConsumersByStatus(_ context.Context, status model.SubscriptionStatus) ([]model.ConsumerSubscription, error) {
	return m.listConsumers(func(c model.ConsumerSubscription) bool { return c.Status == status }), nil
}

func (m *Memory) listConsumers(keep func(model.ConsumerSubscription) bool) []model.ConsumerSubscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ConsumerSubscription
	for _, c := range m.consumers {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Memory) AdvanceCursor(_ context.Context, id string, lastRecordID int64, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.consumers[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.LastRecordID = max(sub.LastRecordID, lastRecordID)
	sub.FailedAttempts = 0
	sub.LastDelivered = &deliveredAt
	m.consumers[id] = sub
	return nil
}

func (m *Memory) RecordDeliveryFailure(_ context.Context, id string, maxFailed int) (model.ConsumerSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.consumers[id]
	if !ok {
		return model.ConsumerSubscription{}, ErrSubscriptionNotFound
	}
	sub.FailedAttempts++
	if maxFailed > 0 && sub.FailedAttempts >= maxFailed && sub.Status == model.StatusLive {
		sub.Status = model.StatusError
	}
	m.consumers[id] = sub
	return sub, nil
}

func (m *Memory) InsertRecords(_ context.Context, recs []model.VehicleActivityRecord) ([]model.VehicleActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.VehicleActivityRecord, len(recs))
	for i, r := range recs {
		m.nextID++
		r.ID = m.nextID
		m.records = append(m.records, r)
		out[i] = r
	}
	return out, nil
}

func (m *Memory) CurrentFleet(_ context.Context, f model.Filter) ([]model.VehicleActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := map[string]model.VehicleActivityRecord{}
	for _, r := range m.records {
		k := r.OperatorRef + "\x00" + r.VehicleRef
		cur, ok := latest[k]
		// records are held in id order, so equal timestamps resolve to the later insert
		if !ok || !r.RecordedAtTime.Before(cur.RecordedAtTime) {
			latest[k] = r
		}
	}
	out := make([]model.VehicleActivityRecord, 0, len(latest))
	for _, r := range latest {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := strings.Compare(out[i].OperatorRef, out[j].OperatorRef); c != 0 {
			return c < 0
		}
		return out[i].VehicleRef < out[j].VehicleRef
	})
	return out, nil
}

func (m *Memory) RecordsAfter(_ context.Context, afterID int64, f model.Filter, limit int) ([]model.VehicleActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.VehicleActivityRecord
	for _, r := range m.records {
		if r.ID <= afterID || !f.Match(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MaxRecordID(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextID, nil
}

func (m *Memory) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.ValidUntilTime.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

func (m *Memory) AddValidationErrors(_ context.Context, errs []model.ValidationError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range errs {
		m.verrs[e.SubscriptionID] = append(m.verrs[e.SubscriptionID], e)
	}
	return nil
}

func (m *Memory) ListValidationErrors(_ context.Context, subscriptionID string) ([]model.ValidationError, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	var out []model.ValidationError
	for _, e := range m.verrs[subscriptionID] {
		if e.ExpiresAt.IsZero() || e.ExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}
