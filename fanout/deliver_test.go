package fanout

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/queue"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

var testFanoutConfig = config.FanoutConfig{
	QueueName:              "consumer-fanout",
	Concurrency:            2,
	MaxBatch:               100,
	DeliveryTimeoutSeconds: 2,
	MaxFailedAttempts:      3,
	PollIntervalMS:         10,
}

type idRenderer struct{}

func (idRenderer) RenderRecords(records []model.VehicleActivityRecord) []byte {
	var b strings.Builder
	b.WriteString("<Siri>")
	for _, r := range records {
		b.WriteString("<V>" + r.VehicleRef + "</V>")
	}
	b.WriteString("</Siri>")
	return []byte(b.String())
}

type consumerServer struct {
	*httptest.Server
	status atomic.Int32
	posts  atomic.Int32
	last   atomic.Value
}

func newConsumerServer(t *testing.T) *consumerServer {
	cs := &consumerServer{}
	cs.status.Store(http.StatusOK)
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cs.last.Store(r.Header.Get("Content-Type") + "|" + string(body))
		cs.posts.Add(1)
		w.WriteHeader(int(cs.status.Load()))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func seedConsumer(t *testing.T, mem *store.Memory, url string, producers ...string) {
	t.Helper()
	require.NoError(t, mem.SaveConsumer(context.Background(), model.ConsumerSubscription{
		ID:             "c1",
		URL:            url,
		UpdateInterval: 10,
		Status:         model.StatusLive,
		ProducerIDs:    producers,
		QueueName:      "consumer-fanout",
	}))
}

func insert(t *testing.T, mem *store.Memory, subscriptionID string, vehicles ...string) {
	t.Helper()
	recs := make([]model.VehicleActivityRecord, len(vehicles))
	for i, v := range vehicles {
		recs[i] = model.VehicleActivityRecord{
			OperatorRef: "OP", VehicleRef: v, LineRef: "1",
			RecordedAtTime: time.Now(), ValidUntilTime: time.Now().Add(time.Minute),
			SubscriptionID: subscriptionID,
		}
	}
	_, err := mem.InsertRecords(context.Background(), recs)
	require.NoError(t, err)
}

func TestTick_AdvancesCursorOnSuccess(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	cs := newConsumerServer(t)
	seedConsumer(t, mem, cs.URL, "p1")
	insert(t, mem, "p1", "V1", "V2")
	insert(t, mem, "p2", "V3")

	d := NewDeliverer(mem, idRenderer{}, metrics.New(), testFanoutConfig, discardLogger())
	require.NoError(t, d.Tick(ctx, "c1"))

	assert.Equal(t, int32(1), cs.posts.Load())
	assert.Equal(t, "application/xml|<Siri><V>V1</V><V>V2</V></Siri>", cs.last.Load())
	sub, err := mem.GetConsumer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.LastRecordID)
	assert.NotNil(t, sub.LastDelivered)

	// nothing new: no POST
	require.NoError(t, d.Tick(ctx, "c1"))
	assert.Equal(t, int32(1), cs.posts.Load())

	insert(t, mem, "p1", "V4")
	require.NoError(t, d.Tick(ctx, "c1"))
	assert.Equal(t, "application/xml|<Siri><V>V4</V></Siri>", cs.last.Load())
}

func TestTick_FailureKeepsCursorAndEscalates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	cs := newConsumerServer(t)
	cs.status.Store(http.StatusInternalServerError)
	seedConsumer(t, mem, cs.URL)
	insert(t, mem, "p1", "V1")

	d := NewDeliverer(mem, idRenderer{}, metrics.New(), testFanoutConfig, discardLogger())
	for i := 1; i <= testFanoutConfig.MaxFailedAttempts; i++ {
		err := d.Tick(ctx, "c1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSubscriptionNotLive)
		sub, gerr := mem.GetConsumer(ctx, "c1")
		require.NoError(t, gerr)
		assert.Equal(t, int64(0), sub.LastRecordID)
		assert.Equal(t, i, sub.FailedAttempts)
	}

	sub, err := mem.GetConsumer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, sub.Status)

	// later ticks are terminal and do not POST
	posts := cs.posts.Load()
	assert.ErrorIs(t, d.Tick(ctx, "c1"), ErrSubscriptionNotLive)
	assert.Equal(t, posts, cs.posts.Load())
}

func TestTick_SuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	cs := newConsumerServer(t)
	seedConsumer(t, mem, cs.URL)
	insert(t, mem, "p1", "V1")
	d := NewDeliverer(mem, idRenderer{}, metrics.New(), testFanoutConfig, discardLogger())

	cs.status.Store(http.StatusBadGateway)
	require.Error(t, d.Tick(ctx, "c1"))
	cs.status.Store(http.StatusNoContent)
	require.NoError(t, d.Tick(ctx, "c1"))

	sub, err := mem.GetConsumer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, sub.FailedAttempts)
	assert.Equal(t, int64(1), sub.LastRecordID)
}

func TestTick_UnknownOrInactive(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	d := NewDeliverer(mem, idRenderer{}, metrics.New(), testFanoutConfig, discardLogger())

	assert.ErrorIs(t, d.Tick(ctx, "missing"), ErrSubscriptionNotLive)

	require.NoError(t, mem.SaveConsumer(ctx, model.ConsumerSubscription{ID: "c2", Status: model.StatusInactive}))
	assert.ErrorIs(t, d.Tick(ctx, "c2"), ErrSubscriptionNotLive)
}

func TestWorker_RetriesFailedTicksAndDropsTerminal(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	cs := newConsumerServer(t)
	cs.status.Store(http.StatusServiceUnavailable)
	seedConsumer(t, mem, cs.URL)
	insert(t, mem, "p1", "V1")

	q := queue.NewMemory(queue.Policy{MaxAttempts: 3, RetryDelay: time.Hour})
	require.NoError(t, q.Enqueue(ctx, "c1", 0))
	require.NoError(t, q.Enqueue(ctx, "missing", 0))

	m := metrics.New()
	w := NewWorker(q, NewDeliverer(mem, idRenderer{}, m, testFanoutConfig, discardLogger()), m, testFanoutConfig, discardLogger())
	n, err := w.Drain(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending := q.Pending()
	require.Len(t, pending, 1, "only the failed live tick is retried")
	assert.Equal(t, "c1", pending[0].SubscriptionID)
	assert.Equal(t, 1, pending[0].Attempt)
}
