package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/fanout"
	"github.com/theoremus-urban-solutions/siri-vm-hub/feed"
	"github.com/theoremus-urban-solutions/siri-vm-hub/gtfs"
	"github.com/theoremus-urban-solutions/siri-vm-hub/ingest"
	"github.com/theoremus-urban-solutions/siri-vm-hub/matching"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/objectstore"
	"github.com/theoremus-urban-solutions/siri-vm-hub/producer"
	"github.com/theoremus-urban-solutions/siri-vm-hub/queue"
	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

type fakeProducers struct {
	mem        *store.Memory
	subscribed []producer.SubscribeRequest
	failWith   error
}

func (f *fakeProducers) Subscribe(ctx context.Context, req producer.SubscribeRequest) (model.ProducerSubscription, error) {
	if f.failWith != nil {
		return model.ProducerSubscription{}, f.failWith
	}
	f.subscribed = append(f.subscribed, req)
	sub := model.ProducerSubscription{ID: "sub-new", URL: req.DataProducerEndpoint, Status: model.StatusLive, APIKey: "new-key"}
	return sub, f.mem.SaveProducer(ctx, sub)
}

func (f *fakeProducers) Unsubscribe(ctx context.Context, id string) (producer.UnsubscribeOutcome, error) {
	sub, err := f.mem.GetProducer(ctx, id)
	if err != nil {
		return producer.UnsubscribeOutcome{}, err
	}
	sub.Status = model.StatusInactive
	return producer.UnsubscribeOutcome{ProducerNotified: true}, f.mem.SaveProducer(ctx, sub)
}

func (f *fakeProducers) Update(ctx context.Context, id string, req producer.UpdateRequest) (producer.UpdateOutcome, error) {
	if f.failWith != nil {
		return producer.UpdateOutcome{OldTerminated: true}, f.failWith
	}
	return producer.UpdateOutcome{OldTerminated: true, NewSubscribed: true}, nil
}

type testEnv struct {
	srv       *httptest.Server
	mem       *store.Memory
	queue     *queue.Memory
	producers *fakeProducers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	objs := objectstore.NewMemory()
	m := metrics.New()
	q := queue.NewMemory(queue.Policy{MaxAttempts: 3})
	fp := &fakeProducers{mem: mem}

	engine := matching.NewEngine(mem, mem, gtfs.NewGTFSIndex(), m, time.Hour, logger)
	gw := ingest.NewGateway(mem, heartbeatSink{}, engine, objs, "archive", logger)
	gen := feed.NewGenerator(mem, objs, m, config.FeedConfig{
		ProducerRef: "SiriVmHub", SiriVMKey: "feeds/vm.xml", GTFSRTKey: "feeds/vm.bin", ValidUntilSeconds: 300,
	}, time.Minute, logger)

	require.NoError(t, mem.SaveProducer(ctx, model.ProducerSubscription{ID: "sub-1", Status: model.StatusLive, APIKey: "key-1"}))

	router := NewRouter(Deps{
		Producers:        fp,
		ProducerStore:    mem,
		ValidationErrors: mem,
		Consumers:        mem,
		Records:          mem,
		Queue:            q,
		Armer:            fanout.NewArmer(q, "consumer-fanout", logger),
		Gateway:          gw,
		Feed:             gen,
		Metrics:          m,
		MaxBodyBytes:     1 << 20,
		QueueName:        "consumer-fanout",
		Logger:           logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, mem: mem, queue: q, producers: fp}
}

type heartbeatSink struct{}

func (heartbeatSink) Heartbeat(context.Context, string, string, string) error { return nil }

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

const subscribeBody = `{"dataProducerEndpoint":"http://producer.example/siri","description":"d","shortDescription":"s","username":"u","password":"p"}`

func TestSubscribe(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/subscribe", subscribeBody, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out map[string]string
	readJSON(t, resp, &out)
	assert.Equal(t, "sub-new", out["subscriptionId"])

	resp = env.do(t, http.MethodPost, "/subscribe", `{"description":"missing endpoint"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/subscribe", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.producers.failWith = producer.ErrProducerUnreachable
	resp = env.do(t, http.MethodPost, "/subscribe", subscribeBody, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var e errorResponse
	readJSON(t, resp, &e)
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, internalErrorMessage, e.Error)
}

func TestErrors_ServerFailuresHideCause(t *testing.T) {
	env := newTestEnv(t)
	env.producers.failWith = fmt.Errorf("store credentials for sub-9: %w",
		errors.New("The name org.freedesktop.secrets was not provided by any .service files"))

	resp := env.do(t, http.MethodPost, "/subscribe", subscribeBody, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "freedesktop")
	assert.NotContains(t, string(raw), "sub-9")

	var e errorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, internalErrorMessage, e.Error)
	assert.NotEmpty(t, e.RequestID)

	resp = env.do(t, http.MethodPost, "/subscribe", `{"description":"missing endpoint"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readJSON(t, resp, &e)
	assert.NotEqual(t, internalErrorMessage, e.Error, "client errors keep their message")
}

func TestUnsubscribe(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/unsubscribe?subscriptionId=unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/unsubscribe?subscriptionId=sub-1", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	body := `{"dataProducerEndpoint":"http://producer2.example/siri","username":"u","password":"p"}`

	resp := env.do(t, http.MethodPost, "/update/unknown", body, map[string]string{"x-api-key": "key-1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/update/sub-1", body, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/update/sub-1", body, map[string]string{"x-api-key": "key-1"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	env.producers.failWith = producer.ErrMalformedResponse
	resp = env.do(t, http.MethodPost, "/update/sub-1", body, map[string]string{"x-api-key": "key-1"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSubscriptionReadModel(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/subscriptions/sub-1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "key-1")

	resp = env.do(t, http.MethodGet, "/subscriptions?status=live", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var subs []model.ProducerSubscription
	readJSON(t, resp, &subs)
	assert.Len(t, subs, 1)

	resp = env.do(t, http.MethodGet, "/subscriptions/sub-1/validation-errors", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verrs []model.ValidationError
	readJSON(t, resp, &verrs)
	assert.Empty(t, verrs)

	resp = env.do(t, http.MethodGet, "/subscriptions/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

const dataBody = `<Siri><ServiceDelivery><ResponseTimestamp>2024-03-01T10:15:30Z</ResponseTimestamp>
<VehicleMonitoringDelivery><VehicleActivity>
<RecordedAtTime>2024-03-01T10:15:00Z</RecordedAtTime><ValidUntilTime>2024-03-01T10:20:00Z</ValidUntilTime>
<MonitoredVehicleJourney><LineRef>72</LineRef><OperatorRef>FBRI</OperatorRef>
<VehicleLocation><Longitude>-2.5879</Longitude><Latitude>51.4545</Latitude></VehicleLocation>
<VehicleRef>V1</VehicleRef></MonitoredVehicleJourney>
</VehicleActivity></VehicleMonitoringDelivery></ServiceDelivery></Siri>`

func TestData(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/data/unknown?apiKey=key-1", dataBody, nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/data/sub-1?apiKey=bad", dataBody, nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/data/sub-1?apiKey=key-1", "<<<", nil).StatusCode)

	resp := env.do(t, http.MethodPost, "/data/sub-1", dataBody, map[string]string{"x-api-key": "key-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/feed", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, feed.ContentTypeXML, resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc, err := siri.Decode(raw)
	require.NoError(t, err)
	require.Len(t, doc.VehicleActivities(), 1)
	assert.Equal(t, "V1", doc.VehicleActivities()[0].MonitoredVehicleJourney.VehicleRef)
}

func TestFeed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/feed?downloadVariant=gtfsrt", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, feed.ContentTypeProtobuf, resp.Header.Get("Content-Type"))

	resp = env.do(t, http.MethodGet, "/feed?operatorRef=FBRI&boundingBox=-3,51,-2,52", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc, err := siri.Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, doc.VehicleActivities())

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/feed?boundingBox=1,2,3", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/feed?downloadVariant=json", "", nil).StatusCode)
}

func TestConsumerSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	alice := map[string]string{"x-user-id": "alice"}
	bob := map[string]string{"x-user-id": "bob"}
	body := `{"name":"dashboard","url":"http://consumer.example/cb","requestorRef":"dash","updateInterval":20,"producerIds":["sub-1"],"boundingBox":"-3,51,-2,52"}`

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/consumer-subscriptions", body, nil).StatusCode)
	bad := strings.Replace(body, `"updateInterval":20`, `"updateInterval":25`, 1)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/consumer-subscriptions", bad, alice).StatusCode)
	unknown := strings.Replace(body, `"sub-1"`, `"sub-x"`, 1)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/consumer-subscriptions", unknown, alice).StatusCode)

	resp := env.do(t, http.MethodPost, "/consumer-subscriptions", body, alice)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	readJSON(t, resp, &created)
	id := created["id"]
	require.NotEmpty(t, id)
	assert.Len(t, env.queue.Pending(), 3, "arming a 20s cadence enqueues three ticks")

	resp = env.do(t, http.MethodGet, "/consumer-subscriptions", "", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []model.ConsumerSubscription
	readJSON(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 20, list[0].UpdateInterval)
	require.NotNil(t, list[0].BoundingBox)

	resp = env.do(t, http.MethodGet, "/consumer-subscriptions", "", bob)
	readJSON(t, resp, &list)
	assert.Empty(t, list)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/consumer-subscriptions/"+id, "", bob).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/consumer-subscriptions/"+id, "", alice).StatusCode)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/consumer-subscriptions/"+id, "", alice).StatusCode)
	assert.Empty(t, env.queue.Pending())
	sub, err := env.mem.GetConsumer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInactive, sub.Status)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).StatusCode)

	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "sirivm_")
}

type snapshotFeed struct{ url string }

func (snapshotFeed) Render(context.Context, feed.Variant, model.Filter) ([]byte, string, error) {
	return []byte("<Siri/>"), feed.ContentTypeXML, nil
}

func (s snapshotFeed) SnapshotURL(context.Context, feed.Variant) (string, error) {
	return s.url, nil
}

func TestFeed_RedirectsToSnapshot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(Deps{
		Feed:             snapshotFeed{url: "https://objects.example/feeds/vm.xml?sig=abc"},
		SnapshotRedirect: true,
		Logger:           logger,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://objects.example/feeds/vm.xml?sig=abc", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed?lineRef=72", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed?downloadVariant=gtfsrt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
