package detector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamdt203/csv-import-service/internal/domain"
)

type fakeRecordSource struct {
	ids   []string
	err   error
	since time.Time
}

func (f *fakeRecordSource) ChangedRecordIDsSince(_ context.Context, since time.Time) ([]string, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

type fakeFanoutPublisher struct {
	err       error
	exchanges []string
	bodies    [][]byte
}

func (f *fakeFanoutPublisher) PublishFanout(_ context.Context, exchange string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.exchanges = append(f.exchanges, exchange)
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeWatermark struct {
	last     time.Time
	ok       bool
	readErr  error
	advanced []time.Time
}

func (f *fakeWatermark) Last(_ context.Context) (time.Time, bool, error) {
	return f.last, f.ok, f.readErr
}

func (f *fakeWatermark) Advance(_ context.Context, t time.Time) error {
	f.advanced = append(f.advanced, t)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDetector(records RecordSource, publisher FanoutPublisher, watermark Watermark, now time.Time) *Detector {
	d := NewDetector(testLogger(), records, publisher, watermark, &Config{
		Interval:      5 * time.Minute,
		WarmUp:        time.Second,
		FanoutEnabled: true,
		Exchange:      "csv-changes-topic",
		InstanceID:    "test-instance",
	})
	d.now = func() time.Time { return now }
	return d
}

func TestDetectAndPublish(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no changes publishes nothing", func(t *testing.T) {
		records := &fakeRecordSource{}
		publisher := &fakeFanoutPublisher{}

		count, published, err := newTestDetector(records, publisher, nil, now).DetectAndPublish(ctx, time.Time{})

		require.NoError(t, err)
		assert.Zero(t, count)
		assert.False(t, published)
		assert.Empty(t, publisher.bodies)
	})

	t.Run("changes broadcast one notification", func(t *testing.T) {
		records := &fakeRecordSource{ids: []string{"r1", "r2", "r3"}}
		publisher := &fakeFanoutPublisher{}

		count, published, err := newTestDetector(records, publisher, nil, now).DetectAndPublish(ctx, time.Time{})

		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.True(t, published)
		require.Len(t, publisher.bodies, 1)
		assert.Equal(t, "csv-changes-topic", publisher.exchanges[0])

		var notification domain.ChangeNotification
		require.NoError(t, json.Unmarshal(publisher.bodies[0], &notification))
		assert.Equal(t, domain.ChangeKindRecords, notification.Kind)
		assert.Equal(t, 3, notification.TotalChanges)
		assert.Equal(t, []string{"r1", "r2", "r3"}, notification.RecordIDs)
		assert.Equal(t, "test-instance", notification.InstanceID)
		assert.Equal(t, now, notification.WindowEnd.UTC())
	})

	t.Run("disabled fanout still reports the count", func(t *testing.T) {
		records := &fakeRecordSource{ids: []string{"r1"}}
		publisher := &fakeFanoutPublisher{}

		d := newTestDetector(records, publisher, nil, now)
		d.config.FanoutEnabled = false

		count, published, err := d.DetectAndPublish(ctx, time.Time{})

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.False(t, published)
		assert.Empty(t, publisher.bodies)
	})

	t.Run("explicit window start is used verbatim", func(t *testing.T) {
		records := &fakeRecordSource{}
		start := now.Add(-time.Hour)

		_, _, err := newTestDetector(records, &fakeFanoutPublisher{}, nil, now).DetectAndPublish(ctx, start)

		require.NoError(t, err)
		assert.Equal(t, start, records.since)
	})

	t.Run("zero window start falls back to one interval", func(t *testing.T) {
		records := &fakeRecordSource{}

		_, _, err := newTestDetector(records, &fakeFanoutPublisher{}, nil, now).DetectAndPublish(ctx, time.Time{})

		require.NoError(t, err)
		assert.Equal(t, now.Add(-5*time.Minute), records.since)
	})

	t.Run("watermark supplies the window start", func(t *testing.T) {
		records := &fakeRecordSource{}
		watermark := &fakeWatermark{last: now.Add(-17 * time.Minute), ok: true}

		_, _, err := newTestDetector(records, &fakeFanoutPublisher{}, watermark, now).DetectAndPublish(ctx, time.Time{})

		require.NoError(t, err)
		assert.Equal(t, now.Add(-17*time.Minute), records.since)
	})

	t.Run("unreadable watermark degrades to interval window", func(t *testing.T) {
		records := &fakeRecordSource{}
		watermark := &fakeWatermark{readErr: errors.New("redis down")}

		_, _, err := newTestDetector(records, &fakeFanoutPublisher{}, watermark, now).DetectAndPublish(ctx, time.Time{})

		require.NoError(t, err)
		assert.Equal(t, now.Add(-5*time.Minute), records.since)
	})

	t.Run("watermark advances to the window end", func(t *testing.T) {
		records := &fakeRecordSource{}
		watermark := &fakeWatermark{}

		_, _, err := newTestDetector(records, &fakeFanoutPublisher{}, watermark, now).DetectAndPublish(ctx, time.Time{})

		require.NoError(t, err)
		require.Len(t, watermark.advanced, 1)
		assert.Equal(t, now, watermark.advanced[0])
	})

	t.Run("scan failure surfaces and publishes nothing", func(t *testing.T) {
		records := &fakeRecordSource{err: errors.New("db unavailable")}
		publisher := &fakeFanoutPublisher{}

		_, published, err := newTestDetector(records, publisher, nil, now).DetectAndPublish(ctx, time.Time{})

		assert.Error(t, err)
		assert.False(t, published)
		assert.Empty(t, publisher.bodies)
	})

	t.Run("publish failure surfaces", func(t *testing.T) {
		records := &fakeRecordSource{ids: []string{"r1"}}
		publisher := &fakeFanoutPublisher{err: errors.New("broker down")}

		count, published, err := newTestDetector(records, publisher, nil, now).DetectAndPublish(ctx, time.Time{})

		assert.Error(t, err)
		assert.Equal(t, 1, count)
		assert.False(t, published)
	})
}

func TestSubscriberRun(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		s := NewSubscriber(testLogger(), "test-instance")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.Run(ctx, make(chan amqp.Delivery))
		assert.NoError(t, err)
	})

	t.Run("stops when the delivery channel closes", func(t *testing.T) {
		s := NewSubscriber(testLogger(), "test-instance")

		deliveries := make(chan amqp.Delivery, 1)
		body, err := json.Marshal(domain.ChangeNotification{
			Kind:         domain.ChangeKindRecords,
			TotalChanges: 1,
			RecordIDs:    []string{"r1"},
		})
		require.NoError(t, err)
		deliveries <- amqp.Delivery{Body: body}
		close(deliveries)

		assert.NoError(t, s.Run(context.Background(), deliveries))
	})
}
