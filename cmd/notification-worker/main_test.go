package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestReadWorkerConfig(t *testing.T) {
	cfg, err := readWorkerConfig(lookupFrom(map[string]string{
		envKafkaBrokers: "kafka-1:9092, kafka-2:9092",
		envMaxRetries:   "5",
		envSendTimeout:  "2s",
		envResendAPIKey: " re_test ",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.brokers)
	assert.Equal(t, defaultGroupID, cfg.groupID)
	assert.Equal(t, 5, cfg.maxRetries)
	assert.Equal(t, 2*time.Second, cfg.sendTimeout)
	assert.Equal(t, "re_test", cfg.resendAPIKey)
	assert.Equal(t, defaultMetricsAddr, cfg.metricsAddr)
}

func TestReadWorkerConfigErrors(t *testing.T) {
	cases := []map[string]string{
		{},
		{envKafkaBrokers: "k:9092", envMaxRetries: "0"},
		{envKafkaBrokers: "k:9092", envSendTimeout: "soon"},
	}
	for _, env := range cases {
		_, err := readWorkerConfig(lookupFrom(env))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	}
}

type recordingSender struct {
	err      error
	deadline bool
	sent     []domain.Notification
}

func (s *recordingSender) Send(ctx context.Context, n domain.Notification) error {
	_, s.deadline = ctx.Deadline()
	s.sent = append(s.sent, n)
	return s.err
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	sender, err := newSender(workerConfig{sendTimeout: time.Second}, prometheus.NewRegistry(), log.WithField("test", t.Name()))
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), domain.Notification{Type: domain.NotificationStatusUpdate, OrderID: "FC-1", Email: "a@example.com", Name: "Ada", Status: domain.OrderStatusShipped}))
}

func TestMeteredSenderCountsResults(t *testing.T) {
	registry := prometheus.NewRegistry()
	sender, err := newSender(workerConfig{sendTimeout: time.Second}, registry, log.WithField("test", t.Name()))
	require.NoError(t, err)

	inner := &recordingSender{}
	metered := sender.(*meteredSender)
	metered.next = inner

	require.NoError(t, metered.Send(context.Background(), domain.Notification{Type: domain.NotificationStatusUpdate, OrderID: "FC-1"}))
	inner.err = errors.New("provider down")
	require.Error(t, metered.Send(context.Background(), domain.Notification{Type: domain.NotificationStatusUpdate, OrderID: "FC-2"}))

	assert.True(t, inner.deadline, "send must run with a deadline")
	assert.Len(t, inner.sent, 2)
	count, err := testutil.GatherAndCount(registry, "flashcart_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

type fakeConsumer struct {
	started  bool
	stopped  bool
	startErr error
}

func (f *fakeConsumer) Start(context.Context) error {
	f.started = true
	return f.startErr
}

func (f *fakeConsumer) Stop() error {
	f.stopped = true
	return nil
}

func TestRunStopsConsumerOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	consumer := &fakeConsumer{}

	require.NoError(t, run(ctx, consumer, log.WithField("test", t.Name())))
	assert.True(t, consumer.started)
	assert.True(t, consumer.stopped)

	failing := &fakeConsumer{startErr: errors.New("no brokers")}
	require.Error(t, run(context.Background(), failing, log.WithField("test", t.Name())))
	assert.False(t, failing.stopped)
}
