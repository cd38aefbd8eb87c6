//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

// startKafka launches a single-node Kafka container and returns its broker
// address. The container is torn down with the test.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("dsd-test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic on the broker's controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// mockSpectra builds a run of one-minute JWD spectra ramping up through a
// shower and back down, so the batch spans undefined fits (leading and
// trailing zero samples) and well-populated ones.
func mockSpectra(n int) []dsd.RawSpectrumRecord {
	base := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
	records := make([]dsd.RawSpectrumRecord, 0, n)
	for i := 0; i < n; i++ {
		nd := make([]float64, 20)
		// Zero spectra at both ends of the run.
		if i > 0 && i < n-1 {
			intensity := math.Sin(math.Pi * float64(i) / float64(n-1))
			for b := range nd {
				d := 0.3 + 0.1*float64(b)
				nd[b] = 8000 * intensity * math.Exp(-2.5*d)
			}
		}
		records = append(records, dsd.RawSpectrumRecord{
			Instrument: "jwd",
			Time:       base.Add(time.Duration(i) * time.Minute),
			Nd:         nd,
		})
	}
	return records
}
