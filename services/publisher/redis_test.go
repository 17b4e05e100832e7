package publisher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFor(t *testing.T) {
	publisher := NewRedisPublisher("localhost:6379", 0, "doctors", 4, 100)
	defer publisher.Close()

	key := "https://www.marham.pk/doctors/lahore/dermatologist/dr-ayesha-khan"
	stream := publisher.StreamFor(key)
	assert.True(t, strings.HasPrefix(stream, "doctors:"))
	assert.Equal(t, stream, publisher.StreamFor(key), "a key always maps to the same stream")

	single := NewRedisPublisher("localhost:6379", 0, "doctors", 0, 100)
	defer single.Close()
	assert.Equal(t, "doctors:0", single.StreamFor(key))
}

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_r", 1, 100)
	defer publisher.Close()

	// Test if Redis is available
	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()

	err := client.XGroupCreateMkStream(ctx, "test_stream_r:0", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		require.NoError(t, err)
	}

	messages := make(chan map[string]interface{}, 1)
	go func() {
		result, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_stream_r:0", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    0,
		}).Result()
		if err == nil && len(result) > 0 && len(result[0].Messages) > 0 {
			messages <- result[0].Messages[0].Values
		}
	}()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, publisher.Publish(ctx, "doctor-1", []byte("test_message")))

	select {
	case values := <-messages:
		// The message should be base64 encoded
		assert.Equal(t, "dGVzdF9tZXNzYWdl", values[MessageField]) // base64 of "test_message"
		assert.Equal(t, "doctor-1", values["key"])
	case <-time.After(time.Second):
		t.Error("Timed out waiting for message")
	}

	assert.NoError(t, publisher.TrimStreams(ctx))
}
