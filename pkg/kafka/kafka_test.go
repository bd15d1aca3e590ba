package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/resilience"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Location string  `json:"location"`
	Price    float64 `json:"price"`
}

func TestTypeHeaderSurvivesConversion(t *testing.T) {
	msg, err := toMessage(Event{Key: "mumbai", Type: "prediction", Value: sample{"mumbai", 2.35}})
	require.NoError(t, err)
	require.Len(t, msg.Headers, 1)

	decoded := fromKafka(msg)
	assert.Equal(t, "prediction", decoded.Type)
	assert.Equal(t, []byte("mumbai"), decoded.Key)

	got, err := DecodeJSON[sample](decoded.Value)
	require.NoError(t, err)
	assert.Equal(t, sample{"mumbai", 2.35}, got)
}

func TestUntypedEventHasNoHeader(t *testing.T) {
	msg, err := toMessage(Event{Key: "k", Value: 1})
	require.NoError(t, err)
	assert.Empty(t, msg.Headers)
	assert.Empty(t, fromKafka(msg).Type)
}

func TestUnmarshalableValue(t *testing.T) {
	_, err := toMessage(Event{Key: "k", Type: "x", Value: make(chan int)})
	assert.Error(t, err)
}

func TestDecodeJSONMarksMalformed(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte(`{"price":`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDispatchRetriesTransientErrors(t *testing.T) {
	calls := 0
	c := &Consumer{
		handler: func(context.Context, Message) error {
			calls++
			if calls < 3 {
				return errors.New("aggregate busy")
			}
			return nil
		},
		retry: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond},
	}
	require.NoError(t, c.dispatch(context.Background(), kafka.Message{Topic: "prediction-events"}))
	assert.Equal(t, 3, calls)
}

func TestDispatchDoesNotRetryMalformed(t *testing.T) {
	calls := 0
	c := &Consumer{
		handler: func(context.Context, Message) error {
			calls++
			return fmt.Errorf("%w: bad payload", ErrMalformed)
		},
		retry: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond},
	}
	err := c.dispatch(context.Background(), kafka.Message{Topic: "prediction-events"})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 1, calls)
}
