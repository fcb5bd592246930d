package kafkaconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " broker-1:9092, ,broker-2:9092 ")
	t.Setenv(EnvKafkaProducerCompression, "LZ4")
	t.Setenv(EnvKafkaProducerWriteTimeout, "not-a-duration")
	t.Setenv(EnvKafkaProducerAsync, "true")

	cfg := Load()

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Brokers)
	assert.Equal(t, "lz4", cfg.ProducerCompression)
	assert.Equal(t, DefaultProducerWriteTimeout, cfg.ProducerWriteTimeout)
	assert.True(t, cfg.ProducerAsync)
	assert.Equal(t, DefaultClientID, cfg.ClientID)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		ProducerMaxAttempts:  0,
		ProducerBatchTimeout: time.Millisecond,
		ProducerWriteTimeout: time.Second,
		ProducerRequireAcks:  2,
		ProducerCompression:  "brotli",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")
	assert.Contains(t, err.Error(), "ProducerMaxAttempts")
	assert.Contains(t, err.Error(), "ProducerRequireAcks")
	assert.Contains(t, err.Error(), "ProducerCompression")
}
