package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = encodeValue(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	_, err = encodeValue(func() {})
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression("whatever"))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestNewProducerHashBalancer(t *testing.T) {
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(true))
	require.NoError(t, err)
	defer p.Close()
	_, ok := p.writer.Balancer.(*kafka.Hash)
	assert.True(t, ok)
}
