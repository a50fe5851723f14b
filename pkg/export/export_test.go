package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "analyses/abc.json", Key(KindAnalysis, "abc"))
	assert.Equal(t, "adaptive/x.json", Key("/adaptive/", " x "))
}

func TestMemoryExporter(t *testing.T) {
	m := NewMemoryExporter()
	require.NoError(t, m.Export(context.Background(), "b.json", map[string]int{"score": 80}))
	require.NoError(t, m.Export(context.Background(), "a.json", []string{"x"}))

	assert.Equal(t, []string{"a.json", "b.json"}, m.Keys())

	data, err := m.Get("b.json")
	require.NoError(t, err)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 80, decoded["score"])

	_, err = m.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryExporterRejectsUnmarshalable(t *testing.T) {
	m := NewMemoryExporter()
	err := m.Export(context.Background(), "k", make(chan int))
	assert.Error(t, err)
}

func TestNewS3ExporterValidatesConfig(t *testing.T) {
	_, err := NewS3Exporter(S3Config{})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewS3Exporter(S3Config{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "access key")

	_, err = NewS3Exporter(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket")

	exp, err := NewS3Exporter(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "interviews"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", exp.region)
}

func TestNopExporter(t *testing.T) {
	var e Exporter = NopExporter{}
	assert.NoError(t, e.Export(context.Background(), "k", nil))
}
