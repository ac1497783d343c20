package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	name  string
	reads []string
}

func (s *recordingStore) Read(ctx context.Context, name string) ([]byte, error) {
	s.reads = append(s.reads, name)
	return []byte(s.name), nil
}

func (s *recordingStore) Write(ctx context.Context, name string, data []byte) error {
	return nil
}

func (s *recordingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return []string{s.name}, nil
}

func TestRouter_Dispatch(t *testing.T) {
	file := &recordingStore{name: "file"}
	stage := &recordingStore{name: "stage"}
	mongo := &recordingStore{name: "mongo"}
	r := NewRouter(file, WithStage(stage), WithMongo(mongo))

	tests := []struct {
		source string
		want   string
	}{
		{"data_dictionary.yaml", "file"},
		{"dicts/sales.json", "file"},
		{"@stage/sales.yaml", "stage"},
		{"s3://bucket/sales.yaml", "stage"},
		{"mongo://sales", "mongo"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			data, err := r.Read(context.Background(), tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}

	assert.Equal(t, []string{"@stage/sales.yaml", "s3://bucket/sales.yaml"}, stage.reads)
}

func TestRouter_Unconfigured(t *testing.T) {
	r := NewRouter(&recordingStore{name: "file"})

	_, err := r.Read(context.Background(), "@stage/sales.yaml")
	assert.ErrorContains(t, err, "stage store is not configured")

	_, err = r.Read(context.Background(), "mongo://sales")
	assert.ErrorContains(t, err, "mongo store is not configured")
}
