package presets

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/api/pkg/domain/permission"
)

type fakeObjects struct {
	objects     map[string]string
	bucket, key string
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	body, ok := f.objects[f.bucket+"/"+f.key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoadS3(t *testing.T) {
	client := &fakeObjects{objects: map[string]string{
		"tables/deal-room/presets.yaml": sample,
		"tables/broken.yaml":            "presets: [",
	}}

	tables, err := LoadS3(context.Background(), client, "s3://tables/deal-room/presets.yaml")
	require.NoError(t, err)
	assert.Equal(t, "tables", client.bucket)
	assert.Equal(t, "deal-room/presets.yaml", client.key)
	assert.True(t, tables.Presets.Has("owner"))

	_, err = LoadS3(context.Background(), client, "s3://tables/missing.yaml")
	assert.ErrorContains(t, err, "NoSuchKey")

	_, err = LoadS3(context.Background(), client, "s3://tables/broken.yaml")
	assert.ErrorIs(t, err, permission.ErrInvalidTable)
}

func TestParseS3Location(t *testing.T) {
	tests := []struct {
		location    string
		bucket, key string
		wantErr     bool
	}{
		{location: "s3://bucket/presets.yaml", bucket: "bucket", key: "presets.yaml"},
		{location: "s3://bucket/a/b/c.yaml", bucket: "bucket", key: "a/b/c.yaml"},
		{location: "s3://bucket/", wantErr: true},
		{location: "s3:///key.yaml", wantErr: true},
		{location: "https://bucket/key.yaml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			bucket, key, err := parseS3Location(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestIsS3Location(t *testing.T) {
	assert.True(t, IsS3Location("s3://bucket/key"))
	assert.False(t, IsS3Location("/etc/dealroom/presets.yaml"))
	assert.False(t, IsS3Location(""))
}

func TestLoadResolver_Local(t *testing.T) {
	r, err := LoadResolver(context.Background(), "", S3Config{})
	require.NoError(t, err)
	assert.True(t, r.Presets().Has(permission.PresetCreator))
}
