package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowed = []string{"jpeg", "jpg", "png", "webp"}

func TestExtension(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		want        string
		wantErr     bool
	}{
		{"jpg", "photo.JPG", "image/jpeg", "jpg", false},
		{"png with params", "a.png", "image/png; charset=binary", "png", false},
		{"webp", "a.webp", "image/webp", "webp", false},
		{"gif rejected", "a.gif", "image/gif", "", true},
		{"mismatched mime", "a.png", "image/jpeg", "", true},
		{"no extension", "photo", "image/jpeg", "", true},
		{"text", "a.jpg", "text/plain", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extension(tt.filename, tt.contentType, allowed)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectName(t *testing.T) {
	name := ObjectName("png")
	assert.Regexp(t, regexp.MustCompile(`^equipment-\d+-\d+\.png$`), name)
	assert.Equal(t, "image/png", ContentType("PNG"))
}

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir, "uploads/")
	require.NoError(t, err)
	assert.Equal(t, "/uploads", store.URLPrefix())
	ctx := context.Background()

	ref, err := store.Save(ctx, "equipment-1-2.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/equipment-1-2.png", ref)

	data, err := os.ReadFile(filepath.Join(dir, "equipment-1-2.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = store.Save(ctx, "equipment-1-2.png", "image/png", strings.NewReader("again"))
	assert.Error(t, err, "existing files are never overwritten")

	_, err = store.Save(ctx, "../escape.png", "image/png", strings.NewReader("x"))
	assert.Error(t, err)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(dir, "equipment-1-2.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, ref), "deleting twice is fine")
	assert.ErrorIs(t, store.Delete(ctx, "https://elsewhere/x.png"), ErrForeignRef)
	assert.ErrorIs(t, store.Delete(ctx, "/uploads/../../etc/passwd"), ErrForeignRef)
}

type fakeS3 struct {
	puts    map[string]string
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts[aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{puts: map[string]string{}}
	store := NewS3Store(client, "bucket", "https://cdn.example.com/")
	ctx := context.Background()

	ref, err := store.Save(ctx, "equipment-1-2.jpg", "image/jpeg", strings.NewReader("jpg"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/equipment-1-2.jpg", ref)
	assert.Equal(t, "jpg", client.puts["equipment-1-2.jpg"])

	require.NoError(t, store.Delete(ctx, ref))
	assert.Equal(t, []string{"equipment-1-2.jpg"}, client.deletes)
	assert.ErrorIs(t, store.Delete(ctx, "/uploads/x.jpg"), ErrForeignRef)

	client.err = errors.New("access denied")
	_, err = store.Save(ctx, "x.jpg", "image/jpeg", strings.NewReader("x"))
	assert.Error(t, err)
}
