package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storylinez/storylinez-go/internal/config"
)

type fakePutter struct {
	bucket, key, contentType string
	length int64
	body   []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.length = aws.ToInt64(in.ContentLength)
	b, err := io.ReadAll(in.Body)
	f.body = b
	return &s3.PutObjectOutput{}, err
}

func TestArchiveRender(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	defer src.Close()

	put := &fakePutter{}
	a := NewArchiver(put, "renders-bucket", "https://cdn.example.com/", nil)

	url, err := a.ArchiveRender(context.Background(), "p-1", "r-1", src.URL+"/video.mp4")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/renders/p-1/r-1.mp4", url)
	assert.Equal(t, "renders-bucket", put.bucket)
	assert.Equal(t, "renders/p-1/r-1.mp4", put.key)
	assert.Equal(t, "video/mp4", put.contentType)
	assert.Equal(t, int64(9), put.length)
	assert.Equal(t, "mp4-bytes", string(put.body))
}

func TestArchiveRender_SourceError(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer src.Close()

	put := &fakePutter{}
	a := NewArchiver(put, "b", "", nil)

	_, err := a.ArchiveRender(context.Background(), "p-1", "r-1", src.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Empty(t, put.key)
}

func TestPublicURL_Fallback(t *testing.T) {
	a := NewArchiver(&fakePutter{}, "b", "", nil)
	assert.Equal(t, "https://b.r2.cloudflarestorage.com/renders/p/r.mp4", a.PublicURL(Key("p", "r")))
}

func TestNewR2Archiver_Incomplete(t *testing.T) {
	_, err := NewR2Archiver(context.Background(), config.R2Config{AccountID: "acc"}, nil)
	assert.EqualError(t, err, "R2 configuration incomplete")
}
