package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/strata-systems/strata/pkg/types"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, ok := f.objects[key]; ok {
			return nil, errors.New("PreconditionFailed: object already exists")
		}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// CopySource is bucket/key; the bucket segment is one path element.
	src := aws.ToString(in.CopySource)
	if i := strings.IndexByte(src, '/'); i >= 0 {
		src = src[i+1:]
	}
	data, ok := f.objects[src]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	f.objects[aws.ToString(in.Key)] = append([]byte(nil), data...)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func TestS3_RoundTrip(t *testing.T) {
	store := NewS3FromClient(newFakeS3(), "strata-snapshots", "prod")
	ctx := context.Background()

	data := []byte("x,y\n1,2\n")
	require.NoError(t, store.Put(ctx, "ds1/a.csv", data))

	got, err := store.Get(ctx, "ds1/a.csv")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	size, err := store.Size(ctx, "ds1/a.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
}

func TestS3_PutNeverOverwrites(t *testing.T) {
	store := NewS3FromClient(newFakeS3(), "strata-snapshots", "")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ds1/a.csv", []byte("one")))
	err := store.Put(ctx, "ds1/a.csv", []byte("two"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindStorageError))
}

func TestS3_Copy(t *testing.T) {
	store := NewS3FromClient(newFakeS3(), "strata-snapshots", "prod")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ds1/a.csv", []byte("payload")))
	require.NoError(t, store.Copy(ctx, "ds1/a.csv", "ds1/b.csv"))

	got, err := store.Get(ctx, "ds1/b.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestS3_GetNotFound(t *testing.T) {
	store := NewS3FromClient(newFakeS3(), "strata-snapshots", "")
	_, err := store.Get(context.Background(), "ds1/missing.csv")
	assert.True(t, types.IsKind(err, types.KindNotFound))
}
