package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts      []*s3.PutObjectInput
	batches   [][]string
	failKey   string
	deleteErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	out := &s3.DeleteObjectsOutput{}
	keys := make([]string, 0, len(in.Delete.Objects))
	for _, o := range in.Delete.Objects {
		keys = append(keys, *o.Key)
		if *o.Key == f.failKey {
			out.Errors = append(out.Errors, types.Error{Key: o.Key, Code: aws.String("AccessDenied")})
			continue
		}
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: o.Key})
	}
	f.batches = append(f.batches, keys)
	return out, nil
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "https://s3.example.com", endpointURL("s3.example.com", true))
	assert.Equal(t, "http://already:9000", endpointURL("http://already:9000", true))
}

func TestAttachmentKey(t *testing.T) {
	assert.Equal(t, "clients/c1/a1/xray.png", AttachmentKey("c1", "a1", "xray.png"))
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{}
	store := &S3Store{client: fake, bucket: "clinic"}

	err := store.Put(context.Background(), "clients/c/a/x.pdf", "application/pdf", strings.NewReader("%PDF"), 4)
	require.NoError(t, err)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "clinic", *fake.puts[0].Bucket)
	assert.Equal(t, "application/pdf", *fake.puts[0].ContentType)
	body, _ := io.ReadAll(fake.puts[0].Body)
	assert.Equal(t, "%PDF", string(body))
}

func TestS3Store_DeleteByKeys_BatchesAndReportsFailures(t *testing.T) {
	keys := make([]string, 0, 1500)
	for i := 0; i < 1500; i++ {
		keys = append(keys, fmt.Sprintf("k%d", i))
	}
	fake := &fakeS3{failKey: "k7"}
	store := &S3Store{client: fake, bucket: "clinic"}

	deleted, err := store.DeleteByKeys(context.Background(), keys)

	require.NoError(t, err)
	assert.Len(t, fake.batches, 2)
	assert.Len(t, fake.batches[0], 1000)
	assert.Len(t, fake.batches[1], 500)
	assert.Len(t, deleted, 1499)
	assert.NotContains(t, deleted, "k7")
}

func TestS3Store_DeleteByKeys_Error(t *testing.T) {
	store := &S3Store{client: &fakeS3{deleteErr: errors.New("boom")}, bucket: "clinic"}

	deleted, err := store.DeleteByKeys(context.Background(), []string{"a"})

	assert.Error(t, err)
	assert.Empty(t, deleted)
}

func TestS3Store_DeleteByKeys_Empty(t *testing.T) {
	fake := &fakeS3{}
	deleted, err := (&S3Store{client: fake, bucket: "b"}).DeleteByKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.Empty(t, fake.batches)
}
