package archive

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura/procura/store"
)

type fakeUploader struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(input.Bucket)
	f.key = aws.ToString(input.Key)
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &manager.UploadOutput{}, nil
}

func TestArchiveUploadsTranscript(t *testing.T) {
	up := &fakeUploader{}
	a := newS3("transcripts", up)
	a.now = func() time.Time { return time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC) }

	location, err := a.Archive(context.Background(), &Transcript{
		Conversation: &store.Conversation{UID: "conv-1", Title: "Pens", Status: store.ConversationCompleted},
		Messages: []*store.Message{
			{Sender: store.SenderUser, Content: "search pens"},
			{Sender: store.SenderAgent, Content: "Found 2 items."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://transcripts/conversations/2026/03/conv-1.json", location)
	assert.Equal(t, "transcripts", up.bucket)
	assert.Equal(t, "conversations/2026/03/conv-1.json", up.key)

	var got Transcript
	require.NoError(t, json.Unmarshal(up.body, &got))
	assert.Equal(t, "conv-1", got.Conversation.UID)
	assert.Len(t, got.Messages, 2)
	assert.NotZero(t, got.ArchivedTs)
}

func TestArchiveErrors(t *testing.T) {
	a := newS3("b", &fakeUploader{err: errors.New("access denied")})
	_, err := a.Archive(context.Background(), &Transcript{Conversation: &store.Conversation{UID: "c"}})
	assert.ErrorContains(t, err, "access denied")

	_, err = a.Archive(context.Background(), &Transcript{})
	assert.Error(t, err)
}
