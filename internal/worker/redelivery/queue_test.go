package redelivery

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	received *sqs.ReceiveMessageOutput
	deleted  []string
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, params)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.received == nil {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	return f.received, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestQueueEnqueueCapsDelay(t *testing.T) {
	client := &fakeSQS{}
	q := NewQueue(client, "https://sqs.test/queue")

	err := q.Enqueue(context.Background(), Message{EventID: "evt-1", Attempt: 4}, 2*time.Hour)
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	assert.Equal(t, int32(900), client.sent[0].DelaySeconds)
	assert.JSONEq(t, `{"event_id":"evt-1","attempt":4}`, aws.ToString(client.sent[0].MessageBody))
}

func TestQueueReceiveDecodesBodies(t *testing.T) {
	client := &fakeSQS{
		received: &sqs.ReceiveMessageOutput{
			Messages: []sqstypes.Message{
				{Body: aws.String(`{"event_id":"evt-2","attempt":1}`), ReceiptHandle: aws.String("rh-1")},
				{Body: aws.String(`not json`), ReceiptHandle: aws.String("rh-2")},
			},
		},
	}
	q := NewQueue(client, "https://sqs.test/queue")

	msgs, err := q.Receive(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "evt-2", msgs[0].EventID)
	assert.Equal(t, 1, msgs[0].Attempt)
	assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)

	// A malformed body still carries its receipt handle so it can be acked.
	assert.Empty(t, msgs[1].EventID)
	assert.Equal(t, "rh-2", msgs[1].ReceiptHandle)
}

func TestQueueDeleteSkipsEmptyHandle(t *testing.T) {
	client := &fakeSQS{}
	q := NewQueue(client, "https://sqs.test/queue")

	require.NoError(t, q.Delete(context.Background(), ""))
	assert.Empty(t, client.deleted)

	require.NoError(t, q.Delete(context.Background(), "rh-9"))
	assert.Equal(t, []string{"rh-9"}, client.deleted)
}
