package redelivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Message is one queued redelivery request.
type Message struct {
	EventID string `json:"event_id"`
	Attempt int    `json:"attempt"`
}

// QueuedMessage pairs a decoded Message with its SQS receipt handle.
type QueuedMessage struct {
	Message
	ReceiptHandle string
}

// sqsAPI is the slice of the SQS client the queue uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Queue is the SQS-backed redelivery queue. Delayed sends give parked
// events their backoff without any in-process timer state.
type Queue struct {
	client   sqsAPI
	queueURL string
}

func NewQueue(client sqsAPI, queueURL string) *Queue {
	if client == nil {
		panic("redelivery: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("redelivery: SQS queueURL cannot be empty")
	}
	return &Queue{client: client, queueURL: queueURL}
}

// maxSQSDelay is the SQS DelaySeconds ceiling.
const maxSQSDelay = 900 * time.Second

func (q *Queue) Enqueue(ctx context.Context, msg Message, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redelivery: marshal message: %w", err)
	}
	if delay < 0 {
		delay = 0
	}
	if delay > maxSQSDelay {
		delay = maxSQSDelay
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(q.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: int32(delay / time.Second),
	})
	if err != nil {
		return fmt.Errorf("redelivery: send SQS message: %w", err)
	}
	return nil
}

func (q *Queue) Receive(ctx context.Context, maxMessages, waitSeconds int) ([]QueuedMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("redelivery: receive SQS messages: %w", err)
	}

	messages := make([]QueuedMessage, 0, len(output.Messages))
	for _, raw := range output.Messages {
		var msg Message
		if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &msg); err != nil {
			// Malformed bodies are dropped on delete below; keep the
			// receipt handle so the caller can acknowledge them.
			msg = Message{}
		}
		messages = append(messages, QueuedMessage{
			Message:       msg,
			ReceiptHandle: aws.ToString(raw.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("redelivery: delete SQS message: %w", err)
	}
	return nil
}
