package writeback

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// Queue hands variants to the write-back worker over asynq instead of
// writing from the handler process.
type Queue struct {
	logger *log.Logger
	client *asynq.Client
	queue  string
}

func NewQueue(logger *log.Logger, redisOpt asynq.RedisClientOpt, queueName string) *Queue {
	return &Queue{
		logger: logger,
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

func (q *Queue) Store(v Variant) {
	task, err := NewStoreVariantTask(v)
	if err != nil {
		q.logger.Printf("write-back enqueue failed key=%s err=%v", v.Key, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = q.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	)
	if err != nil {
		q.logger.Printf("write-back enqueue failed key=%s err=%v", v.Key, err)
	}
}

func (q *Queue) Close() error {
	return q.client.Close()
}
