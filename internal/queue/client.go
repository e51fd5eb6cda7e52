// Package queue wraps the asynq task plumbing for the extraction and
// consolidation pipeline.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/creditpipe/creditpipe/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueReportExtract schedules the extraction pipeline for a report.
// The timeout covers the whole backend chain including vendor polling.
func (c *Client) EnqueueReportExtract(payload ReportExtractPayload) error {
	return c.enqueue(TypeReportExtract, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

func (c *Client) EnqueueReportConsolidate(payload ReportConsolidatePayload) error {
	return c.enqueue(TypeReportConsolidate, payload, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
