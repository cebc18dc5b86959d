package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/aws"
	"github.com/imrishuroy/bagshop/internal/orders"
)

// Processor turns order.placed events into CloudWatch metrics.
type Processor struct {
	metrics   aws.CloudWatchAPI
	namespace string
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewProcessor creates a new worker processor with the CloudWatch client injected.
func NewProcessor(metrics aws.CloudWatchAPI, namespace string, logger *zap.Logger) *Processor {
	return &Processor{
		metrics:   metrics,
		namespace: namespace,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.logger.Info("received SQS batch", zap.Int("messages", len(ev.Records)))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			p.logger.Error("worker error", zap.String("messageId", rec.MessageId), zap.Error(err))
			return err
		}
	}
	return nil
}

func eventType(rec events.SQSMessage) string {
	attr, ok := rec.MessageAttributes[typeAttribute]
	if !ok || attr.StringValue == nil {
		return ""
	}
	return *attr.StringValue
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	if t := eventType(rec); t != "" && t != orders.EventPlaced {
		p.logger.Debug("skipping event", zap.String("type", t), zap.String("messageId", rec.MessageId))
		return nil
	}

	var ev orders.Placed
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ev.OrderID == "" {
		return fmt.Errorf("message %s has no order id", rec.MessageId)
	}

	at := ev.OrderDate
	if at.IsZero() {
		at = p.nowFunc()
	}
	_, err := p.metrics.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String(metricOrdersPlaced),
				Value:      sdkaws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  sdkaws.Time(at),
			},
			{
				MetricName: sdkaws.String(metricOrderRevenue),
				Value:      sdkaws.Float64(ev.Total),
				Unit:       cwtypes.StandardUnitNone,
				Timestamp:  sdkaws.Time(at),
			},
			{
				MetricName: sdkaws.String(metricOrderItems),
				Value:      sdkaws.Float64(float64(ev.Items)),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  sdkaws.Time(at),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metrics for order %s: %w", ev.OrderID, err)
	}

	p.logger.Info("recorded order metrics",
		zap.String("orderId", ev.OrderID),
		zap.String("displayId", ev.DisplayID),
		zap.Float64("total", ev.Total),
	)
	return nil
}
