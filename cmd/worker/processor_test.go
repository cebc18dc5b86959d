package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/orders"
)

// --- mock implementations ---

type mockCloudWatch struct {
	calls   []*cloudwatch.PutMetricDataInput
	failErr error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	m.calls = append(m.calls, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func placedMessage(t *testing.T, ev orders.Placed) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	typ := orders.EventPlaced
	return events.SQSMessage{
		MessageId: "m-" + ev.OrderID,
		Body:      string(body),
		MessageAttributes: map[string]events.SQSMessageAttribute{
			"type": {StringValue: &typ, DataType: "String"},
		},
	}
}

// --- test cases ---

func TestWorkerProcess_Success(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewProcessor(mock, "Bagshop", zap.NewNop())

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ev := events.SQSEvent{Records: []events.SQSMessage{
		placedMessage(t, orders.Placed{OrderID: "o1", DisplayID: "001", Total: 246, Items: 2, OrderDate: at}),
		placedMessage(t, orders.Placed{OrderID: "o2", DisplayID: "002", Total: 100, Items: 1, OrderDate: at}),
	}}

	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unexpected worker error: %v", err)
	}
	if len(mock.calls) != 2 {
		t.Fatalf("expected 2 PutMetricData calls, got %d", len(mock.calls))
	}

	in := mock.calls[0]
	if *in.Namespace != "Bagshop" {
		t.Fatalf("unexpected namespace %q", *in.Namespace)
	}
	got := map[string]float64{}
	for _, d := range in.MetricData {
		got[*d.MetricName] = *d.Value
		if !d.Timestamp.Equal(at) {
			t.Fatalf("metric %s has timestamp %v, want %v", *d.MetricName, *d.Timestamp, at)
		}
	}
	if got[metricOrdersPlaced] != 1 || got[metricOrderRevenue] != 246 || got[metricOrderItems] != 2 {
		t.Fatalf("unexpected metric values: %v", got)
	}
}

func TestWorkerProcess_MalformedFailsBatch(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewProcessor(mock, "Bagshop", zap.NewNop())

	for _, body := range []string{`{not json`, `{"total":10}`} {
		ev := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "bad", Body: body}}}
		if err := p.Handle(context.Background(), ev); err == nil {
			t.Fatalf("expected error for body %s", body)
		}
	}
	if len(mock.calls) != 0 {
		t.Fatalf("expected no metrics, got %d calls", len(mock.calls))
	}
}

func TestWorkerProcess_SkipsOtherEvents(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewProcessor(mock, "Bagshop", zap.NewNop())

	typ := "order.cancelled"
	ev := events.SQSEvent{Records: []events.SQSMessage{{
		MessageId:         "other",
		Body:              `{"anything":true}`,
		MessageAttributes: map[string]events.SQSMessageAttribute{"type": {StringValue: &typ}},
	}}}
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.calls) != 0 {
		t.Fatalf("expected no metrics, got %d calls", len(mock.calls))
	}
}

func TestWorkerProcess_CloudWatchErrorIsReturned(t *testing.T) {
	mock := &mockCloudWatch{failErr: errors.New("throttled")}
	p := NewProcessor(mock, "Bagshop", zap.NewNop())

	ev := events.SQSEvent{Records: []events.SQSMessage{placedMessage(t, orders.Placed{OrderID: "o1", Total: 5})}}
	err := p.Handle(context.Background(), ev)
	if err == nil || !errors.Is(err, mock.failErr) {
		t.Fatalf("expected wrapped cloudwatch error, got %v", err)
	}
}

func TestWorkerProcess_MissingDateUsesNow(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewProcessor(mock, "Bagshop", zap.NewNop())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	p.nowFunc = func() time.Time { return now }

	ev := events.SQSEvent{Records: []events.SQSMessage{placedMessage(t, orders.Placed{OrderID: "o1", Total: 5})}}
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts := *mock.calls[0].MetricData[0].Timestamp; !ts.Equal(now) {
		t.Fatalf("expected timestamp %v, got %v", now, ts)
	}
}
