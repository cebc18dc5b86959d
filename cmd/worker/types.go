package main

// Metric names published per order.placed event.
const (
	metricOrdersPlaced = "OrdersPlaced"
	metricOrderRevenue = "OrderRevenue"
	metricOrderItems   = "OrderItems"
)

// typeAttribute is the SQS message attribute carrying the event type.
const typeAttribute = "type"
