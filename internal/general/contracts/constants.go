package contracts

// Exchanges
const (
	ExchangeMarketTopic = "market_topic"
)

// Queues
const (
	QueueRequestStatus    = "request_status"
	QueueBidActivity      = "bid_activity"
	QueuePaymentReconcile = "payment_reconcile"
)

// Routing patterns
const (
	RouteRequestStatusPrefix = "request.status."   // {status}
	RouteBidPrefix           = "request.bid."      // {request_id}
	RoutePaymentReconcile    = "payment.reconcile" // fixed key, one durable queue
)
