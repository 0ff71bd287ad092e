package events

// Topics emitted when processor callbacks settle an order.
const (
	TopicOrderPaid     = "order.paid"
	TopicPaymentFailed = "payment.failed"
)

// DefaultTopics returns the topics the payment flow emits.
func DefaultTopics() []string {
	return []string{TopicOrderPaid, TopicPaymentFailed}
}
