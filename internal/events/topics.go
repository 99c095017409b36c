package events

// Topic constants for sale events.
const (
	TopicSaleCreated       = "sale.created"
	TopicPaymentRegistered = "sale.payment_registered"
	TopicSaleSentToLab     = "sale.sent_to_lab"
	TopicSaleReady         = "sale.ready"
	TopicSaleDelivered     = "sale.delivered"
	TopicSaleVoided        = "sale.voided"
)

// DefaultTopics returns every topic the sale workflow emits.
func DefaultTopics() []string {
	return []string{
		TopicSaleCreated,
		TopicPaymentRegistered,
		TopicSaleSentToLab,
		TopicSaleReady,
		TopicSaleDelivered,
		TopicSaleVoided,
	}
}
