package rabbitmq

// ExchangeName — exchange для событий биллинга.
const ExchangeName = "billing.events"

// Routing keys событий биллинга.
const (
	RoutingKeyTrialStarted         = "trial.started"
	RoutingKeySubscriptionCanceled = "subscription.canceled"
)

// QueueConfig описывает очередь и ее routing key.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues возвращает очереди событий биллинга.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "billing.trial", RoutingKey: RoutingKeyTrialStarted},
		{QueueName: "billing.canceled", RoutingKey: RoutingKeySubscriptionCanceled},
	}
}
