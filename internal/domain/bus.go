package domain

// MessageBus routes events between the webhook channel and the dispatcher.
type MessageBus interface {
	Publish(ev Event)
	Subscribe() <-chan Event
	SendOutbound(msg OutboundMessage)
	OnOutbound(channelName string, handler func(OutboundMessage))
	Close()
}
