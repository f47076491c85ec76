package worker

// Subscriber attaches event handlers to the dispatcher it was built with.
type Subscriber interface {
	RegisterHandlers()
}

// StartNotificationWorker registers the notification handlers once at startup.
func StartNotificationWorker(subscriber Subscriber) {
	if subscriber == nil {
		return
	}
	subscriber.RegisterHandlers()
}
