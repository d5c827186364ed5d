package service

// EventType defines the type of event
type EventType string

const (
	EventHostCreated      EventType = "host_created"
	EventHostUpdated      EventType = "host_updated"
	EventHostsMerged      EventType = "hosts_merged"
	EventConflictRaised   EventType = "conflict_raised"
	EventConflictResolved EventType = "conflict_resolved"
	EventDeviceCreated    EventType = "device_created"
	EventDeviceLinked     EventType = "device_linked"
	EventDeviceUnlinked   EventType = "device_unlinked"
	EventRunStarted       EventType = "run_started"
	EventRunFinished      EventType = "run_finished"
	EventRecordsImported  EventType = "records_imported"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
