package events

import "sync"

// EventType represents the type of event
type EventType string

// Define event types
const (
	EventMatchCreated       EventType = "MATCH_CREATED"
	EventMoveProcessed      EventType = "MOVE_PROCESSED"
	EventGameCompleted      EventType = "GAME_COMPLETED"
	EventPlayerDisconnected EventType = "PLAYER_DISCONNECTED"
	EventPlayerReconnected  EventType = "PLAYER_RECONNECTED"
	EventGameForfeited      EventType = "GAME_FORFEITED"
	EventGameCancelled      EventType = "GAME_CANCELLED"
	EventPlayerDisqualified EventType = "PLAYER_DISQUALIFIED"
)

// eventTypeAll subscribes a handler to every event type
const eventTypeAll EventType = "*"

// Event represents an event in the system
type Event struct {
	Type    EventType
	GameID  string // Optional, can be empty for non-game events
	Payload interface{}
}

// Handler is a function that processes events
type Handler func(event Event)

// Publisher is the central event publisher
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// NewPublisher creates a new event publisher
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (p *Publisher) Subscribe(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers[eventType] = append(p.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (p *Publisher) SubscribeAll(handler Handler) {
	p.Subscribe(eventTypeAll, handler)
}

// Publish broadcasts an event to its subscribers and to "all events"
// handlers. Handlers run in their own goroutines.
func (p *Publisher) Publish(event Event) {
	p.mu.RLock()
	handlers := p.subscribers[event.Type]
	allHandlers := p.subscribers[eventTypeAll]
	p.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}

	for _, handler := range allHandlers {
		go handler(event)
	}
}
