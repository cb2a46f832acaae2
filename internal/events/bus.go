package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventOrderPlaced    EventType = "ORDER_PLACED"
	EventPositionOpened EventType = "POSITION_OPENED"
	EventPositionUpdate EventType = "POSITION_UPDATE"
	EventPositionClosed EventType = "POSITION_CLOSED"
	EventStopUpdated    EventType = "STOP_UPDATED"
	EventPriceUpdate    EventType = "PRICE_UPDATE"
	EventAccountUpdate  EventType = "ACCOUNT_UPDATE"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishOrderPlaced publishes an order placed event
func (eb *EventBus) PublishOrderPlaced(baseID, symbol, direction string, quantity int, entryPrice, stopLoss float64) {
	eb.Publish(Event{
		Type: EventOrderPlaced,
		Data: map[string]interface{}{
			"base_id":     baseID,
			"symbol":      symbol,
			"direction":   direction,
			"quantity":    quantity,
			"entry_price": entryPrice,
			"stop_loss":   stopLoss,
		},
	})
}

// PublishPositionOpened publishes a position opened event
func (eb *EventBus) PublishPositionOpened(symbol, direction string, quantity int, entryPrice, stopLoss float64) {
	eb.Publish(Event{
		Type: EventPositionOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"direction":   direction,
			"quantity":    quantity,
			"entry_price": entryPrice,
			"stop_loss":   stopLoss,
		},
	})
}

// PublishPositionClosed publishes a position closed event
func (eb *EventBus) PublishPositionClosed(symbol string, exitPrice, realizedPnL, rMultiple float64) {
	eb.Publish(Event{
		Type: EventPositionClosed,
		Data: map[string]interface{}{
			"symbol":       symbol,
			"exit_price":   exitPrice,
			"realized_pnl": realizedPnL,
			"r_multiple":   rMultiple,
		},
	})
}

// PublishPositionUpdate publishes a position update event
func (eb *EventBus) PublishPositionUpdate(symbol string, currentPrice, unrealizedPnL, rMultiple float64) {
	eb.Publish(Event{
		Type: EventPositionUpdate,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"current_price":  currentPrice,
			"unrealized_pnl": unrealizedPnL,
			"r_multiple":     rMultiple,
		},
	})
}

// PublishStopUpdated publishes a stop move event
func (eb *EventBus) PublishStopUpdated(symbol string, oldStop, newStop float64, triggered bool) {
	eb.Publish(Event{
		Type: EventStopUpdated,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"old_stop":  oldStop,
			"new_stop":  newStop,
			"triggered": triggered,
		},
	})
}

// PublishAccountUpdate publishes an account snapshot event
func (eb *EventBus) PublishAccountUpdate(account string, netLiquidation, buyingPower float64) {
	eb.Publish(Event{
		Type: EventAccountUpdate,
		Data: map[string]interface{}{
			"account":         account,
			"net_liquidation": netLiquidation,
			"buying_power":    buyingPower,
		},
	})
}

// PublishPriceUpdate publishes a price update event
func (eb *EventBus) PublishPriceUpdate(symbol string, price float64) {
	eb.Publish(Event{
		Type: EventPriceUpdate,
		Data: map[string]interface{}{
			"symbol": symbol,
			"price":  price,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
