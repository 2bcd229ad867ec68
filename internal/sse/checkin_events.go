package sse

import (
	"context"
	"ms-checkin/internal/models"
	"sync"
)

// AllEvents subscribes to check-ins of every event key.
const AllEvents = ""

// CheckinEventEmitter fans toggle results out to live dashboard connections.
type CheckinEventEmitter struct {
	// key: event key ("day1", "gift", ...) or AllEvents
	clients map[string][]chan models.CheckinEvent
	mu      sync.RWMutex
}

func NewCheckinEventEmitter() *CheckinEventEmitter {
	return &CheckinEventEmitter{
		clients: make(map[string][]chan models.CheckinEvent),
	}
}

// Subscribe registers a client for one event key. The channel is closed and
// removed when ctx is done.
func (e *CheckinEventEmitter) Subscribe(ctx context.Context, event string) <-chan models.CheckinEvent {
	clientChan := make(chan models.CheckinEvent, 10)

	e.mu.Lock()
	e.clients[event] = append(e.clients[event], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(event, clientChan)
	}()

	return clientChan
}

// Emit delivers the event to its key's subscribers and to AllEvents
// subscribers. Slow clients whose buffer is full miss the event.
func (e *CheckinEventEmitter) Emit(evt models.CheckinEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	send := func(clients []chan models.CheckinEvent) {
		for _, clientChan := range clients {
			select {
			case clientChan <- evt:
			default:
			}
		}
	}
	send(e.clients[evt.Event])
	if evt.Event != AllEvents {
		send(e.clients[AllEvents])
	}
}

func (e *CheckinEventEmitter) remove(event string, clientChan chan models.CheckinEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[event]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[event] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[event]) == 0 {
		delete(e.clients, event)
	}
}

// ClientCount returns the number of open subscriptions for an event key.
func (e *CheckinEventEmitter) ClientCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[event])
}
