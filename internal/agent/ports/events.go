package ports

import "time"

// AgentEvent is the closed event contract produced by the engine. Concrete
// variants live in the domain package.
type AgentEvent interface {
	EventType() string
	Timestamp() time.Time
	GetTaskID() string
}

// EventListener consumes engine events in emission order.
type EventListener interface {
	OnEvent(event AgentEvent)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(event AgentEvent)

func (f EventListenerFunc) OnEvent(event AgentEvent) { f(event) }
