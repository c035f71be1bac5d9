package domain

type Event interface{ Type() string }

// EventDispatcher delivers domain events to interested external parties.
// Delivery is best-effort; implementations must never block business logic
// on a failed delivery.
type EventDispatcher interface{ Dispatch(event Event) error }
