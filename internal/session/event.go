package session

// Event is a notification from the transport.
// The concrete types are Connected, Disconnected, Reconnecting and
// MessageReceived.
type Event interface {
	sessionEvent()
}

// Connected reports that the transport reached the broker.
type Connected struct{}

// Disconnected reports loss of the broker connection. It is authoritative:
// the session is Closed afterwards, whatever the manager believed before.
type Disconnected struct {
	// Err is the transport's reason, possibly nil.
	Err error
}

// Reconnecting reports that the transport is retrying on its own.
type Reconnecting struct{}

// MessageReceived carries one inbound message.
type MessageReceived struct {
	Topic   string
	Payload []byte
}

func (Connected) sessionEvent()       {}
func (Disconnected) sessionEvent()    {}
func (Reconnecting) sessionEvent()    {}
func (MessageReceived) sessionEvent() {}
