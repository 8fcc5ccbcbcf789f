package link

// Event is a notification from the link driver.
// The concrete types are Started, Disconnected and Connected.
type Event interface {
	linkEvent()
}

// Started reports that the link layer is ready to accept connect requests.
type Started struct{}

// Disconnected reports loss of association, whether the prior state was
// connecting or connected.
type Disconnected struct {
	// Reason is a free-form description for logs, possibly empty.
	Reason string
}

// Connected reports that the link has acquired an address.
type Connected struct {
	// Addr is the acquired address in CIDR form, e.g. "192.168.0.42/24".
	Addr string
}

func (Started) linkEvent()      {}
func (Disconnected) linkEvent() {}
func (Connected) linkEvent()    {}
