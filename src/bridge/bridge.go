// Package bridge feeds messages and notifications produced outside the
// socket server into the delivery path.
package bridge

// Bridge is an external event source.
type Bridge interface {
	// Start begins listening for events.
	Start() error

	// Stop shuts the listener down.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// Dispatcher is implemented by the service to receive bridged events.
type Dispatcher interface {
	SendMessage(from, to string, message any) error
	Notify(to, kind string, content any) error
}
