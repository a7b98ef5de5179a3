package room

// Broadcaster delivers an event to a set of connections.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToConnections(connIDs []string, event string, payload any) error
}
