package dispatch

import "github.com/google/uuid"

// RequestID uniquely identifies one HTTP request within its connection's
// lifetime, generated via uuid.NewRandom as the source's request_id does.
type RequestID uuid.UUID

func (r RequestID) String() string { return uuid.UUID(r).String() }

// ConnectionID uniquely identifies one ServerConnection.
type ConnectionID uuid.UUID

func (c ConnectionID) String() string { return uuid.UUID(c).String() }

func newRequestID() RequestID {
	id, err := uuid.NewRandom()
	if err != nil {
		return RequestID(uuid.New())
	}
	return RequestID(id)
}

// NewConnectionID generates a fresh ConnectionID for a newly accepted
// connection. Exported so a listener/acceptor loop can mint one per socket
// before constructing a ServerConnection.
func NewConnectionID() ConnectionID {
	id, err := uuid.NewRandom()
	if err != nil {
		return ConnectionID(uuid.New())
	}
	return ConnectionID(id)
}
