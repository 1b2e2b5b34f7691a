package client

import (
	"fmt"

	"github.com/al002/psmoveclient/internal/protocol"
)

type EventType int

const (
	ConnectedToService EventType = iota
	FailedToConnectToService
	DisconnectedFromService
	ControllerListUpdated
	// Any service event the client does not interpret itself.
	OpaqueServiceEvent
)

var eventTypeNames = [...]string{
	ConnectedToService:       "connected_to_service",
	FailedToConnectToService: "failed_to_connect_to_service",
	DisconnectedFromService:  "disconnected_from_service",
	ControllerListUpdated:    "controller_list_updated",
	OpaqueServiceEvent:       "opaque_service_event",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("event_%d", int(t))
}

// Event is what the client reports to its owner. It never correlates to a
// request.
type Event struct {
	Type EventType
	// Cause of FailedToConnectToService and DisconnectedFromService.
	Err error
	// The raw service event for ControllerListUpdated and OpaqueServiceEvent.
	ServiceEvent *protocol.Event
}

type EventCallback func(Event)
