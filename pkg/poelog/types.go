package poelog

import "github.com/poelog/poelog-go/pkg/poelog/event"

// Re-exported event types so most callers only import this package.
type (
	Event     = event.Event
	EventType = event.Type
	Info      = event.Info
	Record    = event.Record
)

// Built-in event types.
const (
	EventJoinedArea           = event.JoinedArea
	EventConnectingToInstance = event.ConnectingToInstance
	EventPlayerJoinedArea     = event.PlayerJoinedArea
	EventPlayerLeftArea       = event.PlayerLeftArea
	EventLevelUp              = event.LevelUp
)
