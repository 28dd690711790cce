package appevents

// AppEvent is a marker interface for events sent from the TUI to the App's
// logic controller. It uses an unexported method so that only types embedding
// Event can satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded by event types to satisfy the AppEvent interface.
type Event struct{}

func (Event) isAppEvent() {}

// Error is a generic error message from the App to the TUI.
type Error struct {
	Err error
}
