package engine

// Event is something the renderer should reflect.
type Event interface {
	event()
}

// GroupListUpdated carries the full current directory.
type GroupListUpdated struct {
	Groups []GroupView
}

// MessageAdmitted is emitted once per message id per group selection.
// Local is set for this client's optimistic echo.
type MessageAdmitted struct {
	GroupID string
	Message Message
	Local   bool
}

// EmptyState is emitted when a selected group has no messages. The next
// MessageAdmitted for the same group clears it.
type EmptyState struct {
	GroupID string
}

type GroupSelected struct {
	Group Group
}

// GroupDeselected tells the renderer to drop the group's message view.
type GroupDeselected struct {
	GroupID string
}

// ErrorOccurred reports a failure that has no caller waiting on it, such as
// a message that was shown but could not be delivered.
type ErrorOccurred struct {
	Kind    ErrorKind
	Context string
	Err     error
}

func (GroupListUpdated) event() {}
func (MessageAdmitted) event()  {}
func (EmptyState) event()       {}
func (GroupSelected) event()    {}
func (GroupDeselected) event()  {}
func (ErrorOccurred) event()    {}

// Renderer consumes events. Render is always called from the engine loop.
type Renderer interface {
	Render(Event)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(Event)

func (f RenderFunc) Render(e Event) { f(e) }
