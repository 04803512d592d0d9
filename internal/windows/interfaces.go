package windows

import (
	"github.com/softgrove/langhub/internal/config"
	"github.com/softgrove/langhub/internal/lsp"
)

// Bus topics the registry subscribes to.
const (
	// TopicViewClosed is published by the host whenever a document view
	// closes. The payload is the closed ViewLike.
	TopicViewClosed = "view.closed"
)

// WindowLike is the capability set this package needs from a host window.
type WindowLike interface {
	// ID uniquely identifies the window among live windows.
	ID() int

	// IsValid reports whether the window still exists in the host.
	IsValid() bool

	// Folders returns the window's open folders; the first is the
	// project root.
	Folders() []string

	// Views enumerates the window's open document views.
	Views() []ViewLike
}

// ViewLike is the capability set this package needs from a document view.
type ViewLike interface {
	// FileName returns the backing file path, or "" for an unsaved view.
	FileName() string

	// Syntax returns the host syntax name assigned to the view.
	Syntax() string
}

// ConfigResolver answers which configurations apply within one window.
type ConfigResolver interface {
	// All returns every known configuration for the window.
	All() []config.ClientConfig

	// ConfigsForView returns the configurations applicable to a view,
	// evaluated per view independently.
	ConfigsForView(view ViewLike) []config.ClientConfig
}

// GlobalConfigProvider resolves a per-window ConfigResolver.
type GlobalConfigProvider interface {
	ForWindow(window WindowLike) ConfigResolver
}

// DocumentHandler tracks which documents are registered against which
// sessions. It is informed whenever a session becomes ready or a view is
// newly relevant. RemoveSession for an unknown name and repeated
// HandleViewOpened for the same view must be no-ops.
type DocumentHandler interface {
	AddSession(session *lsp.Session)
	RemoveSession(configName string)
	HandleViewOpened(view ViewLike)

	// Reset drops all document registrations. Called when every session
	// of the window ends at once.
	Reset()
}

// DocumentHandlerFactory builds the per-window document handler.
type DocumentHandlerFactory interface {
	ForWindow(window WindowLike, configs ConfigResolver) DocumentHandler
}

// HandlerDispatcher is the host's extension point around session starts.
type HandlerDispatcher interface {
	// OnStart may veto starting the named configuration for a window.
	OnStart(configName string, window WindowLike) bool

	// OnInitialized runs after the named configuration's session is ready.
	OnInitialized(configName string, window WindowLike, session *lsp.Session)
}

// SessionStarter produces a session for a configuration. It is the seam the
// registry's owner uses to inject the real lsp.Open or a test double.
type SessionStarter func(window WindowLike, projectPath string, cfg config.ClientConfig,
	onReady func(*lsp.Session), onEnded func(configName string)) (*lsp.Session, error)
