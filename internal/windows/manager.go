package windows

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/softgrove/langhub/internal/config"
	"github.com/softgrove/langhub/internal/lsp"
)

// WindowManager owns the language server sessions of a single window. It
// holds at most one session per client config name and starts sessions
// lazily when a view that matches a config becomes active.
//
// Session completion callbacks arrive on the channel's read goroutine, so
// the session table is guarded by a mutex. The mutex is never held across a
// starter, shutdown, or handler call.
type WindowManager struct {
	window     WindowLike
	configs    ConfigResolver
	docs       DocumentHandler
	start      SessionStarter
	dispatcher HandlerDispatcher
	log        zerolog.Logger

	mu          sync.Mutex
	sessions    map[string]*lsp.Session
	projectPath string
}

// NewWindowManager builds a manager for window. The starter is invoked for
// each session the manager decides to launch; the dispatcher is consulted
// before every launch and notified after every successful handshake.
func NewWindowManager(window WindowLike, configs ConfigResolver, docs DocumentHandler, start SessionStarter, dispatcher HandlerDispatcher, log zerolog.Logger) *WindowManager {
	return &WindowManager{
		window:     window,
		configs:    configs,
		docs:       docs,
		start:      start,
		dispatcher: dispatcher,
		log:        log.With().Int("window", window.ID()).Logger(),
		sessions:   make(map[string]*lsp.Session),
	}
}

// StartActiveViews evaluates every view currently open in the window, as if
// each had just been activated.
func (m *WindowManager) StartActiveViews() {
	for _, view := range m.window.Views() {
		m.ActivateView(view)
	}
}

// ActivateView is the main entry point of the manager. It recomputes the
// window's project path, ends every session when the path moved to a
// different project, starts a session for every matching config that does
// not have one yet, and finally hands the view to the document handler.
func (m *WindowManager) ActivateView(view ViewLike) {
	path := m.resolveProjectPath(view)
	if path != "" {
		m.mu.Lock()
		changed := m.projectPath != "" && path != m.projectPath
		old := m.projectPath
		m.projectPath = path
		m.mu.Unlock()
		if changed {
			m.log.Info().
				Str("old", old).
				Str("new", path).
				Msg("project path changed, ending sessions")
			m.EndSessions()
		}
	}
	for _, cfg := range m.configs.ConfigsForView(view) {
		m.startSession(cfg)
	}
	m.docs.HandleViewOpened(view)
}

// resolveProjectPath prefers the window's first folder and falls back to
// the directory of the view's file.
func (m *WindowManager) resolveProjectPath(view ViewLike) string {
	if folders := m.window.Folders(); len(folders) > 0 {
		return folders[0]
	}
	if name := view.FileName(); name != "" {
		return filepath.Dir(name)
	}
	return ""
}

// startSession launches a session for cfg unless one already exists. The
// starter may deliver its callbacks before returning, so the table entry is
// double-checked around the launch.
func (m *WindowManager) startSession(cfg config.ClientConfig) {
	if m.start == nil {
		return
	}

	m.mu.Lock()
	_, exists := m.sessions[cfg.Name]
	projectPath := m.projectPath
	m.mu.Unlock()
	if exists {
		return
	}

	if m.dispatcher != nil && !m.dispatcher.OnStart(cfg.Name, m.window) {
		m.log.Warn().Str("config", cfg.Name).Msg("session start vetoed")
		return
	}

	// The ended callback can fire before the starter returns, and a stale
	// callback from a replaced session must not evict its successor, so
	// the callback checks identity against this holder.
	name := cfg.Name
	var started atomic.Pointer[lsp.Session]
	sess, err := m.start(m.window, projectPath, cfg,
		func(s *lsp.Session) { m.handleSessionReady(name, s) },
		func(string) { m.handleSessionEnded(name, &started) },
	)
	if err != nil {
		m.log.Warn().Err(err).Str("config", name).Msg("session start failed")
		return
	}
	started.Store(sess)

	m.mu.Lock()
	if existing, ok := m.sessions[name]; ok && existing != sess {
		m.mu.Unlock()
		sess.Shutdown()
		return
	}
	m.sessions[name] = sess
	if sess.State() == lsp.StateEnded {
		delete(m.sessions, name)
	}
	m.mu.Unlock()
}

func (m *WindowManager) handleSessionReady(name string, s *lsp.Session) {
	m.log.Info().Str("config", name).Msg("session ready")
	m.docs.AddSession(s)
	if m.dispatcher != nil {
		m.dispatcher.OnInitialized(name, m.window, s)
	}
}

// handleSessionEnded removes a session that ended on its own, typically a
// failed handshake. Sessions ended by EndSessions or HandleServerCrash have
// already left the table; their callback finds no matching entry.
func (m *WindowManager) handleSessionEnded(name string, started *atomic.Pointer[lsp.Session]) {
	m.log.Info().Str("config", name).Msg("session ended")
	m.mu.Lock()
	cur, ok := m.sessions[name]
	if !ok || cur != started.Load() {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, name)
	m.mu.Unlock()
	m.docs.RemoveSession(name)
}

// Session returns the session launched for the named config, or nil.
func (m *WindowManager) Session(name string) *lsp.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[name]
}

// SessionCount reports how many sessions the manager currently tracks.
func (m *WindowManager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EndSessions shuts down every session of the window and clears the table.
// Sessions whose servers never answer the shutdown round trip still end
// through the session's own teardown path.
func (m *WindowManager) EndSessions() {
	m.mu.Lock()
	sessions := make(map[string]*lsp.Session, len(m.sessions))
	for name, sess := range m.sessions {
		sessions[name] = sess
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	for name, sess := range sessions {
		m.docs.RemoveSession(name)
		sess.Shutdown()
	}
	m.docs.Reset()
}

// RestartSessions ends every session and then re-evaluates all open views,
// launching fresh sessions for whatever still matches.
func (m *WindowManager) RestartSessions() {
	m.EndSessions()
	m.StartActiveViews()
}

// HandleServerCrash tears down the dead session for cfg, then offers a
// restart by walking the open views. The dispatcher's OnStart hook is asked
// again and can decline the restart.
func (m *WindowManager) HandleServerCrash(cfg config.ClientConfig) {
	m.mu.Lock()
	sess := m.sessions[cfg.Name]
	delete(m.sessions, cfg.Name)
	m.mu.Unlock()
	if sess != nil {
		m.docs.RemoveSession(cfg.Name)
		sess.Shutdown()
	}

	for _, view := range m.window.Views() {
		for _, c := range m.configs.ConfigsForView(view) {
			if c.Name != cfg.Name {
				continue
			}
			m.startSession(c)
			m.docs.HandleViewOpened(view)
		}
	}
}
