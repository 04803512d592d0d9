package host

import (
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/softgrove/langhub/internal/config"
	"github.com/softgrove/langhub/internal/hostenv"
	"github.com/softgrove/langhub/internal/lsp"
	"github.com/softgrove/langhub/internal/windows"
)

// didOpenParams is the payload of textDocument/didOpen.
type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// docTracker is the host's DocumentHandler. It remembers which files the
// window has opened and announces them to every matching session with a
// textDocument/didOpen, including sessions that become ready later. Session
// readiness is reported on the channel's read goroutine, so both maps are
// guarded by a mutex; announcements happen outside the lock.
type docTracker struct {
	resolver windows.ConfigResolver
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*lsp.Session
	docs     map[string]windows.ViewLike
}

func newDocTracker(resolver windows.ConfigResolver, log zerolog.Logger) *docTracker {
	return &docTracker{
		resolver: resolver,
		log:      log,
		sessions: make(map[string]*lsp.Session),
		docs:     make(map[string]windows.ViewLike),
	}
}

func (d *docTracker) AddSession(s *lsp.Session) {
	d.mu.Lock()
	if _, ok := d.sessions[s.Name()]; ok {
		d.mu.Unlock()
		return
	}
	d.sessions[s.Name()] = s
	views := make([]windows.ViewLike, 0, len(d.docs))
	for _, view := range d.docs {
		if sessionMatches(s, view) {
			views = append(views, view)
		}
	}
	d.mu.Unlock()

	for _, view := range views {
		d.announce(s, view)
	}
}

func (d *docTracker) RemoveSession(configName string) {
	d.mu.Lock()
	delete(d.sessions, configName)
	d.mu.Unlock()
}

func (d *docTracker) HandleViewOpened(view windows.ViewLike) {
	name := view.FileName()
	if name == "" {
		return
	}
	d.mu.Lock()
	if _, ok := d.docs[name]; ok {
		d.mu.Unlock()
		return
	}
	d.docs[name] = view
	targets := make([]*lsp.Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		if sessionMatches(s, view) {
			targets = append(targets, s)
		}
	}
	d.mu.Unlock()

	for _, s := range targets {
		d.announce(s, view)
	}
}

func (d *docTracker) Reset() {
	d.mu.Lock()
	d.docs = make(map[string]windows.ViewLike)
	d.mu.Unlock()
}

func sessionMatches(s *lsp.Session, view windows.ViewLike) bool {
	return s.Config().Matches(view.Syntax())
}

// announce sends textDocument/didOpen for the view. A session still in its
// handshake rejects the notification; the file stays tracked and could be
// re-announced, so the miss is only logged.
func (d *docTracker) announce(s *lsp.Session, view windows.ViewLike) {
	text, err := os.ReadFile(view.FileName())
	if err != nil {
		d.log.Warn().Err(err).Str("file", view.FileName()).Msg("read document")
		return
	}
	params := didOpenParams{TextDocument: textDocumentItem{
		URI:        hostenv.PathToURI(view.FileName()),
		LanguageID: view.Syntax(),
		Version:    1,
		Text:       string(text),
	}}
	if err := s.Notify("textDocument/didOpen", params); err != nil {
		d.log.Debug().Err(err).Str("config", s.Name()).Str("file", view.FileName()).Msg("didOpen not delivered")
		return
	}
	d.log.Debug().Str("config", s.Name()).Str("file", view.FileName()).Msg("document announced")
}

// syntaxResolver resolves client configs against a loaded config file by
// matching view syntax.
type syntaxResolver struct {
	clients []config.ClientConfig
}

func (r syntaxResolver) All() []config.ClientConfig { return r.clients }

func (r syntaxResolver) ConfigsForView(view windows.ViewLike) []config.ClientConfig {
	var out []config.ClientConfig
	for _, cfg := range r.clients {
		if cfg.Enabled && cfg.Matches(view.Syntax()) {
			out = append(out, cfg)
		}
	}
	return out
}

func (r syntaxResolver) ForWindow(windows.WindowLike) windows.ConfigResolver { return r }

// trackerFactory builds one docTracker per window.
type trackerFactory struct {
	log zerolog.Logger
}

func (f trackerFactory) ForWindow(_ windows.WindowLike, resolver windows.ConfigResolver) windows.DocumentHandler {
	return newDocTracker(resolver, f.log)
}
