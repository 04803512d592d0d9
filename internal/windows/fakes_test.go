package windows

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/softgrove/langhub/internal/config"
	"github.com/softgrove/langhub/internal/lsp"
)

// fakeView is a document open in a fake window.
type fakeView struct {
	name   string
	syntax string
}

func (v *fakeView) FileName() string { return v.name }
func (v *fakeView) Syntax() string   { return v.syntax }

// fakeWindow is an editor window under test control.
type fakeWindow struct {
	id      int
	valid   bool
	folders []string
	views   []ViewLike
}

func newFakeWindow(id int) *fakeWindow {
	return &fakeWindow{id: id, valid: true}
}

func (w *fakeWindow) ID() int           { return w.id }
func (w *fakeWindow) IsValid() bool     { return w.valid }
func (w *fakeWindow) Folders() []string { return w.folders }
func (w *fakeWindow) Views() []ViewLike { return w.views }

func (w *fakeWindow) openView(name, syntax string) *fakeView {
	v := &fakeView{name: name, syntax: syntax}
	w.views = append(w.views, v)
	return v
}

// fakeConfigs resolves configs by syntax match.
type fakeConfigs struct {
	configs []config.ClientConfig
}

func (c *fakeConfigs) All() []config.ClientConfig { return c.configs }

func (c *fakeConfigs) ConfigsForView(view ViewLike) []config.ClientConfig {
	var out []config.ClientConfig
	for _, cfg := range c.configs {
		if cfg.Enabled && cfg.Matches(view.Syntax()) {
			out = append(out, cfg)
		}
	}
	return out
}

func (c *fakeConfigs) ForWindow(WindowLike) ConfigResolver { return c }

// fakeDocuments records session and document registrations. Registration is
// idempotent per file name. Guarded because session callbacks may arrive on
// a channel read goroutine.
type fakeDocuments struct {
	mu        sync.Mutex
	sessions  map[string]*lsp.Session
	documents map[string]bool
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{
		sessions:  make(map[string]*lsp.Session),
		documents: make(map[string]bool),
	}
}

func (d *fakeDocuments) AddSession(s *lsp.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[s.Name()] = s
}

func (d *fakeDocuments) RemoveSession(configName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, configName)
}

func (d *fakeDocuments) HandleViewOpened(view ViewLike) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name := view.FileName(); name != "" {
		d.documents[name] = true
	}
}

func (d *fakeDocuments) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.documents = make(map[string]bool)
}

func (d *fakeDocuments) sessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDocuments) hasSession(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[name]
	return ok
}

func (d *fakeDocuments) documentNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.documents))
	for name := range d.documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fakeDocFactory hands out one fakeDocuments per window and remembers it so
// tests can inspect registrations after the fact.
type fakeDocFactory struct {
	byWindow map[int]*fakeDocuments
}

func newFakeDocFactory() *fakeDocFactory {
	return &fakeDocFactory{byWindow: make(map[int]*fakeDocuments)}
}

func (f *fakeDocFactory) ForWindow(window WindowLike, _ ConfigResolver) DocumentHandler {
	docs := newFakeDocuments()
	f.byWindow[window.ID()] = docs
	return docs
}

// fakeDispatcher records lifecycle hooks and can veto starts. OnInitialized
// runs wherever the session's ready callback fires, hence the mutex.
type fakeDispatcher struct {
	mu          sync.Mutex
	allowStart  bool
	startAsked  []string
	initialized []string
}

func newFakeDispatcher() *fakeDispatcher { return &fakeDispatcher{allowStart: true} }

func (d *fakeDispatcher) OnStart(configName string, _ WindowLike) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startAsked = append(d.startAsked, configName)
	return d.allowStart
}

func (d *fakeDispatcher) OnInitialized(configName string, _ WindowLike, _ *lsp.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = append(d.initialized, configName)
}

func (d *fakeDispatcher) setAllowStart(allow bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allowStart = allow
}

func (d *fakeDispatcher) startAskedNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.startAsked...)
}

func (d *fakeDispatcher) initializedNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.initialized...)
}

// scriptedChannel answers requests synchronously from a canned table, the
// way a well-behaved server would.
type scriptedChannel struct {
	mu         sync.Mutex
	closed     bool
	responses  map[string]json.RawMessage
	errors     map[string]*lsp.RPCError
	notifyFns  map[string]lsp.NotificationHandler
	requestFns map[string]lsp.RequestHandler
	sent       []string
	replies    []any
}

const scriptedCapabilities = `{
	"capabilities": {
		"textDocumentSync": 2,
		"hoverProvider": true,
		"completionProvider": {"triggerCharacters": ["."], "resolveProvider": false},
		"definitionProvider": true
	}
}`

func newScriptedChannel() *scriptedChannel {
	return &scriptedChannel{
		responses: map[string]json.RawMessage{
			lsp.MethodInitialize: json.RawMessage(scriptedCapabilities),
			lsp.MethodShutdown:   json.RawMessage(`null`),
		},
		errors:     make(map[string]*lsp.RPCError),
		notifyFns:  make(map[string]lsp.NotificationHandler),
		requestFns: make(map[string]lsp.RequestHandler),
	}
}

func (c *scriptedChannel) Call(method string, _ any, onResult func(json.RawMessage), onError func(*lsp.RPCError)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return lsp.ErrChannelClosed
	}
	c.sent = append(c.sent, method)
	rpcErr, hasErr := c.errors[method]
	result, hasResult := c.responses[method]
	c.mu.Unlock()

	if hasErr {
		if onError != nil {
			onError(rpcErr)
		}
		return nil
	}
	if hasResult && onResult != nil {
		onResult(result)
	}
	return nil
}

func (c *scriptedChannel) Notify(method string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return lsp.ErrChannelClosed
	}
	c.sent = append(c.sent, method)
	return nil
}

func (c *scriptedChannel) Reply(_ int64, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return lsp.ErrChannelClosed
	}
	c.replies = append(c.replies, result)
	return nil
}

func (c *scriptedChannel) OnNotification(method string, handler lsp.NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyFns[method] = handler
}

func (c *scriptedChannel) OnRequest(method string, handler lsp.RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestFns[method] = handler
}

func (c *scriptedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// sessionRecorder builds a SessionStarter over scripted channels and keeps
// every channel it handed out, in start order.
type sessionRecorder struct {
	channels []*scriptedChannel
	starts   []string
}

func (r *sessionRecorder) starter() SessionStarter {
	return func(_ WindowLike, projectPath string, cfg config.ClientConfig, onReady func(*lsp.Session), onEnded func(string)) (*lsp.Session, error) {
		ch := newScriptedChannel()
		r.channels = append(r.channels, ch)
		r.starts = append(r.starts, cfg.Name)
		return lsp.Open(cfg, projectPath,
			lsp.WithChannel(ch),
			lsp.WithReadyFunc(onReady),
			lsp.WithEndedFunc(onEnded),
		)
	}
}

func testClientConfig(name, syntax string) config.ClientConfig {
	return config.ClientConfig{
		Name:    name,
		Enabled: true,
		Languages: []config.LanguageConfig{
			{ID: syntax, Syntaxes: []string{syntax}},
		},
	}
}
