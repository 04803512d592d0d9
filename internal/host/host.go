package host

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/softgrove/langhub/internal/config"
	"github.com/softgrove/langhub/internal/event"
	"github.com/softgrove/langhub/internal/lsp"
	"github.com/softgrove/langhub/internal/windows"
)

// Options configure the host.
type Options struct {
	ConfigPath    string
	WorkspacePath string
	Files         []string
	LogLevel      string
}

// Host runs a window registry over one headless workspace window. It is the
// command-line stand-in for an editor embedding this module.
type Host struct {
	log      zerolog.Logger
	settings config.Settings
	bus      *event.Bus
	registry *windows.WindowRegistry
	window   *workspaceWindow

	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// New loads the configuration and builds the registry. Sessions are not
// started until Run.
func New(opts Options) (*Host, error) {
	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("no configuration file given")
	}
	cfgFile, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if len(cfgFile.Clients) == 0 {
		return nil, fmt.Errorf("configuration declares no clients")
	}

	h := &Host{
		log:      log,
		settings: cfgFile.Settings,
		bus:      event.NewBus(),
		window:   newWorkspaceWindow(1, opts.WorkspacePath, opts.Files),
		done:     make(chan struct{}),
	}
	resolver := syntaxResolver{clients: cfgFile.Clients}
	h.registry = windows.NewWindowRegistry(
		resolver,
		trackerFactory{log: log},
		h.startSession,
		&dispatcher{log: log},
		h.bus,
		log,
	)
	return h, nil
}

// Run starts sessions for the workspace's files and blocks until Shutdown.
func (h *Host) Run() error {
	h.mu.Lock()
	manager := h.registry.Lookup(h.window)
	manager.StartActiveViews()
	count := manager.SessionCount()
	h.mu.Unlock()

	if count == 0 {
		return fmt.Errorf("no client matched the given files")
	}
	h.log.Info().Int("sessions", count).Msg("sessions started")

	<-h.done
	return nil
}

// Shutdown ends every session and releases the registry. Safe to call more
// than once and from any goroutine.
func (h *Host) Shutdown() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.window.closed = true
		h.registry.Close()
		h.mu.Unlock()
		close(h.done)
	})
}

// startSession is the registry's SessionStarter. Spawned servers get a crash
// watcher that offers a restart through the manager.
func (h *Host) startSession(window windows.WindowLike, projectPath string, cfg config.ClientConfig, onReady func(*lsp.Session), onEnded func(string)) (*lsp.Session, error) {
	sess, err := lsp.Open(cfg, projectPath,
		lsp.WithSettings(h.settings),
		lsp.WithLogger(h.log),
		lsp.WithUI(&logUI{log: h.log}),
		lsp.WithReadyFunc(onReady),
		lsp.WithEndedFunc(onEnded),
	)
	if err != nil {
		return nil, err
	}
	if exited := sess.Exited(); exited != nil {
		go h.watchExit(window, cfg, sess, exited)
	}
	return sess, nil
}

// watchExit distinguishes an ordered shutdown from a crash. Only a crash
// reaches the manager's recovery path.
func (h *Host) watchExit(window windows.WindowLike, cfg config.ClientConfig, sess *lsp.Session, exited <-chan error) {
	err := <-exited

	select {
	case <-h.done:
		return
	default:
	}
	if sess.State() == lsp.StateEnded {
		return
	}

	h.log.Warn().Err(err).Str("config", cfg.Name).Msg("language server exited unexpectedly")
	h.mu.Lock()
	h.registry.Lookup(window).HandleServerCrash(cfg)
	h.mu.Unlock()
}

// dispatcher is the host's lifecycle hook surface. It never vetoes a start
// and reports negotiated capabilities when a session comes up.
type dispatcher struct {
	log zerolog.Logger
}

func (d *dispatcher) OnStart(configName string, _ windows.WindowLike) bool {
	d.log.Debug().Str("config", configName).Msg("starting session")
	return true
}

func (d *dispatcher) OnInitialized(configName string, _ windows.WindowLike, s *lsp.Session) {
	evt := d.log.Info().Str("config", configName)
	for _, name := range []string{"hoverProvider", "completionProvider", "definitionProvider", "documentHighlightProvider", "executeCommandProvider"} {
		evt = evt.Bool(name, s.HasCapability(name))
	}
	evt.Msg("session initialized")
}

// logUI surfaces server messages on the log. Prompts are dismissed, which
// leaves the server's request unanswered.
type logUI struct {
	log zerolog.Logger
}

func (u *logUI) ShowMessage(msg string) {
	u.log.Info().Msg(msg)
}

func (u *logUI) ShowPrompt(titles []string, choose func(int)) {
	u.log.Info().Strs("actions", titles).Msg("server prompt dismissed (no interactive ui)")
	choose(-1)
}
