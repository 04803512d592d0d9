package lsp

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/softgrove/langhub/internal/config"
	"github.com/softgrove/langhub/internal/hostenv"
)

// State is a session's lifecycle state.
type State int

const (
	// StateStarting means the handshake is in flight.
	StateStarting State = iota
	// StateReady means the handshake succeeded and requests may be issued.
	StateReady
	// StateStopping means shutdown has begun; no new requests are accepted.
	StateStopping
	// StateEnded is terminal: the channel is released and capabilities are
	// cleared.
	StateEnded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// transitions is the legal state machine. Starting may end directly when the
// handshake fails or the owner tears the window down before the server
// answers.
var transitions = map[State][]State{
	StateStarting: {StateReady, StateStopping, StateEnded},
	StateReady:    {StateStopping},
	StateStopping: {StateEnded},
	StateEnded:    {},
}

// HostUI is the user-facing message surface a session reports into.
type HostUI interface {
	// ShowMessage displays a message dialog.
	ShowMessage(msg string)

	// ShowPrompt presents a list of titles. choose receives the selected
	// index, or -1 if the user dismissed the prompt.
	ShowPrompt(titles []string, choose func(index int))
}

// noopUI dismisses everything. Used when the host supplies no UI.
type noopUI struct{}

func (noopUI) ShowMessage(string)                  {}
func (noopUI) ShowPrompt(_ []string, fn func(int)) { fn(-1) }

// Session is one protocol connection to a language server. It owns the
// message channel, the negotiated capability table, and the routing of
// server-initiated window/* traffic.
type Session struct {
	mu sync.Mutex

	cfg         config.ClientConfig
	projectPath string
	state       State
	caps        []byte
	channel     MessageChannel
	proc        *Process

	ui          HostUI
	logPayloads bool
	onReady     func(*Session)
	onEnded     func(configName string)

	endedOnce sync.Once
	log       zerolog.Logger
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	env      map[string]string
	settings config.Settings
	ui       HostUI
	onReady  func(*Session)
	onEnded  func(configName string)
	channel  MessageChannel
	logger   zerolog.Logger
}

// WithEnv adds environment variables for a spawned server process.
func WithEnv(env map[string]string) Option {
	return func(o *openOptions) { o.env = env }
}

// WithSettings sets the runtime settings for the session.
func WithSettings(s config.Settings) Option {
	return func(o *openOptions) { o.settings = s }
}

// WithUI sets the user-facing message surface.
func WithUI(ui HostUI) Option {
	return func(o *openOptions) { o.ui = ui }
}

// WithReadyFunc sets the callback fired when the handshake succeeds.
func WithReadyFunc(fn func(*Session)) Option {
	return func(o *openOptions) { o.onReady = fn }
}

// WithEndedFunc sets the callback fired exactly once when the session ends.
func WithEndedFunc(fn func(configName string)) Option {
	return func(o *openOptions) { o.onEnded = fn }
}

// WithChannel supplies a pre-built message channel, bypassing process and
// endpoint creation.
func WithChannel(ch MessageChannel) Option {
	return func(o *openOptions) { o.channel = ch }
}

// WithLogger sets the base logger for the session.
func WithLogger(log zerolog.Logger) Option {
	return func(o *openOptions) { o.logger = log }
}

// Open creates a session for the configuration and begins the handshake.
// The channel is chosen from the configuration: a launch command spawns a
// process (optionally connected over a fixed TCP endpoint), a bare endpoint
// is dialed directly, and a pre-built channel is used as-is. With none of
// the three, Open fails with ErrNoStartMethod.
//
// Open returns once the handshake request is on the wire; readiness is
// reported through the ready callback. A handshake failure ends the session
// and fires the ended callback so the owner can drop its reference.
func Open(cfg config.ClientConfig, projectPath string, opts ...Option) (*Session, error) {
	var o openOptions
	o.ui = noopUI{}
	o.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger.With().Str("config", cfg.Name).Logger()

	channel, proc, err := openChannel(cfg, projectPath, o, log)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:         cfg,
		projectPath: projectPath,
		state:       StateStarting,
		channel:     channel,
		proc:        proc,
		ui:          o.ui,
		logPayloads: o.settings.LogPayloads,
		onReady:     o.onReady,
		onEnded:     o.onEnded,
		log:         log,
	}

	s.installHandlers()
	if err := s.initialize(); err != nil {
		s.discard()
		return nil, err
	}
	return s, nil
}

// openChannel builds the transport for a configuration.
func openChannel(cfg config.ClientConfig, projectPath string, o openOptions, log zerolog.Logger) (MessageChannel, *Process, error) {
	if len(cfg.Command) > 0 {
		proc, err := StartProcess(cfg.Command, projectPath, o.env, o.settings.LogStderr, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.TCPPort > 0 {
			ch, err := DialEndpoint(cfg.TCPHost, cfg.TCPPort)
			if err != nil {
				proc.Terminate()
				return nil, nil, err
			}
			return ch, proc, nil
		}
		return proc.Channel(), proc, nil
	}

	if cfg.TCPPort > 0 {
		ch, err := DialEndpoint(cfg.TCPHost, cfg.TCPPort)
		if err != nil {
			return nil, nil, err
		}
		return ch, nil, nil
	}

	if o.channel != nil {
		return o.channel, nil, nil
	}

	log.Debug().Msg("no way to start session")
	return nil, nil, ErrNoStartMethod
}

// initialize sends the handshake request.
func (s *Session) initialize() error {
	params := InitializeParams{
		ProcessID:             hostenv.ProcessID(),
		RootURI:               hostenv.PathToURI(s.projectPath),
		RootPath:              s.projectPath,
		Capabilities:          DefaultClientCapabilities(),
		InitializationOptions: s.cfg.InitOptions,
	}
	return s.channel.Call(MethodInitialize, params, s.handleInitializeResult, s.handleInitializeError)
}

// handleInitializeResult stores the negotiated capabilities and reports
// readiness. A late response for a session already being torn down is
// ignored.
func (s *Session) handleInitializeResult(result json.RawMessage) {
	s.mu.Lock()
	if s.state != StateStarting {
		s.mu.Unlock()
		return
	}

	var init InitializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("malformed initialize result")
		s.discard()
		return
	}

	s.caps = init.Capabilities
	s.transitionLocked(StateReady)
	onReady := s.onReady
	s.mu.Unlock()

	s.log.Debug().Msg("session ready")
	if onReady != nil {
		onReady(s)
	}
}

// handleInitializeError discards the session: it never reaches Ready and the
// caller decides whether to retry.
func (s *Session) handleInitializeError(rpcErr *RPCError) {
	s.log.Warn().Int("code", rpcErr.Code).Str("message", rpcErr.Message).Msg("initialize failed")
	s.discard()
}

// installHandlers wires the window/* routing. Installed at construction,
// before the handshake completes.
func (s *Session) installHandlers() {
	s.channel.OnNotification(MethodLogMessage, s.handleLogMessage)
	s.channel.OnNotification(MethodShowMessage, s.handleShowMessage)
	s.channel.OnRequest(MethodShowMessageRequest, s.handleShowMessageRequest)
}

// handleLogMessage forwards a server log line to the host log, tagged with
// the configuration name.
func (s *Session) handleLogMessage(params json.RawMessage) {
	var p LogMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}

	evt := s.log.Info()
	switch p.Type {
	case MessageError:
		evt = s.log.Error()
	case MessageWarning:
		evt = s.log.Warn()
	case MessageLog:
		evt = s.log.Debug()
	}
	evt.Str("server", s.cfg.Name).Msg(p.Message)
}

// handleShowMessage surfaces a server message to the user.
func (s *Session) handleShowMessage(params json.RawMessage) {
	var p ShowMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	s.ui.ShowMessage(p.Message)
}

// handleShowMessageRequest prompts the user with the offered actions and
// replies with the chosen title. A dismissed prompt sends no reply at all:
// the request stays unanswered, matching the do-nothing policy on cancel.
func (s *Session) handleShowMessageRequest(params json.RawMessage, id int64) {
	var p ShowMessageRequestParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	if len(p.Actions) == 0 {
		return
	}

	titles := make([]string, len(p.Actions))
	for i, action := range p.Actions {
		titles[i] = action.Title
	}

	s.ui.ShowPrompt(titles, func(index int) {
		if index < 0 || index >= len(titles) {
			return
		}
		if err := s.channel.Reply(id, MessageActionItem{Title: titles[index]}); err != nil {
			s.log.Debug().Err(err).Msg("reply to showMessageRequest failed")
		}
	})
}

// Name returns the configuration name of the session.
func (s *Session) Name() string {
	return s.cfg.Name
}

// Config returns the session's configuration.
func (s *Session) Config() config.ClientConfig {
	return s.cfg
}

// ProjectPath returns the project root the session was opened against.
func (s *Session) ProjectPath() string {
	return s.projectPath
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasCapability reports whether the server declared the named capability
// with a non-false value. Nested capabilities use dotted paths
// (e.g. "completionProvider.resolveProvider").
func (s *Session) HasCapability(name string) bool {
	s.mu.Lock()
	caps := s.caps
	s.mu.Unlock()

	if len(caps) == 0 {
		return false
	}
	res := gjson.GetBytes(caps, name)
	return res.Exists() && res.Type != gjson.False
}

// Capability returns the raw descriptor of a capability, if present.
func (s *Session) Capability(name string) (gjson.Result, bool) {
	s.mu.Lock()
	caps := s.caps
	s.mu.Unlock()

	if len(caps) == 0 {
		return gjson.Result{}, false
	}
	res := gjson.GetBytes(caps, name)
	return res, res.Exists()
}

// Request issues an asynchronous request on a ready session. Requests are
// rejected once shutdown has begun.
func (s *Session) Request(method string, params any, onResult func(json.RawMessage), onError func(*RPCError)) error {
	s.mu.Lock()
	state := s.state
	ch := s.channel
	s.mu.Unlock()

	switch state {
	case StateStarting:
		return ErrSessionNotReady
	case StateStopping, StateEnded:
		return ErrSessionEnded
	}
	s.logPayload(method, params)
	return ch.Call(method, params, onResult, onError)
}

// Notify sends a notification on a ready session.
func (s *Session) Notify(method string, params any) error {
	s.mu.Lock()
	state := s.state
	ch := s.channel
	s.mu.Unlock()

	switch state {
	case StateStarting:
		return ErrSessionNotReady
	case StateStopping, StateEnded:
		return ErrSessionEnded
	}
	s.logPayload(method, params)
	return ch.Notify(method, params)
}

// logPayload traces an outbound message when payload logging is on.
func (s *Session) logPayload(method string, params any) {
	if !s.logPayloads {
		return
	}
	s.log.Debug().Str("method", method).Interface("params", params).Msg("send")
}

// Exited delivers the exit error of a spawned server process, or nil when
// the session runs over an endpoint or pre-built channel. The host's crash
// detector watches this channel and decides whether to invoke recovery.
func (s *Session) Exited() <-chan error {
	if s.proc == nil {
		return nil
	}
	return s.proc.Exited()
}

// Shutdown performs the ordered shutdown handshake: the shutdown request is
// the last request ever issued on the session, and regardless of how the
// round trip ends the channel is closed, capabilities are cleared, and the
// ended callback fires exactly once. Calling Shutdown again is a no-op.
func (s *Session) Shutdown() {
	s.mu.Lock()
	if s.state == StateStopping || s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(StateStopping)
	ch := s.channel
	s.mu.Unlock()

	err := ch.Call(MethodShutdown, nil,
		func(json.RawMessage) { s.finish() },
		func(*RPCError) { s.finish() },
	)
	if err != nil {
		// Channel already dead (crashed server): end locally.
		s.finish()
	}
}

// discard ends a session that never reached Ready.
func (s *Session) discard() {
	s.mu.Lock()
	if s.state == StateStopping || s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(StateStopping)
	s.mu.Unlock()
	s.finish()
}

// finish releases the transport and moves to the terminal state.
func (s *Session) finish() {
	s.endedOnce.Do(func() {
		s.mu.Lock()
		ch := s.channel
		proc := s.proc
		s.channel = nil
		s.proc = nil
		s.caps = nil
		s.transitionLocked(StateEnded)
		onEnded := s.onEnded
		s.mu.Unlock()

		if ch != nil {
			_ = ch.Close()
		}
		if proc != nil {
			proc.Terminate()
		}

		s.log.Debug().Msg("session ended")
		if onEnded != nil {
			onEnded(s.cfg.Name)
		}
	})
}

// transitionLocked moves the state machine, panicking on an illegal move.
// Every caller already filters the no-op cases, so a violation here is a
// programming error, not a runtime condition. Must hold s.mu.
func (s *Session) transitionLocked(to State) {
	if !CanTransition(s.state, to) {
		panic(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to))
	}
	s.state = to
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
