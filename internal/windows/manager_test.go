package windows

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/softgrove/langhub/internal/config"
	"github.com/softgrove/langhub/internal/lsp"
)

func goOnlyConfigs() *fakeConfigs {
	return &fakeConfigs{configs: []config.ClientConfig{testClientConfig("gopls", "go")}}
}

func newTestManager(window *fakeWindow, configs *fakeConfigs) (*WindowManager, *fakeDocuments, *fakeDispatcher, *sessionRecorder) {
	docs := newFakeDocuments()
	dispatcher := newFakeDispatcher()
	rec := &sessionRecorder{}
	m := NewWindowManager(window, configs, docs, rec.starter(), dispatcher, zerolog.Nop())
	return m, docs, dispatcher, rec
}

func TestActivateViewStartsMatchingSession(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	view := window.openView("/proj/main.go", "go")

	m, docs, dispatcher, rec := newTestManager(window, goOnlyConfigs())
	m.ActivateView(view)

	if got := m.SessionCount(); got != 1 {
		t.Fatalf("SessionCount = %d, want 1", got)
	}
	sess := m.Session("gopls")
	if sess == nil {
		t.Fatal("Session(gopls) = nil")
	}
	if sess.State() != lsp.StateReady {
		t.Fatalf("state = %v, want ready", sess.State())
	}
	if sess.ProjectPath() != "/proj" {
		t.Fatalf("project path = %q, want /proj", sess.ProjectPath())
	}
	if len(rec.starts) != 1 || rec.starts[0] != "gopls" {
		t.Fatalf("starts = %v, want [gopls]", rec.starts)
	}
	if !docs.hasSession("gopls") {
		t.Fatal("ready session was not handed to the document handler")
	}
	if got := docs.documentNames(); len(got) != 1 || got[0] != "/proj/main.go" {
		t.Fatalf("documents = %v", got)
	}
	if inits := dispatcher.initializedNames(); len(inits) != 1 || inits[0] != "gopls" {
		t.Fatalf("initialized = %v, want [gopls]", inits)
	}
}

func TestActivateViewIgnoresUnmatchedSyntax(t *testing.T) {
	window := newFakeWindow(1)
	view := window.openView("/proj/notes.txt", "plaintext")

	m, _, _, rec := newTestManager(window, goOnlyConfigs())
	m.ActivateView(view)

	if m.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d, want 0", m.SessionCount())
	}
	if len(rec.starts) != 0 {
		t.Fatalf("starts = %v, want none", rec.starts)
	}
}

func TestSecondViewReusesSession(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	first := window.openView("/proj/a.go", "go")
	second := window.openView("/proj/b.go", "go")

	m, docs, _, rec := newTestManager(window, goOnlyConfigs())
	m.ActivateView(first)
	m.ActivateView(second)

	if len(rec.starts) != 1 {
		t.Fatalf("starts = %v, want exactly one", rec.starts)
	}
	if m.SessionCount() != 1 {
		t.Fatalf("SessionCount = %d, want 1", m.SessionCount())
	}
	got := docs.documentNames()
	if len(got) != 2 || got[0] != "/proj/a.go" || got[1] != "/proj/b.go" {
		t.Fatalf("documents = %v", got)
	}
}

func TestStartVetoedByDispatcher(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	view := window.openView("/proj/a.go", "go")

	m, _, dispatcher, rec := newTestManager(window, goOnlyConfigs())
	dispatcher.setAllowStart(false)
	m.ActivateView(view)

	if m.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d, want 0", m.SessionCount())
	}
	if len(rec.starts) != 0 {
		t.Fatalf("starts = %v, want none", rec.starts)
	}
	if asked := dispatcher.startAskedNames(); len(asked) != 1 || asked[0] != "gopls" {
		t.Fatalf("startAsked = %v, want [gopls]", asked)
	}
}

func TestFailedHandshakeLeavesNoSession(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	view := window.openView("/proj/a.go", "go")

	docs := newFakeDocuments()
	dispatcher := newFakeDispatcher()
	var channels []*scriptedChannel
	failing := SessionStarter(func(_ WindowLike, projectPath string, cfg config.ClientConfig, onReady func(*lsp.Session), onEnded func(string)) (*lsp.Session, error) {
		ch := newScriptedChannel()
		ch.errors[lsp.MethodInitialize] = &lsp.RPCError{Code: lsp.CodeInternalError, Message: "boom"}
		channels = append(channels, ch)
		return lsp.Open(cfg, projectPath,
			lsp.WithChannel(ch),
			lsp.WithReadyFunc(onReady),
			lsp.WithEndedFunc(onEnded),
		)
	})
	m := NewWindowManager(window, goOnlyConfigs(), docs, failing, dispatcher, zerolog.Nop())
	m.ActivateView(view)

	if m.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d, want 0", m.SessionCount())
	}
	if inits := dispatcher.initializedNames(); len(inits) != 0 {
		t.Fatalf("initialized = %v, want none", inits)
	}
	if len(channels) != 1 || !channels[0].Closed() {
		t.Fatal("failed session did not release its channel")
	}
}

func TestEndSessionsShutsDownEverything(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	goView := window.openView("/proj/a.go", "go")
	pyView := window.openView("/proj/b.py", "python")
	configs := &fakeConfigs{configs: []config.ClientConfig{
		testClientConfig("gopls", "go"),
		testClientConfig("pylsp", "python"),
	}}

	m, docs, _, rec := newTestManager(window, configs)
	m.ActivateView(goView)
	m.ActivateView(pyView)
	if m.SessionCount() != 2 {
		t.Fatalf("SessionCount = %d, want 2", m.SessionCount())
	}

	m.EndSessions()

	if m.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d, want 0", m.SessionCount())
	}
	if docs.sessionCount() != 0 {
		t.Fatalf("document handler still holds %d sessions", docs.sessionCount())
	}
	if len(docs.documentNames()) != 0 {
		t.Fatalf("documents = %v, want none", docs.documentNames())
	}
	for _, ch := range rec.channels {
		if !ch.Closed() {
			t.Fatal("channel left open after EndSessions")
		}
		last := ch.sent[len(ch.sent)-1]
		if last != lsp.MethodShutdown {
			t.Fatalf("last method = %q, want %q", last, lsp.MethodShutdown)
		}
	}
}

func TestProjectPathChangeEndsSessions(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/projA"}
	viewA := window.openView("/projA/a.go", "go")

	m, _, _, rec := newTestManager(window, goOnlyConfigs())
	m.ActivateView(viewA)
	first := m.Session("gopls")
	if first == nil || first.ProjectPath() != "/projA" {
		t.Fatal("first session missing or rooted wrongly")
	}

	window.folders = []string{"/projB"}
	viewB := window.openView("/projB/b.go", "go")
	m.ActivateView(viewB)

	if first.State() != lsp.StateEnded {
		t.Fatalf("old session state = %v, want ended", first.State())
	}
	second := m.Session("gopls")
	if second == nil || second == first {
		t.Fatal("no fresh session after project switch")
	}
	if second.ProjectPath() != "/projB" {
		t.Fatalf("new project path = %q, want /projB", second.ProjectPath())
	}
	if len(rec.starts) != 2 {
		t.Fatalf("starts = %v, want two", rec.starts)
	}
}

func TestQuickProjectSwitchWithoutMatchingView(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/projA"}
	viewA := window.openView("/projA/a.go", "go")

	m, _, _, _ := newTestManager(window, goOnlyConfigs())
	m.ActivateView(viewA)
	first := m.Session("gopls")

	window.folders = []string{"/projB"}
	plain := window.openView("/projB/readme.txt", "plaintext")
	m.ActivateView(plain)

	if first.State() != lsp.StateEnded {
		t.Fatalf("old session state = %v, want ended", first.State())
	}
	if m.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d, want 0", m.SessionCount())
	}
}

func TestRestartSessions(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	window.openView("/proj/a.go", "go")

	m, docs, _, rec := newTestManager(window, goOnlyConfigs())
	m.StartActiveViews()
	first := m.Session("gopls")

	m.RestartSessions()

	if first.State() != lsp.StateEnded {
		t.Fatalf("old session state = %v, want ended", first.State())
	}
	second := m.Session("gopls")
	if second == nil || second == first {
		t.Fatal("restart did not launch a fresh session")
	}
	if second.State() != lsp.StateReady {
		t.Fatalf("new session state = %v, want ready", second.State())
	}
	if len(rec.starts) != 2 {
		t.Fatalf("starts = %v, want two", rec.starts)
	}
	if got := docs.documentNames(); len(got) != 1 || got[0] != "/proj/a.go" {
		t.Fatalf("documents = %v, want the one view re-registered", got)
	}
}

func TestHandleServerCrashRestarts(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	window.openView("/proj/a.go", "go")
	cfg := testClientConfig("gopls", "go")
	configs := &fakeConfigs{configs: []config.ClientConfig{cfg}}

	m, docs, dispatcher, rec := newTestManager(window, configs)
	m.StartActiveViews()
	crashed := m.Session("gopls")

	m.HandleServerCrash(cfg)

	if crashed.State() != lsp.StateEnded {
		t.Fatalf("crashed session state = %v, want ended", crashed.State())
	}
	replacement := m.Session("gopls")
	if replacement == nil || replacement == crashed {
		t.Fatal("crash did not produce a replacement session")
	}
	if replacement.State() != lsp.StateReady {
		t.Fatalf("replacement state = %v, want ready", replacement.State())
	}
	if len(rec.starts) != 2 {
		t.Fatalf("starts = %v, want two", rec.starts)
	}
	if asked := dispatcher.startAskedNames(); len(asked) != 2 {
		t.Fatalf("startAsked = %v, want asked again on restart", asked)
	}
	if got := docs.documentNames(); len(got) != 1 || got[0] != "/proj/a.go" {
		t.Fatalf("documents = %v, want re-registered view", got)
	}
}

func TestHandleServerCrashRestartDeclined(t *testing.T) {
	window := newFakeWindow(1)
	window.folders = []string{"/proj"}
	window.openView("/proj/a.go", "go")
	cfg := testClientConfig("gopls", "go")
	configs := &fakeConfigs{configs: []config.ClientConfig{cfg}}

	m, _, dispatcher, rec := newTestManager(window, configs)
	m.StartActiveViews()
	crashed := m.Session("gopls")

	dispatcher.setAllowStart(false)
	m.HandleServerCrash(cfg)

	if crashed.State() != lsp.StateEnded {
		t.Fatalf("crashed session state = %v, want ended", crashed.State())
	}
	if m.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d, want 0 after declined restart", m.SessionCount())
	}
	if len(rec.starts) != 1 {
		t.Fatalf("starts = %v, want only the original", rec.starts)
	}
}
