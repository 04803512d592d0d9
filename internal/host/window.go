package host

import (
	"path/filepath"
	"strings"

	"github.com/softgrove/langhub/internal/windows"
)

// fileView is a document the host opened from the command line.
type fileView struct {
	name   string
	syntax string
}

func (v *fileView) FileName() string { return v.name }
func (v *fileView) Syntax() string   { return v.syntax }

// workspaceWindow is the headless stand-in for an editor window: one
// workspace folder and the set of files named on the command line.
type workspaceWindow struct {
	id      int
	folders []string
	views   []windows.ViewLike
	closed  bool
}

func newWorkspaceWindow(id int, workspace string, files []string) *workspaceWindow {
	w := &workspaceWindow{id: id}
	if workspace != "" {
		w.folders = []string{workspace}
	}
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			abs = file
		}
		w.views = append(w.views, &fileView{name: abs, syntax: syntaxForFile(abs)})
	}
	return w
}

func (w *workspaceWindow) ID() int                   { return w.id }
func (w *workspaceWindow) IsValid() bool             { return !w.closed }
func (w *workspaceWindow) Folders() []string         { return w.folders }
func (w *workspaceWindow) Views() []windows.ViewLike { return w.views }

// syntaxForFile maps a file extension to the syntax name client configs
// match against.
func syntaxForFile(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp":
		return "cpp"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".md":
		return "markdown"
	default:
		return "plaintext"
	}
}
