// Package windows multiplexes language server sessions across editor
// windows. A WindowRegistry maps each window to a WindowManager, and each
// manager keeps at most one session per client config, starting sessions
// lazily as matching views become active and ending them when the window
// closes or its project path changes.
package windows
