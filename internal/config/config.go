// Package config defines language-client configurations: how to launch or
// connect to a language server and which documents it applies to.
package config

// LanguageConfig describes one language a client configuration serves.
type LanguageConfig struct {
	// ID is the language identifier sent to the server (e.g., "go").
	ID string `toml:"id"`

	// Scopes are the syntax scopes this language matches.
	Scopes []string `toml:"scopes"`

	// Syntaxes are host syntax names this language matches.
	Syntaxes []string `toml:"syntaxes"`
}

// ClientConfig identifies a language server and how to reach it.
// A resolved configuration is immutable for the lifetime of a session.
type ClientConfig struct {
	// Name uniquely identifies the configuration.
	Name string `toml:"name"`

	// Command is the server launch command and arguments. Empty when the
	// server is reached over a fixed endpoint or a pre-built channel.
	Command []string `toml:"command"`

	// TCPHost and TCPPort describe a fixed network endpoint. A zero port
	// means stdio.
	TCPHost string `toml:"tcp_host"`
	TCPPort int    `toml:"tcp_port"`

	// Languages lists the languages this configuration applies to.
	Languages []LanguageConfig `toml:"languages"`

	// InitOptions are passed verbatim in the initialize request.
	InitOptions map[string]any `toml:"init_options"`

	// Settings are host-side settings for this client.
	Settings map[string]any `toml:"settings"`

	// Enabled gates the configuration without removing it from the file.
	Enabled bool `toml:"enabled"`
}

// Matches reports whether the configuration serves the given syntax name.
func (c ClientConfig) Matches(syntax string) bool {
	for _, lang := range c.Languages {
		for _, s := range lang.Syntaxes {
			if s == syntax {
				return true
			}
		}
	}
	return false
}

// Settings holds runtime knobs that apply to every session.
type Settings struct {
	// LogStderr forwards server stderr lines to the host log.
	LogStderr bool `toml:"log_stderr"`

	// LogPayloads logs full request/response payloads at debug level.
	LogPayloads bool `toml:"log_payloads"`
}
