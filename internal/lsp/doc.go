// Package lsp implements the client side of one language server connection.
//
// A Session owns exactly one MessageChannel and drives the protocol
// lifecycle through an explicit state machine:
//
//	Starting --> Ready --> Stopping --> Ended
//	    \__________________/^
//
// Open selects the transport from the configuration (spawned process,
// fixed TCP endpoint, or a caller-supplied channel), sends the initialize
// handshake with a fixed client capability advertisement, and reports
// readiness asynchronously. Shutdown performs the ordered shutdown round
// trip; whatever the server answers, the session always ends locally and
// the ended callback fires exactly once.
//
// Server-initiated window/logMessage, window/showMessage and
// window/showMessageRequest traffic is routed from construction onward,
// independent of handshake completion. Requests and notifications for
// methods nothing registered are ignored.
//
// Sessions do not retry: a failed launch or handshake is reported once and
// the caller decides what to do next. Crash detection is likewise the
// caller's job, observed through Exited.
package lsp
