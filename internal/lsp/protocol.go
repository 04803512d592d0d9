package lsp

import "encoding/json"

// Protocol method names this package produces or consumes.
const (
	MethodInitialize         = "initialize"
	MethodShutdown           = "shutdown"
	MethodLogMessage         = "window/logMessage"
	MethodShowMessage        = "window/showMessage"
	MethodShowMessageRequest = "window/showMessageRequest"
)

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               string             `json:"rootUri,omitempty"`
	RootPath              string             `json:"rootPath,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions map[string]any     `json:"initializationOptions,omitempty"`
}

// InitializeResult is the result of the initialize request. The server's
// capability table is kept as raw JSON; individual capabilities are opaque
// descriptors queried by name.
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
}

// ClientCapabilities is the fixed capability advertisement this client
// sends during the handshake.
type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument"`
	Workspace    WorkspaceClientCapabilities    `json:"workspace"`
}

// TextDocumentClientCapabilities advertises per-document features.
type TextDocumentClientCapabilities struct {
	Synchronization   SyncClientCapabilities           `json:"synchronization"`
	Hover             HoverClientCapabilities          `json:"hover"`
	Completion        CompletionClientCapabilities     `json:"completion"`
	SignatureHelp     SignatureHelpClientCapabilities  `json:"signatureHelp"`
	References        struct{}                         `json:"references"`
	DocumentHighlight struct{}                         `json:"documentHighlight"`
	DocumentSymbol    DocumentSymbolClientCapabilities `json:"documentSymbol"`
	Formatting        struct{}                         `json:"formatting"`
	RangeFormatting   struct{}                         `json:"rangeFormatting"`
	Definition        struct{}                         `json:"definition"`
	CodeAction        CodeActionClientCapabilities     `json:"codeAction"`
	Rename            struct{}                         `json:"rename"`
}

// SyncClientCapabilities advertises text synchronization support.
type SyncClientCapabilities struct {
	DidSave bool `json:"didSave"`
}

// HoverClientCapabilities advertises hover content formats.
type HoverClientCapabilities struct {
	ContentFormat []string `json:"contentFormat"`
}

// CompletionClientCapabilities advertises completion support.
type CompletionClientCapabilities struct {
	CompletionItem     CompletionItemCapabilities `json:"completionItem"`
	CompletionItemKind ValueSet                   `json:"completionItemKind"`
}

// CompletionItemCapabilities advertises completion item features.
type CompletionItemCapabilities struct {
	SnippetSupport bool `json:"snippetSupport"`
}

// SignatureHelpClientCapabilities advertises signature help support.
type SignatureHelpClientCapabilities struct {
	SignatureInformation SignatureInformationCapabilities `json:"signatureInformation"`
}

// SignatureInformationCapabilities advertises signature formats.
type SignatureInformationCapabilities struct {
	DocumentationFormat  []string                         `json:"documentationFormat"`
	ParameterInformation ParameterInformationCapabilities `json:"parameterInformation"`
}

// ParameterInformationCapabilities advertises parameter label support.
type ParameterInformationCapabilities struct {
	LabelOffsetSupport bool `json:"labelOffsetSupport"`
}

// DocumentSymbolClientCapabilities advertises symbol listing support.
type DocumentSymbolClientCapabilities struct {
	SymbolKind ValueSet `json:"symbolKind"`
}

// CodeActionClientCapabilities advertises code action literal support.
type CodeActionClientCapabilities struct {
	CodeActionLiteralSupport CodeActionLiteralSupport `json:"codeActionLiteralSupport"`
}

// CodeActionLiteralSupport lists the supported code action kinds.
type CodeActionLiteralSupport struct {
	CodeActionKind CodeActionKindValueSet `json:"codeActionKind"`
}

// CodeActionKindValueSet is the value set of code action kinds.
type CodeActionKindValueSet struct {
	ValueSet []string `json:"valueSet"`
}

// WorkspaceClientCapabilities advertises workspace-level features.
type WorkspaceClientCapabilities struct {
	ApplyEdit              bool                            `json:"applyEdit"`
	DidChangeConfiguration struct{}                        `json:"didChangeConfiguration"`
	ExecuteCommand         struct{}                        `json:"executeCommand"`
	Symbol                 WorkspaceSymbolClientCapability `json:"symbol"`
}

// WorkspaceSymbolClientCapability advertises workspace symbol search.
type WorkspaceSymbolClientCapability struct {
	SymbolKind ValueSet `json:"symbolKind"`
}

// ValueSet is a numeric protocol value set.
type ValueSet struct {
	ValueSet []int `json:"valueSet"`
}

// CompletionItemKinds enumerates every completion item kind this client
// understands (Text through TypeParameter).
func CompletionItemKinds() []int {
	return kindRange(25)
}

// SymbolKinds enumerates every symbol kind this client understands
// (File through TypeParameter).
func SymbolKinds() []int {
	return kindRange(26)
}

func kindRange(n int) []int {
	kinds := make([]int, n)
	for i := range kinds {
		kinds[i] = i + 1
	}
	return kinds
}

// DefaultClientCapabilities returns the fixed capability advertisement.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		TextDocument: TextDocumentClientCapabilities{
			Synchronization: SyncClientCapabilities{DidSave: true},
			Hover: HoverClientCapabilities{
				ContentFormat: []string{"markdown", "plaintext"},
			},
			Completion: CompletionClientCapabilities{
				CompletionItem:     CompletionItemCapabilities{SnippetSupport: true},
				CompletionItemKind: ValueSet{ValueSet: CompletionItemKinds()},
			},
			SignatureHelp: SignatureHelpClientCapabilities{
				SignatureInformation: SignatureInformationCapabilities{
					DocumentationFormat: []string{"markdown", "plaintext"},
					ParameterInformation: ParameterInformationCapabilities{
						LabelOffsetSupport: true,
					},
				},
			},
			DocumentSymbol: DocumentSymbolClientCapabilities{
				SymbolKind: ValueSet{ValueSet: SymbolKinds()},
			},
			CodeAction: CodeActionClientCapabilities{
				CodeActionLiteralSupport: CodeActionLiteralSupport{
					CodeActionKind: CodeActionKindValueSet{ValueSet: []string{}},
				},
			},
		},
		Workspace: WorkspaceClientCapabilities{
			ApplyEdit: true,
			Symbol: WorkspaceSymbolClientCapability{
				SymbolKind: ValueSet{ValueSet: SymbolKinds()},
			},
		},
	}
}

// MessageType is the severity of a window/* message.
type MessageType int

// Message severities, most severe first.
const (
	MessageError   MessageType = 1
	MessageWarning MessageType = 2
	MessageInfo    MessageType = 3
	MessageLog     MessageType = 4
)

// LogMessageParams are the parameters of window/logMessage.
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ShowMessageParams are the parameters of window/showMessage.
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ShowMessageRequestParams are the parameters of window/showMessageRequest.
type ShowMessageRequestParams struct {
	Type    MessageType         `json:"type"`
	Message string              `json:"message"`
	Actions []MessageActionItem `json:"actions,omitempty"`
}

// MessageActionItem is one action offered by a showMessageRequest, and the
// shape of the reply naming the chosen action.
type MessageActionItem struct {
	Title string `json:"title"`
}
