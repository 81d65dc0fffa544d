package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/testutil"
	"github.com/leapstack-labs/dashql/pkg/catalog"
)

const (
	schemaURI = "file:///work/schema.sql"
	queryURI  = "file:///work/query.sql"
)

// request frames a JSON-RPC message. A zero id makes it a notification.
func request(t *testing.T, id int, method string, params any) string {
	t.Helper()
	msg := map[string]any{"jsonrpc": "2.0", "method": method}
	if id != 0 {
		msg["id"] = id
	}
	if params != nil {
		msg["params"] = params
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func didOpen(t *testing.T, uri, text string) string {
	t.Helper()
	return request(t, 0, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "sql", Version: 1, Text: text},
	})
}

func positionParams(uri string, line, char uint32) TextDocumentPositionParams {
	return TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     Position{Line: line, Character: char},
	}
}

// setupTestServer feeds messages to a server until EOF and returns its
// output messages and the Run error.
func setupTestServer(t *testing.T, cat *catalog.Catalog, messages ...string) ([]JSONRPCMessage, error) {
	t.Helper()
	if cat == nil {
		cat = catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	}
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(strings.Join(messages, "")), &out,
		WithCatalog(cat),
		WithLogger(testutil.NewTestLogger(t)))
	runErr := srv.Run()
	return readOutput(t, &out), runErr
}

// readOutput decodes and drains the messages written to out.
func readOutput(t *testing.T, out *bytes.Buffer) []JSONRPCMessage {
	t.Helper()
	reader := &Server{reader: bufio.NewReader(out)}
	var msgs []JSONRPCMessage
	for {
		msg, err := reader.readMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		msgs = append(msgs, *msg)
	}
	out.Reset()
	return msgs
}

// send decodes one framed message and handles it like Run does.
func send(t *testing.T, srv *Server, framed string) {
	t.Helper()
	srv.reader = bufio.NewReader(strings.NewReader(framed))
	msg, err := srv.readMessage()
	require.NoError(t, err)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.NoError(t, srv.handleMessage(msg))
}

// response returns the result of the response with the given id.
func response(t *testing.T, msgs []JSONRPCMessage, id int, result any) *JSONRPCError {
	t.Helper()
	want := fmt.Sprintf("%d", id)
	for _, m := range msgs {
		if m.ID == nil || string(*m.ID) != want {
			continue
		}
		if m.Error != nil {
			return m.Error
		}
		if result != nil {
			require.NoError(t, json.Unmarshal(m.Result, result))
		}
		return nil
	}
	t.Fatalf("no response with id %d", id)
	return nil
}

// lastDiagnostics returns the latest diagnostics published for uri.
func lastDiagnostics(t *testing.T, msgs []JSONRPCMessage, uri string) []Diagnostic {
	t.Helper()
	var out []Diagnostic
	found := false
	for _, m := range msgs {
		if m.Method != "textDocument/publishDiagnostics" {
			continue
		}
		var p PublishDiagnosticsParams
		require.NoError(t, json.Unmarshal(m.Params, &p))
		if p.URI == uri {
			out, found = p.Diagnostics, true
		}
	}
	require.True(t, found, "no diagnostics published for %s", uri)
	return out
}

func TestServer_Initialize(t *testing.T) {
	msgs, err := setupTestServer(t, nil,
		request(t, 1, "initialize", InitializeParams{RootURI: "file:///work"}))
	require.NoError(t, err)

	var result InitializeResult
	require.Nil(t, response(t, msgs, 1, &result))
	caps := result.Capabilities
	require.NotNil(t, caps.TextDocumentSync)
	assert.Equal(t, TextDocumentSyncKindIncremental, caps.TextDocumentSync.Change)
	assert.True(t, caps.HoverProvider)
	assert.True(t, caps.DefinitionProvider)
	assert.True(t, caps.DocumentHighlightProvider)
	require.NotNil(t, caps.CompletionProvider)
	assert.Contains(t, caps.CompletionProvider.TriggerCharacters, ".")
	assert.Equal(t, "dashql", result.ServerInfo.Name)
}

func TestServer_Lifecycle(t *testing.T) {
	tests := []struct {
		name     string
		messages func(t *testing.T) []string
		wantErr  error
	}{
		{
			name: "shutdown then exit",
			messages: func(t *testing.T) []string {
				return []string{request(t, 1, "shutdown", nil), request(t, 0, "exit", nil)}
			},
		},
		{
			name: "exit without shutdown",
			messages: func(t *testing.T) []string {
				return []string{request(t, 0, "exit", nil)}
			},
			wantErr: ErrExitWithoutShutdown,
		},
		{
			name: "eof",
			messages: func(t *testing.T) []string {
				return []string{request(t, 1, "initialize", InitializeParams{})}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := setupTestServer(t, nil, tt.messages(t)...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestServer_RequestAfterShutdown(t *testing.T) {
	msgs, err := setupTestServer(t, nil,
		request(t, 1, "shutdown", nil),
		request(t, 2, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 0)}),
		request(t, 3, "unknown/method", nil))
	require.NoError(t, err)

	assert.Nil(t, response(t, msgs, 1, nil))
	rpcErr := response(t, msgs, 2, nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeInvalidRequest, rpcErr.Code)
}

func TestServer_MethodNotFound(t *testing.T) {
	msgs, err := setupTestServer(t, nil, request(t, 7, "workspace/symbol", map[string]string{"query": "x"}))
	require.NoError(t, err)

	rpcErr := response(t, msgs, 7, nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeMethodNotFound, rpcErr.Code)
}

func TestServer_Diagnostics(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		source string
	}{
		{name: "valid", text: "select 1"},
		{name: "syntax error", text: "select * from where", source: "dashql-parser"},
		{name: "unterminated string", text: "select 'abc", source: "dashql-scanner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := setupTestServer(t, nil, didOpen(t, queryURI, tt.text))
			require.NoError(t, err)

			diags := lastDiagnostics(t, msgs, queryURI)
			if tt.source == "" {
				assert.Empty(t, diags)
				return
			}
			require.NotEmpty(t, diags)
			sources := make([]string, 0, len(diags))
			for _, d := range diags {
				assert.Equal(t, DiagnosticSeverityError, d.Severity)
				sources = append(sources, d.Source)
			}
			assert.Contains(t, sources, tt.source)
		})
	}
}

func TestServer_DidCloseDropsTables(t *testing.T) {
	cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	msgs, err := setupTestServer(t, cat,
		didOpen(t, schemaURI, "create table t (a int)"),
		request(t, 0, "textDocument/didClose", DidCloseTextDocumentParams{
			TextDocument: TextDocumentIdentifier{URI: schemaURI},
		}))
	require.NoError(t, err)

	assert.Empty(t, lastDiagnostics(t, msgs, schemaURI))
	assert.False(t, cat.Contains(1))
}

func TestServer_Completion(t *testing.T) {
	msgs, err := setupTestServer(t, nil,
		didOpen(t, schemaURI, testutil.TPCHSchema),
		didOpen(t, queryURI, "select * from cus"),
		request(t, 1, "textDocument/completion", CompletionParams{
			TextDocumentPositionParams: positionParams(queryURI, 0, 17),
		}))
	require.NoError(t, err)

	var list CompletionList
	require.Nil(t, response(t, msgs, 1, &list))
	require.NotEmpty(t, list.Items)

	top := list.Items[0]
	assert.Equal(t, "customer", top.Label)
	assert.Equal(t, CompletionItemKindClass, top.Kind)
	assert.True(t, top.Preselect)
	assert.Equal(t, "0000", top.SortText)
	require.NotNil(t, top.TextEdit)
	assert.Equal(t, Range{
		Start: Position{Line: 0, Character: 14},
		End:   Position{Line: 0, Character: 17},
	}, top.TextEdit.Range)
	assert.Equal(t, "customer", top.TextEdit.NewText)
}

func TestServer_IncrementalChange(t *testing.T) {
	msgs, err := setupTestServer(t, nil,
		didOpen(t, schemaURI, testutil.TPCHSchema),
		didOpen(t, queryURI, "select * from x"),
		request(t, 0, "textDocument/didChange", DidChangeTextDocumentParams{
			TextDocument: VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: TextDocumentIdentifier{URI: queryURI},
				Version:                2,
			},
			ContentChanges: []TextDocumentContentChangeEvent{{
				Range: &Range{Start: Position{Line: 0, Character: 14}, End: Position{Line: 0, Character: 15}},
				Text:  "nat",
			}},
		}),
		request(t, 1, "textDocument/completion", CompletionParams{
			TextDocumentPositionParams: positionParams(queryURI, 0, 17),
		}))
	require.NoError(t, err)

	var list CompletionList
	require.Nil(t, response(t, msgs, 1, &list))
	require.NotEmpty(t, list.Items)
	assert.Equal(t, "nation", list.Items[0].Label)
}

func TestServer_HoverAndDefinition(t *testing.T) {
	const query = "select c_name from customer"
	msgs, err := setupTestServer(t, nil,
		didOpen(t, schemaURI, testutil.TPCHSchema),
		didOpen(t, queryURI, query),
		request(t, 1, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 8)}),
		request(t, 2, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 22)}),
		request(t, 3, "textDocument/definition", DefinitionParams{positionParams(queryURI, 0, 8)}),
		request(t, 4, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 0)}))
	require.NoError(t, err)

	var column Hover
	require.Nil(t, response(t, msgs, 1, &column))
	assert.Equal(t, MarkupKindMarkdown, column.Contents.Kind)
	assert.Contains(t, column.Contents.Value, "**column** `c_name`")
	assert.Contains(t, column.Contents.Value, "customer")
	assert.Contains(t, column.Contents.Value, "declared in /work/schema.sql")
	require.NotNil(t, column.Range)
	assert.Equal(t, uint32(7), column.Range.Start.Character)

	var table Hover
	require.Nil(t, response(t, msgs, 2, &table))
	assert.Contains(t, table.Contents.Value, "**table**")
	assert.Contains(t, table.Contents.Value, "`c_custkey`")

	var def Location
	require.Nil(t, response(t, msgs, 3, &def))
	assert.Equal(t, schemaURI, def.URI)
	assert.Positive(t, def.Range.Start.Line)

	var none *Hover
	require.Nil(t, response(t, msgs, 4, &none))
	assert.Nil(t, none)
}

func TestServer_HoverUnresolved(t *testing.T) {
	msgs, err := setupTestServer(t, nil,
		didOpen(t, queryURI, "select a from missing"),
		request(t, 1, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 16)}))
	require.NoError(t, err)

	var h Hover
	require.Nil(t, response(t, msgs, 1, &h))
	assert.Contains(t, h.Contents.Value, "**unresolved table**")
}

func TestServer_DocumentHighlight(t *testing.T) {
	msgs, err := setupTestServer(t, nil,
		didOpen(t, schemaURI, testutil.TPCHSchema),
		didOpen(t, queryURI, "select c_name, c_phone, c_name from customer"),
		request(t, 1, "textDocument/documentHighlight", DocumentHighlightParams{positionParams(queryURI, 0, 8)}))
	require.NoError(t, err)

	var highlights []DocumentHighlight
	require.Nil(t, response(t, msgs, 1, &highlights))
	require.Len(t, highlights, 2)
	assert.Equal(t, uint32(7), highlights[0].Range.Start.Character)
	assert.Equal(t, uint32(24), highlights[1].Range.Start.Character)
	assert.Equal(t, DocumentHighlightKindRead, highlights[0].Kind)
}

func TestServer_ReanalyzesOnCatalogChange(t *testing.T) {
	tests := []struct {
		name string
		// notify tells the server about the change before the request.
		notify bool
	}{
		{name: "catalog changed notification", notify: true},
		{name: "request after external change"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
			var out bytes.Buffer
			srv := NewServer(strings.NewReader(""), &out,
				WithCatalog(cat),
				WithLogger(testutil.NewTestLogger(t)))

			send(t, srv, didOpen(t, queryURI, "select o_id from orders"))
			send(t, srv, request(t, 1, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 18)}))
			msgs := readOutput(t, &out)
			var before Hover
			require.Nil(t, response(t, msgs, 1, &before))
			assert.Contains(t, before.Contents.Value, "**unresolved table**")

			// A metadata source registers the table outside the server.
			require.NoError(t, cat.ReplaceDescriptorPool(1<<30, 10, []catalog.SchemaDescriptor{{
				Tables: []catalog.TableDescriptor{{
					TableName: "orders",
					Columns:   []catalog.ColumnDescriptor{{ColumnName: "o_id"}},
				}},
			}}))

			if tt.notify {
				srv.CatalogChanged()
				msgs = readOutput(t, &out)
				assert.Empty(t, lastDiagnostics(t, msgs, queryURI), "diagnostics are republished")
			}

			send(t, srv, request(t, 2, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 18)}))
			send(t, srv, request(t, 3, "textDocument/hover", HoverParams{positionParams(queryURI, 0, 8)}))
			msgs = readOutput(t, &out)

			var table Hover
			require.Nil(t, response(t, msgs, 2, &table))
			assert.Contains(t, table.Contents.Value, "**table**")
			assert.Contains(t, table.Contents.Value, "`o_id`")

			var column Hover
			require.Nil(t, response(t, msgs, 3, &column))
			assert.Contains(t, column.Contents.Value, "**column** `o_id`")

			// Nothing changed since, so the documents are not analyzed again.
			version := cat.Version()
			srv.CatalogChanged()
			assert.Equal(t, version, cat.Version())
			assert.Empty(t, readOutput(t, &out))
		})
	}
}
