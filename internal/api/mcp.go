package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ppinheiro86/doctalk/internal/chat"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

// MCPChat abstracts the chat orchestrator for the MCP layer.
type MCPChat interface {
	Ask(ctx context.Context, userID, documentID, content string) (storage.Message, error)
}

// MCPDeps holds dependencies for the MCP server. The server acts on behalf of
// one local user, resolved at startup.
type MCPDeps struct {
	Store  *storage.Store
	Chat   MCPChat
	UserID string
}

// NewMCPServer creates an MCP server exposing the user's documents as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"doctalk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("doctalk — chat with your uploaded documents using their extracted text."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_documents",
			mcp.WithDescription("List the user's uploaded documents with their processing status."),
		),
		mcpListDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("get_document",
			mcp.WithDescription("Get a document's metadata and, when processing is complete, its extracted text."),
			mcp.WithString("document_id", mcp.Description("ID of the document"), mcp.Required()),
		),
		mcpGetDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_document",
			mcp.WithDescription("Ask a question about a processed document. The answer is grounded in the document's extracted text and recorded in the chat history."),
			mcp.WithString("document_id", mcp.Description("ID of the document"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpAskDocument(deps),
	)

	return s
}

func mcpListDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := deps.Store.ListDocuments(deps.UserID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list documents: %v", err)), nil
		}

		out := make([]documentResponse, len(docs))
		for i, d := range docs {
			out[i] = toDocumentResponse(d)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal documents: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && doc.UserID != deps.UserID) {
			return mcpError("document not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get document: %v", err)), nil
		}

		type documentDetail struct {
			documentResponse
			ExtractedText string `json:"extractedText,omitempty"`
		}
		detail := documentDetail{documentResponse: toDocumentResponse(doc)}
		if doc.Status == storage.StatusCompleted {
			if et, err := deps.Store.GetExtractedText(doc.ID); err == nil {
				detail.ExtractedText = et.Text
			}
		}

		b, err := json.Marshal(detail)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal document: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		msg, err := deps.Chat.Ask(ctx, deps.UserID, id, question)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return mcpError("document not found"), nil
		case errors.Is(err, chat.ErrDocumentNotReady):
			return mcpError("document is still being processed; try again shortly"), nil
		case errors.Is(err, chat.ErrUpstreamUnavailable):
			return mcpError("language model unavailable"), nil
		case err != nil:
			return mcpError(fmt.Sprintf("failed to ask: %v", err)), nil
		}

		return mcpText(msg.Content), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
