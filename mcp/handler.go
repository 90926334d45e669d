package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service"
	"github.com/foomo/linkgraph-mcp/service/vo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const Version = "0.1.0"

// TokenHeader lets HTTP callers supply their own store token per request.
const TokenHeader = "X-Notion-Token"

type LinkGraphRequest struct {
	DatabaseID    string `json:"databaseId"`    // The database whose pages form the graph
	ConnectedOnly bool   `json:"connectedOnly"` // Drop pages without links or backlinks
}

type LinkGraphResponse struct {
	Results []vo.GraphEntry `json:"results"`
	Stats   vo.Stats        `json:"stats"`
	Edges   []vo.Edge       `json:"edges"`
}

type ListPagesRequest struct {
	DatabaseID string `json:"databaseId"` // The database to list
}

type ListPagesResponse struct {
	Pages []vo.Page `json:"pages"`
}

// NewServer creates a new MCP server with the linkGraph and listPages tools.
// creds are used unless an HTTP caller sends its own token.
func NewServer(serviceInstance service.Service, creds notion.Credentials) *server.MCPServer {
	s := server.NewMCPServer(
		"Notion Link Graph MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	linkGraphTool := mcp.NewTool("linkGraph",
		mcp.WithDescription("Compute the link graph of a Notion database: for every page its outgoing links to other pages of the database and its backlinks"),
		mcp.WithString("databaseId",
			mcp.Required(),
			mcp.Description("The id of the Notion database"),
		),
		mcp.WithBoolean("connectedOnly",
			mcp.Description("Only return pages that have at least one link or backlink"),
		),
	)
	s.AddTool(linkGraphTool, mcp.NewTypedToolHandler(getLinkGraphHandler(serviceInstance, creds)))

	listPagesTool := mcp.NewTool("listPages",
		mcp.WithDescription("List the pages of a Notion database with their titles and urls"),
		mcp.WithString("databaseId",
			mcp.Required(),
			mcp.Description("The id of the Notion database"),
		),
	)
	s.AddTool(listPagesTool, mcp.NewTypedToolHandler(getListPagesHandler(serviceInstance, creds)))

	return s
}

func getLinkGraphHandler(serviceInstance service.Service, creds notion.Credentials) func(ctx context.Context, request mcp.CallToolRequest, args LinkGraphRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args LinkGraphRequest) (*mcp.CallToolResult, error) {
		if args.DatabaseID == "" {
			return mcp.NewToolResultError("databaseId is required"), nil
		}

		graph, err := serviceInstance.ComputeLinkGraph(ctx, credentialsFromContext(ctx, creds), args.DatabaseID, service.Options{
			ConnectedOnly: args.ConnectedOnly,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to compute link graph: %v", err)), nil
		}

		response := LinkGraphResponse{
			Results: graph.Results(),
			Stats:   graph.Stats,
			Edges:   graph.Edges(),
		}
		return jsonResult(response)
	}
}

func getListPagesHandler(serviceInstance service.Service, creds notion.Credentials) func(ctx context.Context, request mcp.CallToolRequest, args ListPagesRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListPagesRequest) (*mcp.CallToolResult, error) {
		if args.DatabaseID == "" {
			return mcp.NewToolResultError("databaseId is required"), nil
		}

		pages, err := serviceInstance.ListPages(ctx, credentialsFromContext(ctx, creds), args.DatabaseID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list pages: %v", err)), nil
		}
		return jsonResult(ListPagesResponse{Pages: pages})
	}
}

func jsonResult(response any) (*mcp.CallToolResult, error) {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseBytes)), nil
}

// credentialsFromContext prefers a token sent with the originating HTTP request.
func credentialsFromContext(ctx context.Context, fallback notion.Credentials) notion.Credentials {
	req, ok := httpRequestFromContext(ctx)
	if !ok {
		return fallback
	}
	if token := strings.TrimSpace(req.Header.Get(TokenHeader)); token != "" {
		return notion.Credentials{Token: token}
	}
	return fallback
}
