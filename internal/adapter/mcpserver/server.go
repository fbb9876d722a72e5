// Package mcpserver exposes the discovery pipeline as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolNearLocation    = "find_atms_near_location"
	ToolNearCoordinates = "find_atms_near_coordinates"
)

// Discoverer runs one discovery request.
type Discoverer interface {
	Discover(ctx context.Context, req domain.DiscoveryRequest) (domain.DiscoveryResult, error)
}

// Info describes the server and the brand/category its tools search for.
type Info struct {
	Name         string
	Version      string
	BrandName    string
	CategoryName string
}

// LocationArgs are the arguments of the free-text tool.
type LocationArgs struct {
	Query string `json:"query" jsonschema:"place, address, or landmark to search near, e.g. times square new york"`
	Limit *int   `json:"limit,omitempty" jsonschema:"maximum number of results, 1 to 25"`
}

// CoordinateArgs are the arguments of the coordinate tool.
type CoordinateArgs struct {
	Lat     float64  `json:"lat" jsonschema:"latitude in decimal degrees"`
	Lon     float64  `json:"lon" jsonschema:"longitude in decimal degrees"`
	RadiusM *float64 `json:"radius_m,omitempty" jsonschema:"search radius in metres"`
	Limit   *int     `json:"limit,omitempty" jsonschema:"maximum number of results, 1 to 25"`
}

// toolError is the JSON body of a failed tool call.
type toolError struct {
	Kind    string `json:"error_kind"`
	Message string `json:"message"`
}

// NewServer registers both discovery tools on a new MCP server.
func NewServer(d Discoverer, info Info, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: info.Name, Version: info.Version}, nil)
	subject := info.BrandName + " " + info.CategoryName

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolNearLocation,
		Description: fmt.Sprintf("Find %s locations near a place described in free text. "+
			"Results are sorted by distance from the geocoded place when it can be resolved.", subject),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args LocationArgs) (*mcp.CallToolResult, any, error) {
		return run(ctx, d, logger, ToolNearLocation, domain.DiscoveryRequest{Query: args.Query, Limit: args.Limit})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolNearCoordinates,
		Description: fmt.Sprintf("Find %s locations within a radius of a latitude/longitude, "+
			"sorted by distance.", subject),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args CoordinateArgs) (*mcp.CallToolResult, any, error) {
		lat, lon := args.Lat, args.Lon
		return run(ctx, d, logger, ToolNearCoordinates, domain.DiscoveryRequest{
			Lat: &lat, Lon: &lon, RadiusM: args.RadiusM, Limit: args.Limit,
		})
	})

	return server
}

func run(ctx context.Context, d Discoverer, logger *slog.Logger, tool string, req domain.DiscoveryRequest) (*mcp.CallToolResult, any, error) {
	result, err := d.Discover(ctx, req)
	if err != nil {
		logger.Debug("tool call failed", "tool", tool, "error", err)
		return errorResult(err), nil, nil
	}
	return nil, result, nil
}

// errorResult reports a failure in-band so the calling model can read the kind and message.
func errorResult(err error) *mcp.CallToolResult {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		msg = "internal error"
	}
	body, _ := json.Marshal(toolError{Kind: kind, Message: msg})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}
}

// RunStdio serves the MCP session over stdin/stdout until ctx is done or the client disconnects.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the MCP streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}
