package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDiscoverer struct {
	result domain.DiscoveryResult
	err    error
	got    domain.DiscoveryRequest
}

func (m *mockDiscoverer) Discover(_ context.Context, req domain.DiscoveryRequest) (domain.DiscoveryResult, error) {
	m.got = req
	return m.result, m.err
}

func connect(t *testing.T, d Discoverer) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(d, Info{Name: "poi-discovery", Version: "test", BrandName: "Bank of America", CategoryName: "ATM"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestServer_ListTools(t *testing.T) {
	session := connect(t, &mockDiscoverer{})

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.Contains(t, tool.Description, "Bank of America ATM")
	}
	assert.ElementsMatch(t, []string{ToolNearLocation, ToolNearCoordinates}, names)
}

func TestServer_NearCoordinates(t *testing.T) {
	dist := 111.0
	d := &mockDiscoverer{result: domain.DiscoveryResult{
		Count:          1,
		Items:          []domain.PoiCandidate{{Name: "ATM One", DistanceM: &dist, Source: domain.SourceOverpass}},
		RewrittenQuery: "Bank of America ATM within 3000m of 37.774900,-122.419400",
		Mode:           domain.ModeCoordinate,
	}}
	session := connect(t, d)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolNearCoordinates,
		Arguments: map[string]any{"lat": 37.7749, "lon": -122.4194, "radius_m": 3000, "limit": 5},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	require.NotNil(t, d.got.Lat)
	assert.Equal(t, 37.7749, *d.got.Lat)
	assert.Equal(t, -122.4194, *d.got.Lon)
	require.NotNil(t, d.got.RadiusM)
	assert.Equal(t, 3000.0, *d.got.RadiusM)
	require.NotNil(t, d.got.Limit)
	assert.Equal(t, 5, *d.got.Limit)

	var got domain.DiscoveryResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "ATM One", got.Items[0].Name)
	assert.Equal(t, 111.0, *got.Items[0].DistanceM)
}

func TestServer_NearLocation(t *testing.T) {
	d := &mockDiscoverer{result: domain.NewDiscoveryResult(domain.ModeTextQuery, "Bank of America ATM near boston", nil)}
	session := connect(t, d)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolNearLocation,
		Arguments: map[string]any{"query": "boston"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, "boston", d.got.Query)
	assert.Nil(t, d.got.Limit)
	assert.Nil(t, d.got.Lat)

	structured, ok := result.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content should decode as an object")
	assert.Equal(t, float64(0), structured["count"])
	assert.Equal(t, "Bank of America ATM near boston", structured["rewritten_query"])
}

func TestServer_ErrorsAreReportedInBand(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    string
		message string
	}{
		{"validation", domain.Validation("request", "query must not be blank"), domain.KindValidation, "query must not be blank"},
		{"configuration", domain.Configuration("discover", "brand search is not configured"), domain.KindConfiguration, "not configured"},
		{"timeout", domain.Timeout("overpass.query", context.DeadlineExceeded), domain.KindTimeout, "smaller radius"},
		{"upstream", domain.Upstream("overpass.query", 503, errors.New("status 503")), domain.KindUpstream, "503"},
		{"internal", errors.New("nil pointer somewhere"), domain.KindInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := connect(t, &mockDiscoverer{err: tt.err})

			result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      ToolNearLocation,
				Arguments: map[string]any{"query": "boston"},
			})
			require.NoError(t, err)
			assert.True(t, result.IsError)

			var body toolError
			require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &body))
			assert.Equal(t, tt.kind, body.Kind)
			assert.Contains(t, body.Message, tt.message)
		})
	}
}
