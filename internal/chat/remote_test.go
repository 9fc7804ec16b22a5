package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/mcp"
)

type recordingClient struct {
	available bool
	calls     []string
	failOn    string
	inner     KnowledgeClient
}

func (r *recordingClient) Available() bool { return r.available }

func (r *recordingClient) InvokeTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	r.calls = append(r.calls, name)
	if name == r.failOn {
		return nil, errors.New("boom")
	}
	return r.inner.InvokeTool(ctx, name, args)
}

func connectedClient(t *testing.T) *mcp.Client {
	t.Helper()
	kb, err := mcp.DefaultKnowledgeBase()
	require.NoError(t, err)
	srv := httptest.NewServer(mcp.NewServer(kb, nil).Handler())
	t.Cleanup(srv.Close)
	c := mcp.NewClient(srv.URL, mcp.WithHTTPClient(srv.Client()))
	require.True(t, c.Connect(context.Background()))
	return c
}

func TestRemoteContextPerPersona(t *testing.T) {
	client := connectedClient(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		kind      agent.Kind
		message   string
		wantCalls []string
		contains  []string
	}{
		{
			name:      "crisis",
			kind:      agent.Crisis,
			message:   "short",
			wantCalls: []string{mcp.ToolCrisisResources},
			contains:  []string{"CRISIS RESOURCES:", "988"},
		},
		{
			name:      "technique named",
			kind:      agent.Technique,
			message:   "can we try thought challenging today",
			wantCalls: []string{mcp.ToolCBTTechnique, mcp.ToolSearchTopics},
			contains:  []string{"CBT TECHNIQUE - thought-challenging:"},
		},
		{
			name:      "grounding",
			kind:      agent.Grounding,
			message:   "calm",
			wantCalls: []string{mcp.ToolCopingStrategies},
			contains:  []string{"RECOMMENDED COPING STRATEGIES:"},
		},
		{
			name:      "topic search",
			kind:      agent.General,
			message:   "I have been dealing with anxiety lately",
			wantCalls: []string{mcp.ToolSearchTopics},
			contains:  []string{"RELEVANT MENTAL HEALTH INFORMATION:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &recordingClient{available: true, inner: client}
			got := NewRemoteContext(rc, nil).Gather(ctx, "s", tt.kind, tt.message)
			assert.Equal(t, tt.wantCalls, rc.calls)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, remoteUnavailableNote)
		})
	}
}

func TestRemoteContextSkipsEmptyTopicSearch(t *testing.T) {
	rc := &recordingClient{available: true, inner: connectedClient(t)}
	got := NewRemoteContext(rc, nil).Gather(context.Background(), "s", agent.General, "qwertyuiop asdfghjkl")
	assert.Equal(t, []string{mcp.ToolSearchTopics}, rc.calls)
	assert.Equal(t, "", got)
}

func TestRemoteContextFailureAddsNote(t *testing.T) {
	rc := &recordingClient{available: true, inner: connectedClient(t), failOn: mcp.ToolCrisisResources}
	got := NewRemoteContext(rc, nil).Gather(context.Background(), "s", agent.Crisis, "I want to end my life")
	assert.Equal(t, remoteUnavailableNote, got)
	assert.Equal(t, []string{mcp.ToolCrisisResources}, rc.calls)
}

func TestRemoteContextUnavailable(t *testing.T) {
	rc := &recordingClient{available: false}
	assert.Equal(t, "", NewRemoteContext(rc, nil).Gather(context.Background(), "s", agent.Crisis, "anything at all here"))
	assert.Empty(t, rc.calls)

	var nilRC *RemoteContext
	assert.Equal(t, "", nilRC.Gather(context.Background(), "s", agent.Crisis, "x"))
}
