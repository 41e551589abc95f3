package gateway

import (
	"encoding/json"
	"testing"

	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger { return logging.New(nil, "silent") }

func TestClientRegistry(t *testing.T) {
	reg := NewClientRegistry(testLog())
	assert.Equal(t, 0, reg.Count())

	reg.Add(&Client{ConnID: "conn-1", Info: ClientInfo{ID: "cli"}})
	reg.Add(&Client{ConnID: "conn-2"})
	assert.Equal(t, 2, reg.Count())

	got, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "cli", got.Info.ID)

	reg.Remove("conn-1")
	_, ok = reg.Get("conn-1")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count())
}

func TestClosedClientRejectsSend(t *testing.T) {
	c := &Client{ConnID: "c", closed: true}
	assert.ErrorIs(t, c.Send(Frame{Type: FrameTypeEvent}), ErrClientClosed)
	assert.NoError(t, c.Close())
}

func TestFrames(t *testing.T) {
	req, err := NewRequest("1", "route", map[string]string{"query": "q"})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeRequest, req.Type)
	assert.JSONEq(t, `{"query":"q"}`, string(req.Params))

	res, err := NewResponse("1", map[string]int{"n": 2})
	require.NoError(t, err)
	require.NotNil(t, res.OK)
	assert.True(t, *res.OK)

	fail := NewErrorResponse("1", ErrorShape{Code: CodeNotFound, Message: "gone"})
	require.NotNil(t, fail.OK)
	assert.False(t, *fail.OK)
	assert.Equal(t, CodeNotFound, fail.Error.Code)

	evt, err := NewEvent(EventChatDelta, map[string]string{"content": "hi"}, 7)
	require.NoError(t, err)
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","event":"chat.delta","seq":7,"payload":{"content":"hi"}}`, string(b))
}
