package server

import (
	"testing"

	"github.com/sbecker/confab/internal/presence"
	"github.com/sbecker/confab/internal/stats"
	"github.com/sbecker/confab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestChatServer creates a ChatServer backed by a fresh registry for
// testing purposes.
func newTestChatServer(t *testing.T, su *stats.MockStatsUpdater) *ChatServer {
	su.On("RegisterMetric", mock.Anything).Times(4)

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, presence.NewRegistry[*Client](), su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

func newTestClient(cs *ChatServer) *Client {
	return &Client{
		chatServer: cs,
		log:        cs.log,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

// drain returns every message currently queued on the client.
func drain(c *Client) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case msg := <-c.send:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestNewChatServer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(4)

	logger := testutil.TestLogger(t)
	reg := presence.NewRegistry[*Client]()
	cs, err := NewChatServer(logger, reg, su)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.Equal(t, logger, cs.log, "expected logger to be set")
	assert.Equal(t, reg, cs.presence, "expected registry to be set")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
}

func TestRegisterAndRemoveClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Once()
	su.On("Decr", "NumActiveConnections").Once()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	c := newTestClient(cs)

	cs.RegisterClient(c)
	assert.Contains(t, cs.clients, c, "expected client in clients map")

	cs.removeClient(c)
	assert.NotContains(t, cs.clients, c, "expected client removed")

	// removing twice must not decrement again
	cs.removeClient(c)
}

func TestHandleJoinBindsAndBroadcasts(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	c1 := newTestClient(cs)
	c2 := newTestClient(cs)
	cs.RegisterClient(c1)
	cs.RegisterClient(c2)

	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: c1})
	drain(c1)
	drain(c2)

	cs.handleJoin(&ClientMessage{BaseMessage: BaseMessage{Id: 5}, Join: &Join{UserId: 2}, client: c2})

	_, ok := cs.presence.Lookup(2)
	assert.True(t, ok, "expected user 2 bound after join")

	c2Msgs := drain(c2)
	require.Len(t, c2Msgs, 1, "expected only the join response on the originator")
	require.NotNil(t, c2Msgs[0].Response)
	assert.Equal(t, 5, c2Msgs[0].Id)

	c1Msgs := drain(c1)
	require.Len(t, c1Msgs, 1, "expected exactly one presence broadcast on the other connection")
	require.NotNil(t, c1Msgs[0].OnlineUsers)
	assert.Equal(t, []int{1, 2}, c1Msgs[0].OnlineUsers.UserIds)
}

func TestHandleJoinRejectsZeroUserId(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	c := newTestClient(cs)
	cs.RegisterClient(c)

	cs.handleJoin(&ClientMessage{Join: &Join{}, client: c})

	msgs := drain(c)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Response)
	assert.Equal(t, 400, msgs[0].Response.ResponseCode)
	assert.Empty(t, cs.presence.Snapshot(), "expected no binding")
}

func TestHandleLeaveUnbindsAndBroadcasts(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", "NumBoundUsers").Once()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	c1 := newTestClient(cs)
	c2 := newTestClient(cs)
	cs.RegisterClient(c1)
	cs.RegisterClient(c2)

	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: c1})
	drain(c1)
	drain(c2)

	cs.handleLeave(&ClientMessage{Leave: &Leave{}, client: c1})

	assert.Empty(t, cs.presence.Snapshot(), "expected user unbound after leave")
	assert.Zero(t, c1.userId, "expected connection back in unbound state")
	assert.Contains(t, cs.clients, c1, "expected connection to stay registered")

	c2Msgs := drain(c2)
	require.Len(t, c2Msgs, 1)
	require.NotNil(t, c2Msgs[0].OnlineUsers)
	assert.Empty(t, c2Msgs[0].OnlineUsers.UserIds)
}

func TestDisconnectNeverLeavesStaleEntry(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	c1 := newTestClient(cs)
	c2 := newTestClient(cs)
	cs.RegisterClient(c1)
	cs.RegisterClient(c2)

	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: c1})
	drain(c1)
	drain(c2)

	cs.handleDisconnect(c1)

	assert.NotContains(t, cs.clients, c1)
	assert.False(t, cs.presence.Online(1), "expected no stale presence entry after disconnect")

	c2Msgs := drain(c2)
	require.Len(t, c2Msgs, 1, "expected presence broadcast after disconnect")
	require.NotNil(t, c2Msgs[0].OnlineUsers)
	assert.Empty(t, c2Msgs[0].OnlineUsers.UserIds)
}

func TestDisconnectAfterRebindKeepsNewHandle(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	c1 := newTestClient(cs)
	c2 := newTestClient(cs)
	cs.RegisterClient(c1)
	cs.RegisterClient(c2)

	// user 1 binds on c1, then on c2 (last-bind-wins)
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: c1})
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: c2})
	drain(c1)
	drain(c2)

	// the old connection closing must not evict the new handle
	cs.handleDisconnect(c1)

	h, ok := cs.presence.Lookup(1)
	require.True(t, ok, "expected user 1 still bound")
	assert.Same(t, c2, h, "expected lookup to return the newer connection")

	assert.Empty(t, drain(c2), "expected no presence broadcast for stale disconnect")
}

func TestRelayToBoundTarget(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	caller := newTestClient(cs)
	callee := newTestClient(cs)
	other := newTestClient(cs)
	cs.RegisterClient(caller)
	cs.RegisterClient(callee)
	cs.RegisterClient(other)

	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: caller})
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 2}, client: callee})
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 3}, client: other})
	drain(caller)
	drain(callee)
	drain(other)

	caller.dispatch(&ClientMessage{CallOffer: &CallOffer{To: 2, RoomId: "r1", CallType: "audio"}, client: caller})

	calleeMsgs := drain(callee)
	require.Len(t, calleeMsgs, 1, "expected exactly one event at the target")
	require.NotNil(t, calleeMsgs[0].IncomingCall)
	assert.Equal(t, 1, calleeMsgs[0].IncomingCall.From)
	assert.Equal(t, "r1", calleeMsgs[0].IncomingCall.RoomId)
	assert.False(t, calleeMsgs[0].IncomingCall.Video)

	assert.Empty(t, drain(caller), "expected no event at the originator")
	assert.Empty(t, drain(other), "expected no event elsewhere")
}

func TestRelayOfflineFallback(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	caller := newTestClient(cs)
	other := newTestClient(cs)
	cs.RegisterClient(caller)
	cs.RegisterClient(other)

	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: caller})
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 3}, client: other})
	drain(caller)
	drain(other)

	// user 2 is not bound
	caller.dispatch(&ClientMessage{CallOffer: &CallOffer{To: 2, RoomId: "r1"}, client: caller})

	callerMsgs := drain(caller)
	require.Len(t, callerMsgs, 1, "expected exactly one offline notification at the originator")
	require.NotNil(t, callerMsgs[0].CallOffline)
	assert.Equal(t, "voice-call-offline", callerMsgs[0].CallOffline.Kind)

	assert.Empty(t, drain(other), "expected no event elsewhere")
}

func TestRelayVideoOfflineFallback(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	caller := newTestClient(cs)
	cs.RegisterClient(caller)
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: caller})
	drain(caller)

	caller.dispatch(&ClientMessage{CallOffer: &CallOffer{To: 2, Video: true}, client: caller})

	msgs := drain(caller)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].CallOffline)
	assert.Equal(t, "video-call-offline", msgs[0].CallOffline.Kind)
}

func TestRelayDropsWhenNeitherPartyBound(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	c := newTestClient(cs)
	cs.RegisterClient(c)

	// connection never joined: neither from nor to is bound
	c.dispatch(&ClientMessage{CallOffer: &CallOffer{To: 2}, client: c})

	assert.Empty(t, drain(c), "expected silent drop")
}

func TestRelayAcceptCallNeverFallsBack(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	callee := newTestClient(cs)
	cs.RegisterClient(callee)
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 2}, client: callee})
	drain(callee)

	// the caller disconnected before the accept arrived
	callee.dispatch(&ClientMessage{CallAccept: &CallAccept{To: 1}, client: callee})

	assert.Empty(t, drain(callee), "expected stale accept to be dropped, not bounced")
}

func TestRelayRejectRoutesToCaller(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	caller := newTestClient(cs)
	callee := newTestClient(cs)
	cs.RegisterClient(caller)
	cs.RegisterClient(callee)
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: caller})
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 2}, client: callee})
	drain(caller)
	drain(callee)

	callee.dispatch(&ClientMessage{CallReject: &CallReject{To: 1, Video: true}, client: callee})

	callerMsgs := drain(caller)
	require.Len(t, callerMsgs, 1)
	require.NotNil(t, callerMsgs[0].CallRejected)
	assert.Equal(t, 2, callerMsgs[0].CallRejected.From)
	assert.True(t, callerMsgs[0].CallRejected.Video)
}

func TestRelayReadReceipt(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	sender := newTestClient(cs)
	reader := newTestClient(cs)
	cs.RegisterClient(sender)
	cs.RegisterClient(reader)
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: sender})
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 2}, client: reader})
	drain(sender)
	drain(reader)

	reader.dispatch(&ClientMessage{MarkRead: &MarkRead{To: 1, MessageId: 42}, client: reader})

	senderMsgs := drain(sender)
	require.Len(t, senderMsgs, 1)
	require.NotNil(t, senderMsgs[0].ReadReceipt)
	assert.Equal(t, 2, senderMsgs[0].ReadReceipt.From)
	assert.Equal(t, 42, senderMsgs[0].ReadReceipt.MessageId)

	// an unbound sender means the hint is dropped, not queued
	cs.handleDisconnect(sender)
	drain(reader)
	reader.dispatch(&ClientMessage{MarkRead: &MarkRead{To: 1, MessageId: 43}, client: reader})
	assert.Empty(t, drain(reader))
}

func TestRelayLiveMessage(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	sender := newTestClient(cs)
	receiver := newTestClient(cs)
	cs.RegisterClient(sender)
	cs.RegisterClient(receiver)
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 1}, client: sender})
	cs.handleJoin(&ClientMessage{Join: &Join{UserId: 2}, client: receiver})
	drain(sender)
	drain(receiver)

	sender.dispatch(&ClientMessage{SendMessage: &SendMessage{To: 2, Body: "hi", MessageId: 7}, client: sender})

	msgs := drain(receiver)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Message)
	assert.Equal(t, 1, msgs[0].Message.SenderId)
	assert.Equal(t, "hi", msgs[0].Message.Body)
	assert.Equal(t, 7, msgs[0].Message.Id)
}
