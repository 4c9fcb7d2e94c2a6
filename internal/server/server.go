package server

import (
	"context"
	"log"
	"sync"

	"github.com/sbecker/confab/internal/presence"
	"github.com/sbecker/confab/internal/stats"
)

// ChatServer owns the set of live connections and the presence registry.
// A connection starts unbound; a join event binds it to a user id, a leave
// event or the transport closing unbinds it. Every bind and unbind triggers
// exactly one presence broadcast to all other connections.
type ChatServer struct {
	log         *log.Logger
	stats       stats.StatsProvider
	presence    *presence.Registry[*Client]
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
}

func NewChatServer(logger *log.Logger, registry *presence.Registry[*Client], su stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:      logger,
		stats:    su,
		presence: registry,
		clients:  make(map[*Client]struct{}),
	}

	cs.stats.RegisterMetric("NumActiveConnections")
	cs.stats.RegisterMetric("NumBoundUsers")
	cs.stats.RegisterMetric("NumSignalingEvents")
	cs.stats.RegisterMetric("NumPresenceBroadcasts")

	return cs, nil
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
	cs.stats.Incr("NumActiveConnections")
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	cs.stats.Decr("NumActiveConnections")
}

// handleJoin binds the connection to the user id carried in the join event.
// Binding a user already bound on another connection overwrites that entry;
// the overwritten connection stays open but is no longer reachable.
func (cs *ChatServer) handleJoin(msg *ClientMessage) {
	c := msg.client
	userId := msg.Join.UserId
	if userId == 0 {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if !cs.presence.Online(userId) {
		cs.stats.Incr("NumBoundUsers")
	}

	c.userId = userId
	cs.presence.Bind(userId, c)
	cs.log.Printf("user %d joined", userId)

	c.queueMessage(NoErrOK(msg.Id))
	cs.broadcastPresence(c)
}

// handleLeave unbinds the connection without closing it; the transport may
// issue another join later.
func (cs *ChatServer) handleLeave(msg *ClientMessage) {
	c := msg.client
	if c.userId == 0 {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if cs.presence.UnbindIf(c.userId, c) {
		cs.stats.Decr("NumBoundUsers")
		cs.log.Printf("user %d signed out", c.userId)
		c.userId = 0
		c.queueMessage(NoErrOK(msg.Id))
		cs.broadcastPresence(c)
		return
	}

	c.userId = 0
	c.queueMessage(NoErrOK(msg.Id))
}

// handleDisconnect runs when the transport closes. A bound connection must
// never leave a stale presence entry behind.
func (cs *ChatServer) handleDisconnect(c *Client) {
	cs.removeClient(c)

	if c.userId == 0 {
		return
	}

	if cs.presence.UnbindIf(c.userId, c) {
		cs.stats.Decr("NumBoundUsers")
		cs.log.Printf("user %d disconnected", c.userId)
		cs.broadcastPresence(c)
	}
}

// broadcastPresence pushes the current snapshot to every connection except
// the one whose bind or unbind triggered it.
func (cs *ChatServer) broadcastPresence(origin *Client) {
	cs.Broadcast(origin, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		OnlineUsers: &OnlineUsers{
			UserIds: cs.presence.Snapshot(),
		},
	})
	cs.stats.Incr("NumPresenceBroadcasts")
}

// Broadcast queues msg on every live connection except skip.
func (cs *ChatServer) Broadcast(skip *Client, msg *ServerMessage) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	for c := range cs.clients {
		if c == skip {
			continue
		}
		c.queueMessage(msg)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("closing client connections")

	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
	}

	return ctx.Err()
}
