package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sbecker/confab/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one live bidirectional connection. userId is zero until a join
// event binds the connection; it is only touched from the read pump, which
// processes the connection's events in arrival order.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	userId     int
	send       chan *ServerMessage
	stop       chan struct{}
}

func NewClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(time.Duration(pingInterval))
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	cs := c.chatServer

	switch {
	case msg.Join != nil:
		cs.handleJoin(msg)
	case msg.Leave != nil:
		cs.handleLeave(msg)
	case msg.SendMessage != nil:
		cs.Relay(SignalMessage, c.userId, msg.SendMessage.To, &ServerMessage{
			Message: &types.Message{
				Id:         msg.SendMessage.MessageId,
				SenderId:   c.userId,
				ReceiverId: msg.SendMessage.To,
				Body:       msg.SendMessage.Body,
				Type:       types.MessageType(msg.SendMessage.Type),
			},
		})
	case msg.CallOffer != nil:
		kind := SignalVoiceCall
		if msg.CallOffer.Video {
			kind = SignalVideoCall
		}
		cs.Relay(kind, c.userId, msg.CallOffer.To, &ServerMessage{
			IncomingCall: &IncomingCall{
				From:     c.userId,
				RoomId:   msg.CallOffer.RoomId,
				CallType: msg.CallOffer.CallType,
				Video:    msg.CallOffer.Video,
			},
		})
	case msg.CallReject != nil:
		kind := SignalVoiceReject
		if msg.CallReject.Video {
			kind = SignalVideoReject
		}
		cs.Relay(kind, c.userId, msg.CallReject.To, &ServerMessage{
			CallRejected: &CallRejected{
				From:  c.userId,
				Video: msg.CallReject.Video,
			},
		})
	case msg.CallAccept != nil:
		cs.Relay(SignalAcceptCall, c.userId, msg.CallAccept.To, &ServerMessage{
			CallAccepted: &CallAccepted{
				From: c.userId,
			},
		})
	case msg.MarkRead != nil:
		cs.Relay(SignalReadReceipt, c.userId, msg.MarkRead.To, &ServerMessage{
			ReadReceipt: &ReadReceipt{
				From:      c.userId,
				MessageId: msg.MarkRead.MessageId,
			},
		})
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *Client) cleanup() {
	c.chatServer.handleDisconnect(c)
	c.stopClient()
}
