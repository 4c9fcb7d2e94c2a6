package server

import (
	"net/http"
	"time"

	"github.com/sbecker/confab/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for every event a connection can send.
// Exactly one of the optional fields is set per message.
type ClientMessage struct {
	BaseMessage
	Join        *Join        `json:"join,omitempty"`
	Leave       *Leave       `json:"leave,omitempty"`
	SendMessage *SendMessage `json:"send_message,omitempty"`
	CallOffer   *CallOffer   `json:"call_offer,omitempty"`
	CallReject  *CallReject  `json:"call_reject,omitempty"`
	CallAccept  *CallAccept  `json:"call_accept,omitempty"`
	MarkRead    *MarkRead    `json:"mark_read,omitempty"`
	client      *Client
}

// Join binds the connection to a user id.
type Join struct {
	UserId int `json:"user_id"`
}

// Leave unbinds the connection without closing it (sign-out).
type Leave struct{}

// SendMessage asks the server to relay a freshly persisted message to the
// receiver's live connection. Persistence happens over the HTTP API; this is
// the realtime notification leg only.
type SendMessage struct {
	To        int    `json:"to"`
	Body      string `json:"body"`
	Type      string `json:"type,omitempty"`
	MessageId int    `json:"message_id,omitempty"`
}

type CallOffer struct {
	To       int    `json:"to"`
	RoomId   string `json:"room_id"`
	CallType string `json:"call_type,omitempty"`
	Video    bool   `json:"video"`
}

// CallReject is sent by the callee; To is the caller.
type CallReject struct {
	To    int  `json:"to"`
	Video bool `json:"video"`
}

// CallAccept is sent by the callee; To is the caller.
type CallAccept struct {
	To int `json:"to"`
}

// MarkRead acknowledges a message as read to its sender. It is a UI hint:
// persisted status only changes through fetch-time reconciliation.
type MarkRead struct {
	To        int `json:"to"`
	MessageId int `json:"message_id"`
}

// ServerMessage is the envelope for every event pushed to a connection.
type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	OnlineUsers  *OnlineUsers   `json:"online_users,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	IncomingCall *IncomingCall  `json:"incoming_call,omitempty"`
	CallOffline  *CallOffline   `json:"call_offline,omitempty"`
	CallRejected *CallRejected  `json:"call_rejected,omitempty"`
	CallAccepted *CallAccepted  `json:"call_accepted,omitempty"`
	ReadReceipt  *ReadReceipt   `json:"read_receipt,omitempty"`
	SkipClient   *Client        `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

// OnlineUsers carries the full presence snapshot. It is broadcast to every
// connection except the one whose bind or unbind triggered it.
type OnlineUsers struct {
	UserIds []int `json:"user_ids"`
}

type IncomingCall struct {
	From     int    `json:"from"`
	RoomId   string `json:"room_id"`
	CallType string `json:"call_type,omitempty"`
	Video    bool   `json:"video"`
}

type CallOffline struct {
	Kind string `json:"kind"`
}

type CallRejected struct {
	From  int  `json:"from"`
	Video bool `json:"video"`
}

type CallAccepted struct {
	From int `json:"from"`
}

type ReadReceipt struct {
	From      int `json:"from"`
	MessageId int `json:"message_id"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
