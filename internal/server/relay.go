package server

// SignalKind names a call-control event routed between two live connections.
type SignalKind string

const (
	SignalVoiceCall   SignalKind = "voice-call"
	SignalVideoCall   SignalKind = "video-call"
	SignalVoiceReject SignalKind = "reject-voice-call"
	SignalVideoReject SignalKind = "reject-video-call"
	SignalAcceptCall  SignalKind = "accept-call"
	SignalMessage     SignalKind = "message"
	SignalReadReceipt SignalKind = "read-receipt"
)

// fallsBackOffline reports whether a relay with no reachable target notifies
// the originator. Call accepts route to the caller and never fall back: a
// stale accept with no live caller is dropped. Message and read-receipt
// forwarding are realtime hints backed by persistence, so they drop silently
// too.
func (k SignalKind) fallsBackOffline() bool {
	switch k {
	case SignalVoiceCall, SignalVideoCall, SignalVoiceReject, SignalVideoReject:
		return true
	}
	return false
}

// Relay forwards event to toId's live connection exactly once. Signaling is
// best-effort: there is no retry and no queueing. When the target is not
// bound and the kind falls back, the originator receives a single
// "<kind>-offline" notification; when the originator is gone too, the event
// is dropped.
func (cs *ChatServer) Relay(kind SignalKind, fromId, toId int, event *ServerMessage) {
	cs.stats.Incr("NumSignalingEvents")

	if target, ok := cs.presence.Lookup(toId); ok {
		event.Timestamp = Now()
		target.queueMessage(event)
		return
	}

	if !kind.fallsBackOffline() {
		return
	}

	origin, ok := cs.presence.Lookup(fromId)
	if !ok {
		cs.log.Printf("dropping %s from %d: neither party reachable", kind, fromId)
		return
	}

	origin.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		CallOffline: &CallOffline{
			Kind: string(kind) + "-offline",
		},
	})
}
