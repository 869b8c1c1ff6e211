package websocket

import (
	"github.com/sirupsen/logrus"

	"github.com/bizlinkhq/wa-engine/session"
)

// Publisher bridges the session engine to the hub. Sends never block the
// engine: if the hub is saturated the frame is dropped.
type Publisher struct{}

func NewPublisher() Publisher {
	return Publisher{}
}

func (Publisher) publish(msg BroadcastMessage) {
	select {
	case Broadcast <- msg:
	default:
		logrus.WithField("tenant", msg.TenantID).Warnf("[WS] broadcast buffer full, dropping %s frame", msg.Code)
	}
}

func (p Publisher) PublishState(tenantID string, state session.State) {
	p.publish(BroadcastMessage{Code: "SESSION_STATE", TenantID: tenantID, Result: state})
}

func (p Publisher) PublishMessage(tenantID string, payload any) {
	p.publish(BroadcastMessage{Code: "MESSAGE", TenantID: tenantID, Result: payload})
}

func (p Publisher) PublishAck(tenantID string, payload any) {
	p.publish(BroadcastMessage{Code: "MESSAGE_ACK", TenantID: tenantID, Result: payload})
}

func (p Publisher) PublishReaction(tenantID string, payload any) {
	p.publish(BroadcastMessage{Code: "MESSAGE_REACTION", TenantID: tenantID, Result: payload})
}

func (p Publisher) PublishAssigned(tenantID string, payload any) {
	p.publish(BroadcastMessage{Code: "CONVERSATION_ASSIGNED", TenantID: tenantID, Result: payload})
}
