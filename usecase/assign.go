package usecase

import (
	"context"

	"github.com/sirupsen/logrus"

	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	"github.com/bizlinkhq/wa-engine/session"
)

// AutoAssigner hands new conversations to team members round-robin. It runs
// as a delayed automation after each inbound message and is idempotent: a
// conversation that already has an assignee is never reassigned.
type AutoAssigner struct {
	storage   domainChatStorage.IChatStorageRepository
	publisher session.Publisher
}

func NewAutoAssigner(storage domainChatStorage.IChatStorageRepository, publisher session.Publisher) *AutoAssigner {
	if publisher == nil {
		publisher = session.NopPublisher{}
	}
	return &AutoAssigner{storage: storage, publisher: publisher}
}

func (a *AutoAssigner) OnInboundMessage(ctx context.Context, tenantID string, conv *domainChatStorage.Conversation, msg *domainChatStorage.Message) {
	settings, err := a.storage.GetTenantSettings(ctx, tenantID)
	if err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[ASSIGN] reading settings: %v", err)
		return
	}
	if !settings.AutoAssignEnabled {
		return
	}
	if conv.AssigneeID != "" {
		return
	}

	// Re-read: the conversation may have been assigned manually between the
	// inbound message and this delayed hook.
	fresh, err := a.storage.GetConversation(ctx, conv.ID)
	if err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[ASSIGN] reading conversation %s: %v", conv.ID, err)
		return
	}
	if fresh == nil || fresh.AssigneeID != "" {
		return
	}

	members, err := a.storage.ListTeamMembers(ctx, tenantID)
	if err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[ASSIGN] listing team members: %v", err)
		return
	}
	if len(members) == 0 {
		return
	}

	// LastAssignedIndex is the rotation cursor: it points at the member who
	// receives the next conversation.
	idx := settings.LastAssignedIndex % len(members)
	member := members[idx]

	if err := a.storage.AssignConversation(ctx, conv.ID, member.ID); err != nil {
		logrus.WithField("tenant", tenantID).Errorf("[ASSIGN] assigning conversation %s: %v", conv.ID, err)
		return
	}
	if err := a.storage.SetLastAssignedIndex(ctx, tenantID, idx+1); err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[ASSIGN] advancing rotation: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant":       tenantID,
		"conversation": conv.ID,
		"assignee":     member.ID,
	}).Info("[ASSIGN] conversation auto-assigned")
	a.publisher.PublishAssigned(tenantID, map[string]any{
		"conversation_id": conv.ID,
		"assignee_id":     member.ID,
		"assignee_name":   member.Name,
	})
}
