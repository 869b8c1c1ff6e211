package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/chatstorage"
)

func seedAssignRepo(t *testing.T, autoAssign bool, memberIDs ...string) *chatstorage.MemoryRepository {
	t.Helper()
	repo := chatstorage.NewMemoryRepository()
	require.NoError(t, repo.SaveTenantSettings(context.Background(), &domainChatStorage.TenantSettings{
		TenantID:          "acme",
		AutoAssignEnabled: autoAssign,
	}))
	for _, id := range memberIDs {
		repo.AddTeamMember(domainChatStorage.TeamMember{ID: id, TenantID: "acme", Name: "member " + id})
	}
	return repo
}

func newConversation(t *testing.T, repo *chatstorage.MemoryRepository, chatID string) *domainChatStorage.Conversation {
	t.Helper()
	conv, err := repo.GetOrCreateConversation(context.Background(), "acme", chatID, "", "")
	require.NoError(t, err)
	return conv
}

func assignee(t *testing.T, repo *chatstorage.MemoryRepository, conversationID string) string {
	t.Helper()
	conv, err := repo.GetConversation(context.Background(), conversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv.AssigneeID
}

func TestAutoAssignRoundRobin(t *testing.T) {
	repo := seedAssignRepo(t, true, "m1", "m2")
	assigner := NewAutoAssigner(repo, nil)
	msg := &domainChatStorage.Message{ID: "MSG"}

	first := newConversation(t, repo, "chat-1@s.whatsapp.net")
	second := newConversation(t, repo, "chat-2@s.whatsapp.net")
	third := newConversation(t, repo, "chat-3@s.whatsapp.net")

	assigner.OnInboundMessage(context.Background(), "acme", first, msg)
	assigner.OnInboundMessage(context.Background(), "acme", second, msg)
	assigner.OnInboundMessage(context.Background(), "acme", third, msg)

	require.Equal(t, "m1", assignee(t, repo, first.ID))
	require.Equal(t, "m2", assignee(t, repo, second.ID))
	require.Equal(t, "m1", assignee(t, repo, third.ID), "rotation must wrap around")
}

func TestAutoAssignIsIdempotent(t *testing.T) {
	repo := seedAssignRepo(t, true, "m1", "m2")
	assigner := NewAutoAssigner(repo, nil)
	msg := &domainChatStorage.Message{ID: "MSG"}

	conv := newConversation(t, repo, "chat-1@s.whatsapp.net")
	assigner.OnInboundMessage(context.Background(), "acme", conv, msg)
	require.Equal(t, "m1", assignee(t, repo, conv.ID))

	// Follow-up messages in the same conversation must not rotate further.
	fresh, err := repo.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assigner.OnInboundMessage(context.Background(), "acme", fresh, msg)
	require.Equal(t, "m1", assignee(t, repo, conv.ID))

	next := newConversation(t, repo, "chat-2@s.whatsapp.net")
	assigner.OnInboundMessage(context.Background(), "acme", next, msg)
	require.Equal(t, "m2", assignee(t, repo, next.ID), "cursor must only advance on real assignments")
}

func TestAutoAssignRespectsManualAssignment(t *testing.T) {
	repo := seedAssignRepo(t, true, "m1", "m2")
	assigner := NewAutoAssigner(repo, nil)

	conv := newConversation(t, repo, "chat-1@s.whatsapp.net")
	// Assigned manually between the inbound message and the delayed hook.
	require.NoError(t, repo.AssignConversation(context.Background(), conv.ID, "human-pick"))

	assigner.OnInboundMessage(context.Background(), "acme", conv, &domainChatStorage.Message{ID: "MSG"})
	require.Equal(t, "human-pick", assignee(t, repo, conv.ID))
}

func TestAutoAssignDisabledOrNoTeam(t *testing.T) {
	disabled := seedAssignRepo(t, false, "m1")
	assigner := NewAutoAssigner(disabled, nil)
	conv := newConversation(t, disabled, "chat-1@s.whatsapp.net")
	assigner.OnInboundMessage(context.Background(), "acme", conv, &domainChatStorage.Message{ID: "MSG"})
	require.Empty(t, assignee(t, disabled, conv.ID))

	noTeam := seedAssignRepo(t, true)
	assigner = NewAutoAssigner(noTeam, nil)
	conv = newConversation(t, noTeam, "chat-2@s.whatsapp.net")
	assigner.OnInboundMessage(context.Background(), "acme", conv, &domainChatStorage.Message{ID: "MSG"})
	require.Empty(t, assignee(t, noTeam, conv.ID))
}
