package chatstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
)

// MemoryRepository keeps everything in process. It backs tests and ephemeral
// deployments where durability does not matter; semantics mirror the gorm
// repository, including upsert-by-natural-key behavior.
type MemoryRepository struct {
	mu            sync.Mutex
	messages      map[string]*domainChatStorage.Message  // tenant|message id
	reactions     map[string]*domainChatStorage.Reaction // message id|sender id
	conversations map[string]*domainChatStorage.Conversation
	settings      map[string]*domainChatStorage.TenantSettings
	team          map[string][]domainChatStorage.TeamMember
	customers     map[string][]domainChatStorage.Customer
	contacts      map[string][]domainChatStorage.Contact
	campaigns     map[string]*domainChatStorage.Campaign
	deliveries    []domainChatStorage.DeliveryLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		messages:      make(map[string]*domainChatStorage.Message),
		reactions:     make(map[string]*domainChatStorage.Reaction),
		conversations: make(map[string]*domainChatStorage.Conversation),
		settings:      make(map[string]*domainChatStorage.TenantSettings),
		team:          make(map[string][]domainChatStorage.TeamMember),
		customers:     make(map[string][]domainChatStorage.Customer),
		contacts:      make(map[string][]domainChatStorage.Contact),
		campaigns:     make(map[string]*domainChatStorage.Campaign),
	}
}

func (r *MemoryRepository) Init(ctx context.Context) error { return nil }

func msgKey(tenantID, messageID string) string { return tenantID + "|" + messageID }

func (r *MemoryRepository) UpsertMessage(ctx context.Context, msg *domainChatStorage.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *msg
	clone.UpdatedAt = time.Now()
	if existing, ok := r.messages[msgKey(msg.TenantID, msg.ID)]; ok {
		// Natural-key upsert keeps the original status and direction.
		clone.Status = existing.Status
		clone.Direction = existing.Direction
	}
	r.messages[msgKey(msg.TenantID, msg.ID)] = &clone
	return nil
}

func (r *MemoryRepository) GetMessage(ctx context.Context, tenantID, messageID string) (*domainChatStorage.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[msgKey(tenantID, messageID)]
	if !ok {
		return nil, nil
	}
	clone := *msg
	return &clone, nil
}

func (r *MemoryRepository) UpdateMessageStatus(ctx context.Context, tenantID, messageID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[msgKey(tenantID, messageID)]; ok {
		msg.Status = status
		msg.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) UpsertReaction(ctx context.Context, messageID, senderID, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := messageID + "|" + senderID
	if emoji == "" {
		delete(r.reactions, key)
		return nil
	}
	r.reactions[key] = &domainChatStorage.Reaction{
		MessageID: messageID,
		SenderID:  senderID,
		Emoji:     emoji,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (r *MemoryRepository) ListReactions(ctx context.Context, messageID string) ([]domainChatStorage.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainChatStorage.Reaction
	for _, reaction := range r.reactions {
		if reaction.MessageID == messageID {
			out = append(out, *reaction)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out, nil
}

func (r *MemoryRepository) GetOrCreateConversation(ctx context.Context, tenantID, chatID, name, phone string) (*domainChatStorage.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.conversations {
		if conv.TenantID == tenantID && conv.ChatID == chatID {
			clone := *conv
			return &clone, nil
		}
	}
	conv := &domainChatStorage.Conversation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		ChatID:        chatID,
		CustomerName:  name,
		CustomerPhone: phone,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	r.conversations[conv.ID] = conv
	clone := *conv
	return &clone, nil
}

func (r *MemoryRepository) UpdateConversationPhone(ctx context.Context, conversationID, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.conversations[conversationID]; ok {
		conv.CustomerPhone = phone
		conv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) GetConversation(ctx context.Context, conversationID string) (*domainChatStorage.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	clone := *conv
	return &clone, nil
}

func (r *MemoryRepository) AssignConversation(ctx context.Context, conversationID, assigneeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.conversations[conversationID]; ok {
		conv.AssigneeID = assigneeID
		conv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) GetTenantSettings(ctx context.Context, tenantID string) (*domainChatStorage.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[tenantID]; ok {
		clone := *s
		return &clone, nil
	}
	return &domainChatStorage.TenantSettings{TenantID: tenantID}, nil
}

func (r *MemoryRepository) SaveTenantSettings(ctx context.Context, settings *domainChatStorage.TenantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *settings
	clone.UpdatedAt = time.Now()
	r.settings[settings.TenantID] = &clone
	return nil
}

func (r *MemoryRepository) SetLastAssignedIndex(ctx context.Context, tenantID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[tenantID]
	if !ok {
		s = &domainChatStorage.TenantSettings{TenantID: tenantID}
		r.settings[tenantID] = s
	}
	s.LastAssignedIndex = index
	s.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ListTeamMembers(ctx context.Context, tenantID string) ([]domainChatStorage.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainChatStorage.TeamMember(nil), r.team[tenantID]...), nil
}

// AddTeamMember seeds a member; used by tests and ephemeral setups.
func (r *MemoryRepository) AddTeamMember(member domainChatStorage.TeamMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.team[member.TenantID] = append(r.team[member.TenantID], member)
}

func (r *MemoryRepository) ListCustomers(ctx context.Context, tenantID, filter string) ([]domainChatStorage.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainChatStorage.Customer
	for _, c := range r.customers[tenantID] {
		switch {
		case filter == "" || filter == "all":
			out = append(out, c)
		case filter == "active":
			if c.Active {
				out = append(out, c)
			}
		default:
			if c.Segment == filter {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// AddCustomer seeds a campaign recipient.
func (r *MemoryRepository) AddCustomer(c domainChatStorage.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.TenantID] = append(r.customers[c.TenantID], c)
}

func (r *MemoryRepository) ListContacts(ctx context.Context, tenantID string) ([]domainChatStorage.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainChatStorage.Contact(nil), r.contacts[tenantID]...), nil
}

// AddContact seeds a campaign recipient.
func (r *MemoryRepository) AddContact(c domainChatStorage.Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.TenantID] = append(r.contacts[c.TenantID], c)
}

func (r *MemoryRepository) CreateCampaign(ctx context.Context, c *domainChatStorage.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *c
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = clone.CreatedAt
	r.campaigns[c.ID] = &clone
	return nil
}

func (r *MemoryRepository) GetCampaign(ctx context.Context, tenantID, campaignID string) (*domainChatStorage.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (r *MemoryRepository) UpdateCampaignStatus(ctx context.Context, campaignID, status, statusMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		c.Status = status
		c.StatusMsg = statusMsg
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) UpdateCampaignProgress(ctx context.Context, campaignID string, total, succeeded, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		c.Total = total
		c.Succeeded = succeeded
		c.Failed = failed
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) AppendDeliveryLog(ctx context.Context, entry *domainChatStorage.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	clone.CreatedAt = time.Now()
	r.deliveries = append(r.deliveries, clone)
	return nil
}

func (r *MemoryRepository) ListDeliveredPhones(ctx context.Context, campaignID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, d := range r.deliveries {
		if d.CampaignID == campaignID && d.Status == domainChatStorage.DeliveryStatusSent {
			out = append(out, d.Phone)
		}
	}
	return out, nil
}

// DeliveryLogs returns a copy of the append-only log, for assertions.
func (r *MemoryRepository) DeliveryLogs() []domainChatStorage.DeliveryLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainChatStorage.DeliveryLog(nil), r.deliveries...)
}
