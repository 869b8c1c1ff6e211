package chatstorage

import (
	"context"
	"errors"
	"time"

	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository returns the gorm-backed data-store collaborator.
func NewGormRepository(db *gorm.DB) domainChatStorage.IChatStorageRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&domainChatStorage.Conversation{},
		&domainChatStorage.Message{},
		&domainChatStorage.Reaction{},
		&domainChatStorage.Customer{},
		&domainChatStorage.Contact{},
		&domainChatStorage.TeamMember{},
		&domainChatStorage.TenantSettings{},
		&domainChatStorage.Campaign{},
		&domainChatStorage.DeliveryLog{},
	)
}

func (r *gormRepository) UpsertMessage(ctx context.Context, msg *domainChatStorage.Message) error {
	msg.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"body", "type", "quoted_id", "latitude", "longitude", "updated_at",
		}),
	}).Omit("Reactions").Create(msg).Error
}

func (r *gormRepository) GetMessage(ctx context.Context, tenantID, messageID string) (*domainChatStorage.Message, error) {
	var msg domainChatStorage.Message
	err := r.db.WithContext(ctx).
		Preload("Reactions").
		Where("id = ? AND tenant_id = ?", messageID, tenantID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *gormRepository) UpdateMessageStatus(ctx context.Context, tenantID, messageID, status string) error {
	return r.db.WithContext(ctx).
		Model(&domainChatStorage.Message{}).
		Where("id = ? AND tenant_id = ?", messageID, tenantID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *gormRepository) UpsertReaction(ctx context.Context, messageID, senderID, emoji string) error {
	if emoji == "" {
		// Empty reaction means the sender removed theirs.
		return r.db.WithContext(ctx).
			Where("message_id = ? AND sender_id = ?", messageID, senderID).
			Delete(&domainChatStorage.Reaction{}).Error
	}
	reaction := domainChatStorage.Reaction{
		MessageID: messageID,
		SenderID:  senderID,
		Emoji:     emoji,
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "sender_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"emoji", "updated_at"}),
	}).Create(&reaction).Error
}

func (r *gormRepository) ListReactions(ctx context.Context, messageID string) ([]domainChatStorage.Reaction, error) {
	var reactions []domainChatStorage.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("updated_at ASC").
		Find(&reactions).Error
	return reactions, err
}

func (r *gormRepository) GetOrCreateConversation(ctx context.Context, tenantID, chatID, name, phone string) (*domainChatStorage.Conversation, error) {
	var conv domainChatStorage.Conversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND chat_id = ?", tenantID, chatID).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = domainChatStorage.Conversation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		ChatID:        chatID,
		CustomerName:  name,
		CustomerPhone: phone,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *gormRepository) UpdateConversationPhone(ctx context.Context, conversationID, phone string) error {
	return r.db.WithContext(ctx).
		Model(&domainChatStorage.Conversation{}).
		Where("id = ?", conversationID).
		Update("customer_phone", phone).Error
}

func (r *gormRepository) GetConversation(ctx context.Context, conversationID string) (*domainChatStorage.Conversation, error) {
	var conv domainChatStorage.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *gormRepository) AssignConversation(ctx context.Context, conversationID, assigneeID string) error {
	return r.db.WithContext(ctx).
		Model(&domainChatStorage.Conversation{}).
		Where("id = ?", conversationID).
		Update("assignee_id", assigneeID).Error
}

func (r *gormRepository) GetTenantSettings(ctx context.Context, tenantID string) (*domainChatStorage.TenantSettings, error) {
	var settings domainChatStorage.TenantSettings
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domainChatStorage.TenantSettings{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *gormRepository) SaveTenantSettings(ctx context.Context, settings *domainChatStorage.TenantSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(settings).Error
}

func (r *gormRepository) SetLastAssignedIndex(ctx context.Context, tenantID string, index int) error {
	return r.db.WithContext(ctx).
		Model(&domainChatStorage.TenantSettings{}).
		Where("tenant_id = ?", tenantID).
		Update("last_assigned_index", index).Error
}

func (r *gormRepository) ListTeamMembers(ctx context.Context, tenantID string) ([]domainChatStorage.TeamMember, error) {
	var members []domainChatStorage.TeamMember
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

func (r *gormRepository) ListCustomers(ctx context.Context, tenantID, filter string) ([]domainChatStorage.Customer, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	switch filter {
	case "", "all":
	case "active":
		q = q.Where("active = ?", true)
	default:
		q = q.Where("segment = ?", filter)
	}
	var customers []domainChatStorage.Customer
	err := q.Order("created_at ASC").Find(&customers).Error
	return customers, err
}

func (r *gormRepository) ListContacts(ctx context.Context, tenantID string) ([]domainChatStorage.Contact, error) {
	var contacts []domainChatStorage.Contact
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&contacts).Error
	return contacts, err
}

func (r *gormRepository) CreateCampaign(ctx context.Context, c *domainChatStorage.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *gormRepository) GetCampaign(ctx context.Context, tenantID, campaignID string) (*domainChatStorage.Campaign, error) {
	var c domainChatStorage.Campaign
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", campaignID, tenantID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) UpdateCampaignStatus(ctx context.Context, campaignID, status, statusMsg string) error {
	return r.db.WithContext(ctx).
		Model(&domainChatStorage.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"status":     status,
			"status_msg": statusMsg,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *gormRepository) UpdateCampaignProgress(ctx context.Context, campaignID string, total, succeeded, failed int) error {
	return r.db.WithContext(ctx).
		Model(&domainChatStorage.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"total":      total,
			"succeeded":  succeeded,
			"failed":     failed,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *gormRepository) AppendDeliveryLog(ctx context.Context, entry *domainChatStorage.DeliveryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormRepository) ListDeliveredPhones(ctx context.Context, campaignID string) ([]string, error) {
	var phones []string
	err := r.db.WithContext(ctx).
		Model(&domainChatStorage.DeliveryLog{}).
		Where("campaign_id = ? AND status = ?", campaignID, domainChatStorage.DeliveryStatusSent).
		Pluck("phone", &phones).Error
	return phones, err
}
