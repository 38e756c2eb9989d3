package mysql

import (
	"context"
	"errors"

	"powerhause/internal/model"

	"gorm.io/gorm"
)

var ErrCommunityNotFound = errors.New("community not found")

type CommunityRepository struct {
	DB *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{DB: db}
}

func (r *CommunityRepository) Create(ctx context.Context, c *model.Community) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *CommunityRepository) FindByID(ctx context.Context, id string) (*model.Community, error) {
	var community model.Community
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&community).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommunityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &community, nil
}

// List 按创建时间倒序；ownerID 为空时不过滤，limit <= 0 表示不分页
func (r *CommunityRepository) List(ctx context.Context, ownerID string, offset, limit int) ([]model.Community, error) {
	list := make([]model.Community, 0)
	q := r.DB.WithContext(ctx).Order("created_at desc")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

// UpdateSettings 只写入可编辑的配置列和状态
func (r *CommunityRepository) UpdateSettings(ctx context.Context, c *model.Community) error {
	return r.DB.WithContext(ctx).Model(&model.Community{}).Where("id = ?", c.ID).Updates(map[string]any{
		"name":              c.Name,
		"purpose":           c.Purpose,
		"rules":             c.Rules,
		"moderation_level":  c.ModerationLevel,
		"engagement_style":  c.EngagementStyle,
		"posting_frequency": c.PostingFrequency,
		"telegram_token":    c.TelegramToken,
		"telegram_chat_id":  c.TelegramChatID,
		"status":            c.Status,
	}).Error
}

func (r *CommunityRepository) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	return r.DB.WithContext(ctx).Model(&model.Community{}).Where("id = ?", id).Update("status", status).Error
}
