package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Status 社区生命周期状态，由服务端决定
type Status string

const (
	StatusDraft      Status = "draft"
	StatusConfigured Status = "configured"
	StatusDeploying  Status = "deploying"
	StatusActive     Status = "active"
	StatusError      Status = "error"
)

const (
	ModerationLow    = "low"
	ModerationMedium = "medium"
	ModerationHigh   = "high"

	EngagementFormal   = "formal"
	EngagementFriendly = "friendly"
	EngagementCasual   = "casual"

	FrequencyLow      = "low"
	FrequencyModerate = "moderate"
	FrequencyHigh     = "high"
)

// ResultDeployed is the only DeploymentResult status that counts as success.
const ResultDeployed = "deployed"

type Community struct {
	ID               string                        `gorm:"primaryKey;size:36" json:"_id"`
	OwnerID          string                        `gorm:"size:64;not null;index" json:"userId,omitempty"`
	Name             string                        `gorm:"size:100;not null" json:"name"`
	Purpose          string                        `gorm:"size:500" json:"purpose"`
	Rules            datatypes.JSONSlice[string]   `gorm:"type:json" json:"rules"`
	ModerationLevel  string                        `gorm:"size:16;not null;default:medium" json:"moderationLevel"`
	EngagementStyle  string                        `gorm:"size:16;not null;default:friendly" json:"engagementStyle"`
	PostingFrequency string                        `gorm:"size:16;not null;default:moderate" json:"postingFrequency"`
	TelegramToken    string                        `gorm:"size:128" json:"telegram_token,omitempty"`
	TelegramChatID   string                        `gorm:"size:64" json:"telegram_chat_id,omitempty"`
	Status           Status                        `gorm:"size:16;not null;default:draft;index" json:"status"`
	Documents        datatypes.JSONSlice[Document] `gorm:"type:json" json:"documents,omitempty"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

// Document 附加的参考文档，核心流程只关心数量
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Credential Telegram 频道凭据
type Credential struct {
	Token  string
	ChatID string
}

// Complete reports whether both fields are non-blank after trimming.
func (c Credential) Complete() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.ChatID) != ""
}

// CleanRules 去掉空白规则，保持原顺序，结果非 nil
func CleanRules(rules []string) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	return out
}

func (c *Community) Credential() Credential {
	return Credential{Token: c.TelegramToken, ChatID: c.TelegramChatID}
}

// ApplyDefaults fills the enumerated settings the gateway may omit.
func (c *Community) ApplyDefaults() {
	if c.ModerationLevel == "" {
		c.ModerationLevel = ModerationMedium
	}
	if c.EngagementStyle == "" {
		c.EngagementStyle = EngagementFriendly
	}
	if c.PostingFrequency == "" {
		c.PostingFrequency = FrequencyModerate
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
}

// CreateReq 创建社区请求体
type CreateReq struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// UpdateFields is the persistable payload of a Save, keyed by the gateway's field names.
type UpdateFields struct {
	Name             string   `json:"name" validate:"required,max=100"`
	Purpose          string   `json:"purpose" validate:"max=500"`
	Rules            []string `json:"rules" validate:"dive,notblank,max=200"`
	ModerationLevel  string   `json:"moderationLevel" validate:"oneof=low medium high"`
	EngagementStyle  string   `json:"engagementStyle" validate:"oneof=formal friendly casual"`
	PostingFrequency string   `json:"postingFrequency" validate:"oneof=low moderate high"`
	TelegramToken    string   `json:"telegram_token"`
	TelegramChatID   string   `json:"telegram_chat_id"`
}

// DeploymentResult deploy 接口返回体
type DeploymentResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Deployed reports whether the result is well-formed and marks success.
func (r *DeploymentResult) Deployed() bool {
	return r != nil && r.Status == ResultDeployed && r.Message != ""
}
