package view

import (
	"context"
	"errors"

	"powerhause/internal/gateway"
	"powerhause/internal/model"
)

const (
	defaultStatusMessage = "Your Telegram community manager is now active."
	defaultName          = "Telegram Community"
	notConfigured        = "Not configured"
	tokenPreviewLen      = 10
)

// StatusView 状态页展示模型：服务端实体 + 可选的部署结果
type StatusView struct {
	NotFound         bool                    `json:"not_found"`
	Back             string                  `json:"back"`
	Deployed         bool                    `json:"deployed"`
	Headline         string                  `json:"headline,omitempty"`
	Message          string                  `json:"message,omitempty"`
	Deployment       *model.DeploymentResult `json:"deployment,omitempty"`
	CommunityID      string                  `json:"community_id,omitempty"`
	Name             string                  `json:"name,omitempty"`
	Status           model.Status            `json:"status,omitempty"`
	TokenPreview     string                  `json:"token_preview,omitempty"`
	ChatID           string                  `json:"chat_id,omitempty"`
	Purpose          string                  `json:"purpose,omitempty"`
	PostingFrequency string                  `json:"posting_frequency,omitempty"`
	RuleCount        int                     `json:"rule_count"`
	DocumentCount    int                     `json:"document_count"`
	CanPostNow       bool                    `json:"can_post_now"`
}

// BuildStatus reconciles a freshly fetched community with the result carried
// over from a deployment. The carried status and message are shown verbatim.
func BuildStatus(c *model.Community, carried *model.DeploymentResult) StatusView {
	v := StatusView{
		Back:             "/dashboard",
		Headline:         "Community Status",
		Message:          defaultStatusMessage,
		CommunityID:      c.ID,
		Name:             orDefault(c.Name, defaultName),
		Status:           c.Status,
		TokenPreview:     notConfigured,
		ChatID:           orDefault(c.TelegramChatID, notConfigured),
		Purpose:          orDefault(c.Purpose, "Not specified"),
		PostingFrequency: orDefault(c.PostingFrequency, "Not set"),
		RuleCount:        len(c.Rules),
		DocumentCount:    len(c.Documents),
		CanPostNow:       c.Status == model.StatusActive,
	}
	if c.TelegramToken != "" {
		v.TokenPreview = preview(c.TelegramToken, tokenPreviewLen)
	}
	if carried != nil {
		r := *carried
		v.Deployment = &r
		v.Deployed = r.Status == model.ResultDeployed
		if v.Deployed {
			v.Headline = "Community Deployed Successfully!"
		}
		if r.Message != "" {
			v.Message = r.Message
		}
	}
	return v
}

// NotFoundStatus 社区不存在时的状态页
func NotFoundStatus() StatusView {
	return StatusView{NotFound: true, Back: "/dashboard", Message: "Community not found"}
}

// LoadStatus fetches the community and builds its status view. An unknown id
// yields the not-found view rather than an error.
func LoadStatus(ctx context.Context, gw gateway.Gateway, id string, carried *model.DeploymentResult) (StatusView, error) {
	c, err := gw.Get(ctx, id)
	if errors.Is(err, gateway.ErrNotFound) {
		return NotFoundStatus(), nil
	}
	if err != nil {
		return StatusView{}, err
	}
	return BuildStatus(c, carried), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s + "..."
	}
	return string(r[:n]) + "..."
}
