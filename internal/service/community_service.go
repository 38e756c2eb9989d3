package service

import (
	"context"
	"errors"
	"strings"

	"powerhause/internal/gateway"
	"powerhause/internal/model"
	"powerhause/internal/pkg"
	"powerhause/internal/repository/mysql"
	"powerhause/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgNameRequired    = "Community name is required"
	msgNameEmpty       = "Community name cannot be empty"
	msgNotFound        = "Community not found"
	msgCredentials     = "Telegram bot token and chat ID are required"
	msgNotActive       = "Community is not active"
	msgRuntimeFailed   = "Failed to hand the community to the bot runtime"
	msgDeploySucceeded = "Community manager activated successfully"
)

// CommunityRepository 社区持久化
type CommunityRepository interface {
	Create(ctx context.Context, c *model.Community) error
	FindByID(ctx context.Context, id string) (*model.Community, error)
	List(ctx context.Context, ownerID string, offset, limit int) ([]model.Community, error)
	UpdateSettings(ctx context.Context, c *model.Community) error
	UpdateStatus(ctx context.Context, id string, status model.Status) error
}

// EventPublisher 把部署、立即发帖请求交给机器人运行时
type EventPublisher interface {
	Publish(ctx context.Context, ev pkg.BotEvent) error
}

// CredentialVerifier 部署前校验 Telegram 凭据，可选
type CredentialVerifier interface {
	Verify(ctx context.Context, cred model.Credential) error
}

// CommunityService is the in-process gateway backed by MySQL. The reference
// API server exposes it over HTTP and the console may use it directly.
type CommunityService struct {
	repo      CommunityRepository
	publisher EventPublisher
	verifier  CredentialVerifier
	logger    *zap.Logger
}

var _ gateway.Gateway = (*CommunityService)(nil)

func NewCommunityService(repo CommunityRepository, publisher EventPublisher, verifier CredentialVerifier, logger *zap.Logger) *CommunityService {
	return &CommunityService{repo: repo, publisher: publisher, verifier: verifier, logger: logger}
}

func ownerFrom(ctx context.Context) string {
	if id, ok := session.FromContext(ctx); ok {
		return id.OperatorID
	}
	return ""
}

// find 加载社区并校验归属
func (s *CommunityService) find(ctx context.Context, op, id string) (*model.Community, error) {
	c, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, mysql.ErrCommunityNotFound) {
		return nil, gateway.NewNotFound(op, msgNotFound)
	}
	if err != nil {
		return nil, gateway.NewTransport(op, err)
	}
	if owner := ownerFrom(ctx); owner != "" && c.OwnerID != "" && c.OwnerID != owner {
		return nil, gateway.NewNotFound(op, msgNotFound)
	}
	c.ApplyDefaults()
	return c, nil
}

func (s *CommunityService) List(ctx context.Context) ([]model.Community, error) {
	return s.ListCommunities(ctx, 0, 0)
}

// ListCommunities 分页查询；size 为 0 时返回全部
func (s *CommunityService) ListCommunities(ctx context.Context, page, size int) ([]model.Community, error) {
	if page <= 0 {
		page = 1
	}
	if size < 0 || size > 100 {
		size = 20
	}
	list, err := s.repo.List(ctx, ownerFrom(ctx), (page-1)*size, size)
	if err != nil {
		return nil, gateway.NewTransport("list communities", err)
	}
	for i := range list {
		list[i].ApplyDefaults()
	}
	return list, nil
}

func (s *CommunityService) Get(ctx context.Context, id string) (*model.Community, error) {
	return s.find(ctx, "get community", id)
}

func (s *CommunityService) Create(ctx context.Context, name, purpose string) (*model.Community, error) {
	const op = "create community"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, gateway.NewValidation(op, msgNameRequired)
	}

	c := &model.Community{
		ID:      uuid.NewString(),
		OwnerID: ownerFrom(ctx),
		Name:    name,
		Purpose: strings.TrimSpace(purpose),
		Rules:   []string{},
	}
	c.ApplyDefaults()
	if err := model.Validate(updateFieldsOf(c)); err != nil {
		return nil, gateway.NewValidation(op, err.Error())
	}
	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("failed to create community", zap.Error(err))
		return nil, gateway.NewTransport(op, err)
	}
	s.logger.Info("community created", zap.String("community_id", c.ID), zap.String("owner_id", c.OwnerID))
	return c, nil
}

// Update replaces the editable settings. Blank rules are dropped before
// validation. Saving moves a draft or failed community to configured; an
// active community stays active.
func (s *CommunityService) Update(ctx context.Context, id string, in *model.UpdateFields) (*model.Community, error) {
	const op = "update community"
	if in == nil || strings.TrimSpace(in.Name) == "" {
		return nil, gateway.NewValidation(op, msgNameEmpty)
	}
	fields := *in
	fields.Rules = model.CleanRules(in.Rules)
	if err := model.Validate(&fields); err != nil {
		return nil, gateway.NewValidation(op, err.Error())
	}
	c, err := s.find(ctx, op, id)
	if err != nil {
		return nil, err
	}

	c.Name = strings.TrimSpace(fields.Name)
	c.Purpose = fields.Purpose
	c.Rules = fields.Rules
	c.ModerationLevel = fields.ModerationLevel
	c.EngagementStyle = fields.EngagementStyle
	c.PostingFrequency = fields.PostingFrequency
	c.TelegramToken = fields.TelegramToken
	c.TelegramChatID = fields.TelegramChatID
	c.ApplyDefaults()
	if c.Status == model.StatusDraft || c.Status == model.StatusError {
		c.Status = model.StatusConfigured
	}

	if err := s.repo.UpdateSettings(ctx, c); err != nil {
		s.logger.Error("failed to update community", zap.String("community_id", id), zap.Error(err))
		return nil, gateway.NewTransport(op, err)
	}
	return c, nil
}

// Deploy hands the stored configuration to the bot runtime.
func (s *CommunityService) Deploy(ctx context.Context, id string) (*model.DeploymentResult, error) {
	const op = "deploy community"
	c, err := s.find(ctx, op, id)
	if errors.Is(err, gateway.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, gateway.NewDeployment(op, gateway.Detail(err))
	}
	cred := c.Credential()
	if !cred.Complete() {
		return nil, gateway.NewDeployment(op, msgCredentials)
	}
	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, cred); err != nil {
			s.logger.Warn("telegram credential rejected", zap.String("community_id", id), zap.Error(err))
			return nil, gateway.NewDeployment(op, verifyDetail(err))
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, model.StatusDeploying); err != nil {
		return nil, gateway.NewDeployment(op, err.Error())
	}
	ev := pkg.BotEvent{
		Type:             pkg.EventDeploy,
		CommunityID:      c.ID,
		Name:             c.Name,
		Purpose:          c.Purpose,
		Rules:            c.Rules,
		ModerationLevel:  c.ModerationLevel,
		EngagementStyle:  c.EngagementStyle,
		PostingFrequency: c.PostingFrequency,
		TelegramToken:    cred.Token,
		TelegramChatID:   cred.ChatID,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish deploy event", zap.String("community_id", id), zap.Error(err))
		if serr := s.repo.UpdateStatus(ctx, id, model.StatusError); serr != nil {
			s.logger.Error("failed to mark community as error", zap.String("community_id", id), zap.Error(serr))
		}
		return nil, gateway.NewDeployment(op, msgRuntimeFailed)
	}
	if err := s.repo.UpdateStatus(ctx, id, model.StatusActive); err != nil {
		// 事件已发出但状态未落库，标记为 error 以便重新部署
		s.logger.Error("failed to mark community as active", zap.String("community_id", id), zap.Error(err))
		if serr := s.repo.UpdateStatus(ctx, id, model.StatusError); serr != nil {
			s.logger.Error("failed to mark community as error", zap.String("community_id", id), zap.Error(serr))
		}
		return nil, gateway.NewDeployment(op, err.Error())
	}

	s.logger.Info("community deployed", zap.String("community_id", id))
	return &model.DeploymentResult{Status: model.ResultDeployed, Message: msgDeploySucceeded}, nil
}

// PostNow 请求机器人立即发帖，仅 active 社区可用
func (s *CommunityService) PostNow(ctx context.Context, id string) error {
	const op = "post now"
	c, err := s.find(ctx, op, id)
	if err != nil {
		return err
	}
	if c.Status != model.StatusActive {
		return gateway.NewOperation(op, msgNotActive)
	}
	if err := s.publisher.Publish(ctx, pkg.BotEvent{Type: pkg.EventPostNow, CommunityID: c.ID}); err != nil {
		s.logger.Error("failed to publish post request", zap.String("community_id", id), zap.Error(err))
		return gateway.NewOperation(op, "Failed to send post")
	}
	return nil
}

func updateFieldsOf(c *model.Community) *model.UpdateFields {
	return &model.UpdateFields{
		Name:             c.Name,
		Purpose:          c.Purpose,
		Rules:            c.Rules,
		ModerationLevel:  c.ModerationLevel,
		EngagementStyle:  c.EngagementStyle,
		PostingFrequency: c.PostingFrequency,
	}
}
