package view

import (
	"context"
	"errors"
	"sync"

	"powerhause/internal/deploy"
	"powerhause/internal/draft"
	"powerhause/internal/gateway"
	"powerhause/internal/model"

	"go.uber.org/zap"
)

var (
	ErrNotLoaded = errors.New("community not loaded")
	ErrBusy      = errors.New("save already in progress")
	// 视图已关闭或已重新加载，网关响应被丢弃
	ErrClosed    = errors.New("view closed or reloaded")
)

// DeploySnapshot 部署状态机的对外视图
type DeploySnapshot struct {
	State          string                  `json:"state"`
	Reason         string                  `json:"reason,omitempty"`
	Result         *model.DeploymentResult `json:"result,omitempty"`
	HandoffPending bool                    `json:"handoff_pending"`
}

type SetupSnapshot struct {
	CommunityID   string            `json:"community_id"`
	Loaded        bool              `json:"loaded"`
	Status        model.Status      `json:"status,omitempty"`
	Fields        map[string]string `json:"fields"`
	Rules         []string          `json:"rules"`
	CanRemoveRule bool              `json:"can_remove_rule"`
	CanDeploy     bool              `json:"can_deploy"`
	Saving        bool              `json:"saving"`
	Deploy        DeploySnapshot    `json:"deploy"`
	Navigate      string            `json:"navigate,omitempty"`
}

// Setup is the configuration view of one community: a draft plus the
// deployment orchestrator. Gateway responses that arrive after Close, or
// after a newer Open, are discarded.
type Setup struct {
	communityID string
	gw          gateway.Gateway
	orch        *deploy.Orchestrator
	logger      *zap.Logger

	mu         sync.Mutex
	draft      *draft.Draft
	community  *model.Community
	loaded     bool
	saving     bool
	closed     bool
	generation uint64
	navigate   string
}

// NewSetup creates the view. onHandoff receives the deployment result once
// the post-success delay has elapsed.
func NewSetup(communityID string, gw gateway.Gateway, onHandoff func(deploy.Handoff), logger *zap.Logger, opts ...deploy.Option) *Setup {
	s := &Setup{
		communityID: communityID,
		gw:          gw,
		logger:      logger.With(zap.String("community_id", communityID)),
		draft:       draft.New(),
	}
	s.orch = deploy.New(communityID, gw, func(h deploy.Handoff) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.navigate = h.Path
		s.mu.Unlock()
		if onHandoff != nil {
			onHandoff(h)
		}
	}, s.logger, opts...)
	return s
}

func (s *Setup) CommunityID() string {
	return s.communityID
}

// Open 拉取社区并载入草稿
func (s *Setup) Open(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	c, err := s.gw.Get(ctx, s.communityID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		return ErrClosed
	}
	if err != nil {
		s.logger.Error("failed to load community", zap.Error(err))
		return err
	}
	s.community = c
	s.draft.Load(c)
	s.loaded = true
	s.orch.SetName(c.Name)
	return nil
}

func (s *Setup) SetField(name draft.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	return s.draft.SetField(name, value)
}

func (s *Setup) SetRule(index int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	return s.draft.SetRule(index, value)
}

func (s *Setup) AddRule() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	s.draft.AddRule()
	return nil
}

// RemoveRule 删除规则槽；仅剩一个时拒绝
func (s *Setup) RemoveRule(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, ErrNotLoaded
	}
	return s.draft.RemoveRule(index), nil
}

// Save validates the draft locally and persists it through the gateway.
func (s *Setup) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if s.saving {
		s.mu.Unlock()
		return ErrBusy
	}
	payload, err := s.draft.Payload()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.saving = true
	gen := s.generation
	s.mu.Unlock()

	updated, err := s.gw.Update(ctx, s.communityID, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if s.closed || gen != s.generation {
		if err != nil {
			s.logger.Warn("save response dropped", zap.Error(err))
		}
		return ErrClosed
	}
	if err != nil {
		s.logger.Error("failed to save community", zap.Error(err))
		return err
	}
	if updated != nil && updated.ID != "" {
		s.community = updated
		s.orch.SetName(updated.Name)
	}
	s.logger.Info("community settings saved")
	return nil
}

// Deploy runs the orchestrator with the credential currently in the draft.
func (s *Setup) Deploy(ctx context.Context) (deploy.Snapshot, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return deploy.Snapshot{}, ErrNotLoaded
	}
	cred := s.draft.Credential()
	s.navigate = ""
	s.mu.Unlock()

	return s.orch.Deploy(ctx, cred)
}

func (s *Setup) Snapshot() SetupSnapshot {
	ds := s.orch.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	fields := make(map[string]string)
	for k, v := range s.draft.Values() {
		fields[string(k)] = v
	}
	slots := s.draft.Slots()
	snap := SetupSnapshot{
		CommunityID:   s.communityID,
		Loaded:        s.loaded,
		Fields:        fields,
		Rules:         slots,
		CanRemoveRule: len(slots) > 1,
		CanDeploy:     s.loaded && s.draft.Credential().Complete() && ds.State != deploy.Deploying && ds.State != deploy.Validating,
		Saving:        s.saving,
		Deploy: DeploySnapshot{
			State:          ds.State.String(),
			Reason:         ds.Reason,
			Result:         ds.Result,
			HandoffPending: ds.HandoffPending,
		},
		Navigate: s.navigate,
	}
	if s.community != nil {
		snap.Status = s.community.Status
	}
	return snap
}

// Close discards the view; a pending hand-off is cancelled.
func (s *Setup) Close() {
	s.orch.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
