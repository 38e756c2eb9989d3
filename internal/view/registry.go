package view

import (
	"sync"

	"powerhause/internal/deploy"
	"powerhause/internal/gateway"
	"powerhause/internal/model"

	"go.uber.org/zap"
)

// Registry keeps the open views of every operator session and the
// deployment results waiting to be shown on a status view.
type Registry struct {
	gw     gateway.Gateway
	logger *zap.Logger
	opts   []deploy.Option

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	dashboard *Dashboard
	setups    map[string]*Setup
	handoffs  map[string]model.DeploymentResult
}

func NewRegistry(gw gateway.Gateway, logger *zap.Logger, opts ...deploy.Option) *Registry {
	return &Registry{
		gw:       gw,
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

func (r *Registry) sessionLocked(owner string) *session {
	s, ok := r.sessions[owner]
	if !ok {
		s = &session{
			setups:   make(map[string]*Setup),
			handoffs: make(map[string]model.DeploymentResult),
		}
		r.sessions[owner] = s
	}
	return s
}

// Dashboard 返回会话的列表视图，不存在时创建
func (r *Registry) Dashboard(owner string) *Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessionLocked(owner)
	if s.dashboard == nil {
		s.dashboard = NewDashboard(r.gw, r.logger)
	}
	return s.dashboard
}

// OpenSetup creates a fresh setup view for the community, closing any view
// previously open for it so that its late responses are dropped.
func (r *Registry) OpenSetup(owner, communityID string) *Setup {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessionLocked(owner)
	if old, ok := s.setups[communityID]; ok {
		old.Close()
	}
	setup := NewSetup(communityID, r.gw, func(h deploy.Handoff) {
		r.deliver(owner, h)
	}, r.logger, r.opts...)
	s.setups[communityID] = setup
	return setup
}

func (r *Registry) Setup(owner, communityID string) (*Setup, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[owner]
	if !ok {
		return nil, false
	}
	setup, ok := s.setups[communityID]
	return setup, ok
}

func (r *Registry) CloseSetup(owner, communityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[owner]
	if !ok {
		return
	}
	if setup, ok := s.setups[communityID]; ok {
		setup.Close()
		delete(s.setups, communityID)
	}
}

// TakeHandoff 取出并清除等待状态页展示的部署结果
func (r *Registry) TakeHandoff(owner, communityID string) *model.DeploymentResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[owner]
	if !ok {
		return nil
	}
	res, ok := s.handoffs[communityID]
	if !ok {
		return nil
	}
	delete(s.handoffs, communityID)
	return &res
}

// CloseSession 关闭会话下所有视图（登出时调用）
func (r *Registry) CloseSession(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[owner]
	if !ok {
		return
	}
	for _, setup := range s.setups {
		setup.Close()
	}
	if s.dashboard != nil {
		s.dashboard.Close()
	}
	delete(r.sessions, owner)
}

func (r *Registry) deliver(owner string, h deploy.Handoff) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[owner]
	if !ok {
		return
	}
	s.handoffs[h.CommunityID] = h.Result
	r.logger.Info("deployment result handed to status view",
		zap.String("owner", owner),
		zap.String("community_id", h.CommunityID),
	)
}
