package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"powerhause/internal/gateway"
	"powerhause/internal/model"
)

// fakeGateway 内存实现，记录调用参数
type fakeGateway struct {
	mu          sync.Mutex
	communities map[string]*model.Community
	nextID      int
	updates     []model.UpdateFields
	deployCalls int
	deployRes   *model.DeploymentResult
	deployErr   error
	listErr     error
	updateErr   error
	getGate     chan struct{}
	listGate    chan struct{}
	updateGate  chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{communities: make(map[string]*model.Community)}
}

func (f *fakeGateway) put(c model.Community) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ApplyDefaults()
	f.communities[c.ID] = &c
}

func (f *fakeGateway) List(ctx context.Context) ([]model.Community, error) {
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Community, 0, len(f.communities))
	for _, c := range f.communities {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeGateway) Get(ctx context.Context, id string) (*model.Community, error) {
	if f.getGate != nil {
		<-f.getGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.communities[id]
	if !ok {
		return nil, gateway.NewNotFound("get community", "Community not found")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeGateway) Create(ctx context.Context, name, purpose string) (*model.Community, error) {
	if strings.TrimSpace(name) == "" {
		return nil, gateway.NewValidation("create community", "Community name is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &model.Community{ID: fmt.Sprintf("c%d", f.nextID), Name: name, Purpose: purpose, Rules: []string{}}
	c.ApplyDefaults()
	f.communities[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeGateway) Update(ctx context.Context, id string, fields *model.UpdateFields) (*model.Community, error) {
	if f.updateGate != nil {
		<-f.updateGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	c, ok := f.communities[id]
	if !ok {
		return nil, gateway.NewNotFound("update community", "Community not found")
	}
	f.updates = append(f.updates, *fields)
	c.Name = fields.Name
	c.Purpose = fields.Purpose
	c.Rules = fields.Rules
	c.ModerationLevel = fields.ModerationLevel
	c.EngagementStyle = fields.EngagementStyle
	c.PostingFrequency = fields.PostingFrequency
	c.TelegramToken = fields.TelegramToken
	c.TelegramChatID = fields.TelegramChatID
	if c.Status == model.StatusDraft {
		c.Status = model.StatusConfigured
	}
	cp := *c
	return &cp, nil
}

func (f *fakeGateway) Deploy(ctx context.Context, id string) (*model.DeploymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployCalls++
	if f.deployErr != nil {
		return nil, f.deployErr
	}
	if c, ok := f.communities[id]; ok && f.deployRes.Deployed() {
		c.Status = model.StatusActive
	}
	return f.deployRes, nil
}

func (f *fakeGateway) PostNow(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.communities[id]
	if !ok {
		return gateway.NewNotFound("post now", "Community not found")
	}
	if c.Status != model.StatusActive {
		return gateway.NewOperation("post now", "Community is not active")
	}
	return nil
}

var _ gateway.Gateway = (*fakeGateway)(nil)
