package view

import (
	"context"
	"strings"
	"sync"

	"powerhause/internal/gateway"
	"powerhause/internal/model"

	"go.uber.org/zap"
)

const opCreate = "create community"

// CommunityCard 列表中的单个社区
type CommunityCard struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Purpose       string       `json:"purpose"`
	Status        model.Status `json:"status"`
	RuleCount     int          `json:"rule_count"`
	DocumentCount int          `json:"document_count"`
	CanPostNow    bool         `json:"can_post_now"`
}

type DashboardSnapshot struct {
	Loaded      bool            `json:"loaded"`
	Communities []CommunityCard `json:"communities"`
	Error       string          `json:"error,omitempty"`
}

// Dashboard holds the list of communities shown to one operator. Creation
// appends to it locally without re-fetching.
type Dashboard struct {
	gw     gateway.Gateway
	logger *zap.Logger

	mu          sync.Mutex
	communities []model.Community
	loaded      bool
	errMsg      string
	closed      bool
	generation  uint64
}

func NewDashboard(gw gateway.Gateway, logger *zap.Logger) *Dashboard {
	return &Dashboard{gw: gw, logger: logger}
}

// Open 拉取社区列表；失败时列表置空并记录错误信息
func (d *Dashboard) Open(ctx context.Context) error {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	list, err := d.gw.List(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || gen != d.generation {
		return ErrClosed
	}
	d.loaded = true
	if err != nil {
		d.logger.Error("failed to fetch communities", zap.Error(err))
		d.communities = nil
		d.errMsg = gateway.Detail(err)
		return err
	}
	d.communities = list
	d.errMsg = ""
	return nil
}

// Create validates the name locally, creates the community and appends it
// to the held list. It returns the new community and its setup path.
func (d *Dashboard) Create(ctx context.Context, name, purpose string) (*model.Community, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", gateway.NewValidation(opCreate, "Please enter a community name")
	}
	c, err := d.gw.Create(ctx, name, strings.TrimSpace(purpose))
	if err != nil {
		return nil, "", err
	}

	d.mu.Lock()
	if !d.closed {
		d.communities = append(d.communities, *c)
	}
	d.mu.Unlock()

	return c, "/setup/" + c.ID, nil
}

// PostNow 立即发送一条帖子
func (d *Dashboard) PostNow(ctx context.Context, id string) (string, error) {
	if err := d.gw.PostNow(ctx, id); err != nil {
		return "", err
	}
	return "Post sent successfully!", nil
}

func (d *Dashboard) Snapshot() DashboardSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	cards := make([]CommunityCard, 0, len(d.communities))
	for _, c := range d.communities {
		cards = append(cards, CommunityCard{
			ID:            c.ID,
			Name:          orDefault(c.Name, defaultName),
			Purpose:       orDefault(c.Purpose, "No description"),
			Status:        c.Status,
			RuleCount:     len(c.Rules),
			DocumentCount: len(c.Documents),
			CanPostNow:    c.Status == model.StatusActive,
		})
	}
	return DashboardSnapshot{Loaded: d.loaded, Communities: cards, Error: d.errMsg}
}

func (d *Dashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}
