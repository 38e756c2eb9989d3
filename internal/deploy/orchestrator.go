// Package deploy drives a community from configured to deployed and hands
// the deployment result forward to the status view.
package deploy

import (
	"context"
	"errors"
	"sync"
	"time"

	"powerhause/internal/gateway"
	"powerhause/internal/model"

	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Validating
	Deploying
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Deploying:
		return "deploying"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// DefaultHandoffDelay 成功后跳转状态页前的展示时间
const DefaultHandoffDelay = 2 * time.Second

const (
	opDeploy           = "deploy community"
	msgCredentials     = "Telegram bot token and chat ID are required for deployment"
	msgInvalidResponse = "Deployment response was invalid"
)

var (
	ErrInProgress = errors.New("deployment already in progress")
	ErrClosed     = errors.New("deployment view closed")
)

// Deployer 编排器对网关的最小依赖
type Deployer interface {
	Deploy(ctx context.Context, id string) (*model.DeploymentResult, error)
}

// Handoff 成功后交给状态页的数据
type Handoff struct {
	CommunityID string
	Path        string
	Result      model.DeploymentResult
}

// Outcome 一次部署尝试的终态
type Outcome struct {
	CommunityID   string
	CommunityName string
	State         State
	Result        *model.DeploymentResult
	Reason        string
	At            time.Time
}

type Snapshot struct {
	State          State
	Reason         string
	Result         *model.DeploymentResult
	HandoffPending bool
}

type Option func(*Orchestrator)

// WithDelay overrides DefaultHandoffDelay.
func WithDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.delay = d
	}
}

// WithObserver registers fn to receive every Succeeded or Failed outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, fn)
	}
}

// Orchestrator runs Idle -> Validating -> Deploying -> {Succeeded, Failed}
// for one community. It may be re-run from any terminal state.
type Orchestrator struct {
	communityID string
	gw          Deployer
	navigate    func(Handoff)
	delay       time.Duration
	observers   []func(Outcome)
	logger      *zap.Logger

	mu      sync.Mutex
	name    string
	state   State
	reason  string
	result  *model.DeploymentResult
	attempt uint64
	timer   *time.Timer
	closed  bool
}

func New(communityID string, gw Deployer, navigate func(Handoff), logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		communityID: communityID,
		gw:          gw,
		navigate:    navigate,
		delay:       DefaultHandoffDelay,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Deploy validates cred and, when complete, calls the gateway. A blank
// credential returns the machine to Idle with a validation error and no
// gateway call. Gateway errors and malformed results end in Failed and are
// returned. On success the hand-off is scheduled after the fixed delay.
func (o *Orchestrator) Deploy(ctx context.Context, cred model.Credential) (Snapshot, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if o.state == Validating || o.state == Deploying {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, ErrInProgress
	}
	o.stopTimerLocked()
	o.attempt++
	attempt := o.attempt
	o.state = Validating
	o.reason = ""
	o.result = nil

	if !cred.Complete() {
		o.state = Idle
		o.reason = msgCredentials
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, gateway.NewValidation(opDeploy, msgCredentials)
	}
	o.state = Deploying
	o.mu.Unlock()

	o.logger.Info("deploying community", zap.String("community_id", o.communityID))
	result, err := o.gw.Deploy(ctx, o.communityID)
	if err == nil && !result.Deployed() {
		o.logger.Error("invalid deployment response",
			zap.String("community_id", o.communityID),
			zap.Any("result", result),
		)
		err = gateway.NewDeployment(opDeploy, msgInvalidResponse)
	}

	o.mu.Lock()
	if o.closed || attempt != o.attempt {
		o.mu.Unlock()
		o.logger.Debug("dropping stale deployment response", zap.String("community_id", o.communityID))
		return Snapshot{}, ErrClosed
	}
	outcome := Outcome{CommunityID: o.communityID, CommunityName: o.name, At: time.Now()}
	if err != nil {
		o.state = Failed
		o.reason = gateway.Detail(err)
		outcome.State, outcome.Reason = Failed, o.reason
	} else {
		o.state = Succeeded
		o.result = result
		outcome.State, outcome.Result = Succeeded, result
		o.timer = time.AfterFunc(o.delay, func() { o.fire(attempt) })
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn("deployment failed",
			zap.String("community_id", o.communityID),
			zap.String("reason", outcome.Reason),
		)
	} else {
		o.logger.Info("deployment succeeded", zap.String("community_id", o.communityID))
	}
	for _, fn := range o.observers {
		fn(outcome)
	}
	return snap, err
}

func (o *Orchestrator) fire(attempt uint64) {
	o.mu.Lock()
	if o.closed || attempt != o.attempt || o.state != Succeeded || o.result == nil {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	h := Handoff{
		CommunityID: o.communityID,
		Path:        "/status/" + o.communityID,
		Result:      *o.result,
	}
	o.mu.Unlock()

	if o.navigate != nil {
		o.navigate(h)
	}
}

// SetName 记录社区名称，随 Outcome 交给观察者
func (o *Orchestrator) SetName(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.name = name
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Close cancels a pending hand-off; responses arriving afterwards are dropped.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.stopTimerLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:          o.state,
		Reason:         o.reason,
		HandoffPending: o.timer != nil,
	}
	if o.result != nil {
		r := *o.result
		s.Result = &r
	}
	return s
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
