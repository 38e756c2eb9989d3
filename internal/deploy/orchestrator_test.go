package deploy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"powerhause/internal/gateway"
	"powerhause/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDeployer struct {
	calls  atomic.Int32
	result *model.DeploymentResult
	err    error
	block  chan struct{}
}

func (f *fakeDeployer) Deploy(ctx context.Context, id string) (*model.DeploymentResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

type navRecorder struct {
	ch chan Handoff
}

func newNavRecorder() *navRecorder {
	return &navRecorder{ch: make(chan Handoff, 4)}
}

func (n *navRecorder) navigate(h Handoff) {
	n.ch <- h
}

var goodCred = model.Credential{Token: "123:abc", ChatID: "-100"}

func TestDeploy_BlankCredentialNeverCallsGateway(t *testing.T) {
	creds := []model.Credential{
		{Token: "", ChatID: "-100"},
		{Token: "123:abc", ChatID: ""},
		{Token: "   ", ChatID: "-100"},
		{Token: "123:abc", ChatID: "\t"},
		{},
	}
	for _, cred := range creds {
		gw := &fakeDeployer{result: &model.DeploymentResult{Status: "deployed", Message: "ok"}}
		o := New("c1", gw, nil, zap.NewNop())

		snap, err := o.Deploy(context.Background(), cred)

		require.Error(t, err)
		assert.True(t, errors.Is(err, gateway.ErrValidation))
		assert.Equal(t, Idle, snap.State)
		assert.Equal(t, msgCredentials, snap.Reason)
		assert.Equal(t, int32(0), gw.calls.Load())
	}
}

func TestDeploy_SuccessSchedulesHandoff(t *testing.T) {
	gw := &fakeDeployer{result: &model.DeploymentResult{Status: "deployed", Message: "ok"}}
	nav := newNavRecorder()
	o := New("c1", gw, nav.navigate, zap.NewNop(), WithDelay(20*time.Millisecond))

	snap, err := o.Deploy(context.Background(), goodCred)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, snap.State)
	assert.True(t, snap.HandoffPending)
	assert.Equal(t, &model.DeploymentResult{Status: "deployed", Message: "ok"}, snap.Result)

	select {
	case h := <-nav.ch:
		assert.Equal(t, "c1", h.CommunityID)
		assert.Equal(t, "/status/c1", h.Path)
		assert.Equal(t, model.DeploymentResult{Status: "deployed", Message: "ok"}, h.Result)
	case <-time.After(time.Second):
		t.Fatal("handoff was not delivered")
	}
	assert.False(t, o.Snapshot().HandoffPending)
}

func TestDeploy_HandoffWaitsForDelay(t *testing.T) {
	gw := &fakeDeployer{result: &model.DeploymentResult{Status: "deployed", Message: "ok"}}
	nav := newNavRecorder()
	o := New("c1", gw, nav.navigate, zap.NewNop(), WithDelay(200*time.Millisecond))

	_, err := o.Deploy(context.Background(), goodCred)
	require.NoError(t, err)

	select {
	case <-nav.ch:
		t.Fatal("handoff delivered before the delay")
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-nav.ch:
	case <-time.After(time.Second):
		t.Fatal("handoff was not delivered")
	}
}

func TestDeploy_NonDeployedStatusFails(t *testing.T) {
	results := []*model.DeploymentResult{
		{Status: "pending", Message: "queued"},
		{Status: "", Message: "ok"},
		{Status: "deployed", Message: ""},
		nil,
	}
	for _, r := range results {
		gw := &fakeDeployer{result: r}
		nav := newNavRecorder()
		o := New("c1", gw, nav.navigate, zap.NewNop(), WithDelay(time.Millisecond))

		snap, err := o.Deploy(context.Background(), goodCred)

		require.Error(t, err)
		assert.True(t, errors.Is(err, gateway.ErrDeployment))
		assert.Equal(t, Failed, snap.State)
		assert.Equal(t, msgInvalidResponse, snap.Reason)
		assert.Nil(t, snap.Result)
		assert.False(t, snap.HandoffPending)
	}
}

func TestDeploy_GatewayErrorFails(t *testing.T) {
	gw := &fakeDeployer{err: gateway.NewDeployment("deploy community", "invalid token")}
	nav := newNavRecorder()
	o := New("c1", gw, nav.navigate, zap.NewNop(), WithDelay(time.Millisecond))

	snap, err := o.Deploy(context.Background(), goodCred)

	require.Error(t, err)
	assert.Equal(t, Failed, snap.State)
	assert.Equal(t, "invalid token", snap.Reason)

	select {
	case <-nav.ch:
		t.Fatal("failed deployment must not navigate")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestDeploy_TransportErrorUsesRawText(t *testing.T) {
	gw := &fakeDeployer{err: gateway.NewTransport("deploy community", errors.New("dial tcp: connection refused"))}
	o := New("c1", gw, nil, zap.NewNop())

	snap, err := o.Deploy(context.Background(), goodCred)
	assert.True(t, errors.Is(err, gateway.ErrTransport))
	assert.Equal(t, "dial tcp: connection refused", snap.Reason)
}

func TestDeploy_CanRetryFromTerminalStates(t *testing.T) {
	gw := &fakeDeployer{err: gateway.NewDeployment("deploy community", "invalid token")}
	nav := newNavRecorder()
	o := New("c1", gw, nav.navigate, zap.NewNop(), WithDelay(10*time.Millisecond))

	snap, _ := o.Deploy(context.Background(), goodCred)
	require.Equal(t, Failed, snap.State)

	gw.err = nil
	gw.result = &model.DeploymentResult{Status: "deployed", Message: "ok"}
	snap, err := o.Deploy(context.Background(), goodCred)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, snap.State)
	assert.Empty(t, snap.Reason)

	snap, err = o.Deploy(context.Background(), goodCred)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, snap.State)
	assert.Equal(t, int32(3), gw.calls.Load())
}

func TestDeploy_RedeployCancelsPendingHandoff(t *testing.T) {
	gw := &fakeDeployer{result: &model.DeploymentResult{Status: "deployed", Message: "ok"}}
	nav := newNavRecorder()
	o := New("c1", gw, nav.navigate, zap.NewNop(), WithDelay(80*time.Millisecond))

	_, err := o.Deploy(context.Background(), goodCred)
	require.NoError(t, err)
	_, err = o.Deploy(context.Background(), model.Credential{})
	require.Error(t, err)

	select {
	case <-nav.ch:
		t.Fatal("superseded handoff was delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDeploy_RefusedWhileInFlight(t *testing.T) {
	gw := &fakeDeployer{
		result: &model.DeploymentResult{Status: "deployed", Message: "ok"},
		block:  make(chan struct{}),
	}
	o := New("c1", gw, nil, zap.NewNop(), WithDelay(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := o.Deploy(context.Background(), goodCred)
		done <- err
	}()
	require.Eventually(t, func() bool { return o.Snapshot().State == Deploying }, time.Second, 5*time.Millisecond)

	snap, err := o.Deploy(context.Background(), goodCred)
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Equal(t, Deploying, snap.State)

	close(gw.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), gw.calls.Load())
	o.Close()
}

func TestClose_DropsInFlightResponse(t *testing.T) {
	gw := &fakeDeployer{
		result: &model.DeploymentResult{Status: "deployed", Message: "ok"},
		block:  make(chan struct{}),
	}
	nav := newNavRecorder()
	var outcomes atomic.Int32
	o := New("c1", gw, nav.navigate, zap.NewNop(),
		WithDelay(time.Millisecond),
		WithObserver(func(Outcome) { outcomes.Add(1) }),
	)

	done := make(chan error, 1)
	go func() {
		_, err := o.Deploy(context.Background(), goodCred)
		done <- err
	}()
	require.Eventually(t, func() bool { return o.Snapshot().State == Deploying }, time.Second, 5*time.Millisecond)

	o.Close()
	close(gw.block)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, Deploying, o.Snapshot().State)
	assert.Equal(t, int32(0), outcomes.Load())
	select {
	case <-nav.ch:
		t.Fatal("closed view navigated")
	case <-time.After(30 * time.Millisecond):
	}

	_, err := o.Deploy(context.Background(), goodCred)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_CancelsPendingHandoff(t *testing.T) {
	gw := &fakeDeployer{result: &model.DeploymentResult{Status: "deployed", Message: "ok"}}
	nav := newNavRecorder()
	o := New("c1", gw, nav.navigate, zap.NewNop(), WithDelay(50*time.Millisecond))

	_, err := o.Deploy(context.Background(), goodCred)
	require.NoError(t, err)
	o.Close()

	select {
	case <-nav.ch:
		t.Fatal("handoff delivered after close")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestObserverReceivesOutcomes(t *testing.T) {
	var mu sync.Mutex
	var got []Outcome
	gw := &fakeDeployer{err: gateway.NewDeployment("deploy community", "invalid token")}
	o := New("c1", gw, nil, zap.NewNop(),
		WithDelay(time.Hour),
		WithObserver(func(out Outcome) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, out)
		}),
	)
	o.SetName("Book Club")

	_, _ = o.Deploy(context.Background(), model.Credential{})
	_, _ = o.Deploy(context.Background(), goodCred)
	gw.err = nil
	gw.result = &model.DeploymentResult{Status: "deployed", Message: "ok"}
	_, _ = o.Deploy(context.Background(), goodCred)
	o.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, Failed, got[0].State)
	assert.Equal(t, "invalid token", got[0].Reason)
	assert.Equal(t, "Book Club", got[0].CommunityName)
	assert.Equal(t, Succeeded, got[1].State)
	assert.Equal(t, "ok", got[1].Result.Message)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "deploying", Deploying.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(42).String())
}
