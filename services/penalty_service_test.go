package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openmm_server/models"
	"openmm_server/utils"
)

type penaltyFixture struct {
	platform *fakePlatform
	clock    *fakeClock
	timers   *fakeTimers
	svc      *PenaltyService
}

func newPenaltyFixture() *penaltyFixture {
	f := &penaltyFixture{platform: newFakePlatform(), clock: newFakeClock(), timers: &fakeTimers{}}
	f.platform.moderators = []string{"mod"}
	f.svc = NewPenaltyService(f.platform, utils.NewKeyedMutex(), zerolog.Nop(),
		WithPenaltyClock(f.clock.Now), WithAfterFunc(f.timers.AfterFunc))
	return f
}

func TestSuspendAndExpire(t *testing.T) {
	f := newPenaltyFixture()
	ctx := context.Background()

	out, err := f.svc.Suspend(ctx, "mod", "g", "alice", time.Hour, "griefing")
	require.NoError(t, err)
	assert.Empty(t, out.Advisories)
	assert.Equal(t, f.clock.Now().Add(time.Hour), out.EndsAt)
	assert.True(t, f.svc.IsSuspended("g", "alice", f.clock.Now()))
	assert.True(t, f.platform.suspended["g/alice"])
	require.Equal(t, 1, f.timers.Len())
	assert.Equal(t, time.Hour, f.timers.delay[0])

	_, err = f.svc.Suspend(ctx, "mod", "g", "alice", time.Minute, "again")
	require.ErrorIs(t, err, models.ErrAlreadySuspended)

	assert.False(t, f.svc.IsSuspended("h", "alice", f.clock.Now()), "suspensions are per community")

	f.clock.Advance(time.Hour)
	assert.False(t, f.svc.IsSuspended("g", "alice", f.clock.Now()))
	f.timers.Fire(0)
	assert.False(t, f.platform.suspended["g/alice"])

	// firing again is a no-op
	f.timers.Fire(0)
	assert.Equal(t, 1, f.platform.count("lift"))
	assert.Len(t, f.svc.History("g", "alice"), 1)
}

func TestSuspendRequiresModeratorAndDuration(t *testing.T) {
	f := newPenaltyFixture()
	ctx := context.Background()
	_, err := f.svc.Suspend(ctx, "alice", "g", "bob", time.Hour, "")
	require.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.Suspend(ctx, "mod", "g", "bob", 0, "")
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, f.svc.History("g", "bob"))
}

func TestStaleExpiryKeepsNewerSuspension(t *testing.T) {
	f := newPenaltyFixture()
	ctx := context.Background()

	_, err := f.svc.Suspend(ctx, "mod", "g", "alice", time.Hour, "first")
	require.NoError(t, err)
	_, err = f.svc.LiftManually(ctx, "mod", "g", "alice", "appeal")
	require.NoError(t, err)
	_, err = f.svc.Suspend(ctx, "mod", "g", "alice", 3*time.Hour, "second")
	require.NoError(t, err)

	// the first timer fires while the second suspension is active
	f.clock.Advance(time.Hour)
	f.timers.Fire(0)
	assert.True(t, f.platform.suspended["g/alice"])
	assert.True(t, f.svc.IsSuspended("g", "alice", f.clock.Now()))

	f.clock.Advance(2 * time.Hour)
	f.timers.Fire(1)
	assert.False(t, f.platform.suspended["g/alice"])
}

func TestLiftManually(t *testing.T) {
	f := newPenaltyFixture()
	ctx := context.Background()

	_, err := f.svc.LiftManually(ctx, "mod", "g", "alice", "")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.Suspend(ctx, "mod", "g", "alice", time.Hour, "")
	require.NoError(t, err)

	_, err = f.svc.LiftManually(ctx, "alice", "g", "alice", "")
	require.ErrorIs(t, err, models.ErrValidation)

	out, err := f.svc.LiftManually(ctx, "mod", "g", "alice", "appeal")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Lifted)
	assert.False(t, f.svc.IsSuspended("g", "alice", f.clock.Now()))
	assert.False(t, f.platform.suspended["g/alice"])

	history := f.svc.History("g", "alice")
	require.Len(t, history, 1)
	require.NotNil(t, history[0].LiftedAt)

	// the scheduled expiry still runs and finds nothing to do
	f.timers.Fire(0)
	assert.Equal(t, 1, f.platform.count("lift"))
}

func TestLiftManuallyClearsOrphanedEffect(t *testing.T) {
	f := newPenaltyFixture()
	f.platform.suspended["g/alice"] = true
	out, err := f.svc.LiftManually(context.Background(), "mod", "g", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Lifted)
	assert.False(t, f.platform.suspended["g/alice"])
}

func TestSuspendEffectFailureIsAdvisory(t *testing.T) {
	f := newPenaltyFixture()
	f.platform.fail("apply")
	out, err := f.svc.Suspend(context.Background(), "mod", "g", "alice", time.Hour, "")
	require.NoError(t, err)
	require.Len(t, out.Advisories, 1)
	assert.ErrorIs(t, out.Advisories[0], models.ErrExternalEffect)
	assert.ErrorIs(t, out.Advisories[0], errPlatformDown)
	assert.True(t, f.svc.IsSuspended("g", "alice", f.clock.Now()))
}

func TestReconcileReportsEffectErrors(t *testing.T) {
	f := newPenaltyFixture()
	f.platform.suspended["g/alice"] = true
	f.platform.fail("lift")
	err := f.svc.Reconcile(context.Background(), "g", "alice")
	require.ErrorIs(t, err, models.ErrExternalEffect)
}

func TestPruneDropsOldHistory(t *testing.T) {
	f := newPenaltyFixture()
	ctx := context.Background()
	_, err := f.svc.Suspend(ctx, "mod", "g", "alice", time.Hour, "")
	require.NoError(t, err)
	_, err = f.svc.Suspend(ctx, "mod", "g", "bob", 60*24*time.Hour, "")
	require.NoError(t, err)

	f.clock.Advance(models.DefaultSuspensionRetention)
	assert.Equal(t, 0, f.svc.Prune(f.clock.Now()), "alice ended inside the retention window")

	f.clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, f.svc.Prune(f.clock.Now()))
	assert.Empty(t, f.svc.History("g", "alice"))
	assert.Len(t, f.svc.History("g", "bob"), 1, "active records are never pruned")
}
