package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"openmm_server/models"
	"openmm_server/utils"
)

var errPlatformDown = eris.New("platform unavailable")

// fakePlatform records every call and fails the ops named in failing.
type fakePlatform struct {
	mu         sync.Mutex
	hosts      []string
	moderators []string
	failing    map[string]bool
	rooms      map[models.RoomHandle][]string
	nextRoom   int
	suspended  map[string]bool
	moves      map[string]models.RoomHandle
	notes      map[string][]models.Notification
	calls      []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		failing:   map[string]bool{},
		rooms:     map[models.RoomHandle][]string{},
		suspended: map[string]bool{},
		moves:     map[string]models.RoomHandle{},
		notes:     map[string][]models.Notification{},
	}
}

func (f *fakePlatform) fail(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op] = true
}

func (f *fakePlatform) record(op string) error {
	f.calls = append(f.calls, op)
	if f.failing[op] {
		return errPlatformDown
	}
	return nil
}

func (f *fakePlatform) HasHostingCapability(_ context.Context, _, p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.hosts, p) || slices.Contains(f.moderators, p)
}

func (f *fakePlatform) HasModerationCapability(_ context.Context, _, p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.moderators, p)
}

func (f *fakePlatform) OpenSideRoom(_ context.Context, _ string, spec models.RoomSpec) (models.RoomHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("open"); err != nil {
		return models.NoRoom, err
	}
	f.nextRoom++
	room := models.RoomHandle(fmt.Sprintf("room-%d-%s", f.nextRoom, spec.Side))
	f.rooms[room] = slices.Clone(spec.Allowed)
	return room, nil
}

func (f *fakePlatform) CloseRoom(_ context.Context, _ string, room models.RoomHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("close"); err != nil {
		return err
	}
	delete(f.rooms, room)
	return nil
}

func (f *fakePlatform) SetRoomAccess(_ context.Context, _ string, room models.RoomHandle, p string, allowed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("access"); err != nil {
		return err
	}
	list := slices.DeleteFunc(f.rooms[room], func(a string) bool { return a == p })
	if allowed {
		list = append(list, p)
	}
	f.rooms[room] = list
	return nil
}

func (f *fakePlatform) MoveParticipant(_ context.Context, _, p string, dest models.RoomHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("move"); err != nil {
		return err
	}
	f.moves[p] = dest
	return nil
}

func (f *fakePlatform) NotifyParticipant(_ context.Context, _, p string, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("notify"); err != nil {
		return err
	}
	f.notes[p] = append(f.notes[p], n)
	return nil
}

func (f *fakePlatform) ApplySuspension(_ context.Context, c, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("apply"); err != nil {
		return err
	}
	f.suspended[utils.ParticipantKey(c, p)] = true
	return nil
}

func (f *fakePlatform) LiftSuspension(_ context.Context, c, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("lift"); err != nil {
		return err
	}
	delete(f.suspended, utils.ParticipantKey(c, p))
	return nil
}

func (f *fakePlatform) HasSuspension(_ context.Context, c, p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("has"); err != nil {
		return false, err
	}
	return f.suspended[utils.ParticipantKey(c, p)], nil
}

func (f *fakePlatform) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakePlatform) lastMove(p string) (models.RoomHandle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.moves[p]
	return room, ok
}

func (f *fakePlatform) notifications(p string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.notes[p])
}

func (f *fakePlatform) openRooms() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTimers collects scheduled expiries so tests fire them by hand.
type fakeTimers struct {
	mu    sync.Mutex
	fns   []func()
	delay []time.Duration
}

func (t *fakeTimers) AfterFunc(d time.Duration, f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fns = append(t.fns, f)
	t.delay = append(t.delay, d)
}

func (t *fakeTimers) Fire(i int) {
	t.mu.Lock()
	f := t.fns[i]
	t.mu.Unlock()
	f()
}

func (t *fakeTimers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fns)
}
