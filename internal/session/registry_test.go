package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"triage-agent/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(ttl time.Duration) (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	r := NewRegistry(ttl)
	r.now = clock.Now
	n := 0
	r.newID = func() string {
		n++
		return "sess-" + string(rune('0'+n))
	}
	return r, clock
}

func TestCreateAndGet(t *testing.T) {
	r, clock := newTestRegistry(time.Hour)

	s := r.Create()
	require.Equal(t, "sess-1", s.ID)
	require.Empty(t, s.History)
	require.Equal(t, clock.Now(), s.CreatedAt)

	got, err := r.Get("sess-1")
	require.NoError(t, err)
	require.Equal(t, s, got)

	_, err = r.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_StoresResult(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	s := r.Create()

	out, err := r.Update(s.ID, func(cur domain.Session) (domain.Session, error) {
		cur.History = append(cur.History, domain.UserTurn("hello"))
		cur.ID = "tampered"
		return cur, nil
	})
	require.NoError(t, err)
	require.Equal(t, s.ID, out.ID)
	require.Len(t, out.History, 1)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	require.Equal(t, out, got)
}

func TestUpdate_ErrorLeavesSessionUnchanged(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	s := r.Create()
	boom := errors.New("boom")

	out, err := r.Update(s.ID, func(cur domain.Session) (domain.Session, error) {
		cur.Complete = true
		return cur, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, out.Complete)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	require.False(t, got.Complete)
}

func TestUpdate_UnknownSession(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	_, err := r.Update("missing", func(cur domain.Session) (domain.Session, error) { return cur, nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_SerializesPerSession(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	s := r.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Update(s.ID, func(cur domain.Session) (domain.Session, error) {
				cur.History = append(cur.History, domain.UserTurn("x"))
				return cur, nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 50)
}

func TestSnapshotsDoNotShareHistory(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	s := r.Create()
	_, err := r.Update(s.ID, func(cur domain.Session) (domain.Session, error) {
		cur.History = append(cur.History, domain.UserTurn("original"))
		return cur, nil
	})
	require.NoError(t, err)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	got.History[0].Content = "changed"

	again, err := r.Get(s.ID)
	require.NoError(t, err)
	require.Equal(t, "original", again.History[0].Content)
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	r, clock := newTestRegistry(time.Hour)
	idle := r.Create()
	clock.Advance(50 * time.Minute)
	active := r.Create()
	clock.Advance(20 * time.Minute)

	require.Equal(t, 1, r.Sweep())
	require.Equal(t, 1, r.Len())

	_, err := r.Get(idle.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(active.ID)
	require.NoError(t, err)
}

func TestSweep_TouchKeepsSessionAlive(t *testing.T) {
	r, clock := newTestRegistry(time.Hour)
	s := r.Create()
	clock.Advance(59 * time.Minute)
	_, err := r.Get(s.ID)
	require.NoError(t, err)
	clock.Advance(59 * time.Minute)

	require.Zero(t, r.Sweep())
}

func TestSweep_DisabledWithoutTTL(t *testing.T) {
	r, clock := newTestRegistry(0)
	r.Create()
	clock.Advance(1000 * time.Hour)
	require.Zero(t, r.Sweep())
}

func TestDelete(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	s := r.Create()
	r.Delete(s.ID)
	r.Delete("missing")

	_, err := r.Get(s.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, r.Len())
}
