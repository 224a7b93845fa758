package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pact-proof-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory RecordStore.
type fakeStore struct {
	goals    []*models.Goal
	feed     []*models.CheckIn
	kudos    map[string]*models.Kudos // keyed by checkInID/userID
	crews    []*models.Crew
	members  []*models.CrewMember
	nextID   int
	listCall int

	failListGoals     error
	failListFeed      error
	failInsertGoal    error
	failInsertCheckIn error
	failInsertKudos   error
	failDeleteKudos   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{kudos: make(map[string]*models.Kudos)}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) ListGoals(ctx context.Context, ownerID string) ([]*models.Goal, error) {
	if f.failListGoals != nil {
		return nil, f.failListGoals
	}
	f.listCall++
	out := make([]*models.Goal, len(f.goals))
	copy(out, f.goals)
	return out, nil
}

func (f *fakeStore) InsertGoal(ctx context.Context, ownerID string, input models.CreateGoalInput) (*models.Goal, error) {
	if f.failInsertGoal != nil {
		return nil, f.failInsertGoal
	}
	goal := &models.Goal{
		ID:        f.id("goal"),
		OwnerID:   ownerID,
		Title:     input.Title,
		Category:  input.Category,
		Cadence:   input.Cadence,
		CreatedAt: time.Now(),
	}
	f.goals = append([]*models.Goal{goal}, f.goals...)
	return goal, nil
}

func (f *fakeStore) UpdateGoal(ctx context.Context, id string, upd models.GoalUpdate) (*models.Goal, error) {
	for _, g := range f.goals {
		if g.ID == id {
			if upd.Title != nil {
				g.Title = *upd.Title
			}
			return g, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) DeleteGoal(ctx context.Context, id string) error {
	for i, g := range f.goals {
		if g.ID == id {
			f.goals = append(f.goals[:i], f.goals[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeStore) ListFeed(ctx context.Context, limit int) ([]*models.CheckIn, error) {
	if f.failListFeed != nil {
		return nil, f.failListFeed
	}
	out := make([]*models.CheckIn, 0, limit)
	for _, ci := range f.feed {
		if len(out) == limit {
			break
		}
		out = append(out, ci)
	}
	return out, nil
}

func (f *fakeStore) ListCheckIns(ctx context.Context, goalID string, limit int) ([]*models.CheckIn, error) {
	out := make([]*models.CheckIn, 0, limit)
	for _, ci := range f.feed {
		if ci.GoalID == goalID && len(out) < limit {
			out = append(out, ci)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertCheckIn(ctx context.Context, userID string, input models.CreateCheckInInput) (*models.CheckIn, error) {
	if f.failInsertCheckIn != nil {
		return nil, f.failInsertCheckIn
	}
	ci := &models.CheckIn{
		ID:              f.id("ci"),
		GoalID:          input.GoalID,
		UserID:          userID,
		PhotoURL:        input.PhotoURL,
		SelfieURL:       input.SelfieURL,
		Note:            input.Note,
		Verdict:         &input.Verdict,
		ConfidenceScore: &input.ConfidenceScore,
		IsFake:          input.IsFake,
		CreatedAt:       time.Now(),
	}
	f.feed = append([]*models.CheckIn{ci}, f.feed...)
	return ci, nil
}

func (f *fakeStore) FindKudos(ctx context.Context, checkInID, userID string) (*models.Kudos, error) {
	if k, ok := f.kudos[checkInID+"/"+userID]; ok {
		return k, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) InsertKudos(ctx context.Context, checkInID, userID string) (*models.Kudos, error) {
	if f.failInsertKudos != nil {
		return nil, f.failInsertKudos
	}
	k := &models.Kudos{
		ID:        f.id("kudos"),
		CheckInID: checkInID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	f.kudos[checkInID+"/"+userID] = k
	return k, nil
}

func (f *fakeStore) DeleteKudos(ctx context.Context, id string) error {
	if f.failDeleteKudos != nil {
		return f.failDeleteKudos
	}
	for key, k := range f.kudos {
		if k.ID == id {
			delete(f.kudos, key)
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeStore) ListCrews(ctx context.Context, userID string) ([]*models.Crew, []*models.CrewMember, error) {
	return f.crews, f.members, nil
}

func (f *fakeStore) InsertCrew(ctx context.Context, name, userID string) (*models.Crew, error) {
	crew := &models.Crew{ID: f.id("crew"), Name: name, InviteCode: "abc123", CreatedBy: userID}
	f.crews = append(f.crews, crew)
	f.members = append(f.members, &models.CrewMember{CrewID: crew.ID, UserID: userID, Role: models.CrewRoleAdmin})
	return crew, nil
}

func (f *fakeStore) JoinCrew(ctx context.Context, inviteCode, userID string) (*models.Crew, error) {
	for _, c := range f.crews {
		if c.InviteCode == inviteCode {
			f.members = append(f.members, &models.CrewMember{CrewID: c.ID, UserID: userID, Role: models.CrewRoleMember})
			return c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) LeaveCrew(ctx context.Context, crewID, userID string) error {
	for i, m := range f.members {
		if m.CrewID == crewID && m.UserID == userID {
			f.members = append(f.members[:i], f.members[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func seedCheckIn(f *fakeStore, goalID string) *models.CheckIn {
	ci := &models.CheckIn{
		ID:        f.id("ci"),
		GoalID:    goalID,
		UserID:    "other-user",
		Kudos:     []models.Kudos{},
		CreatedAt: time.Now(),
	}
	f.feed = append([]*models.CheckIn{ci}, f.feed...)
	return ci
}

func TestCreateGoalPrepends(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)

	first, err := sess.CreateGoal(ctx, models.CreateGoalInput{Title: "Run 5k", Category: models.CategoryFitness, Cadence: models.CadenceDaily})
	require.NoError(t, err)
	second, err := sess.CreateGoal(ctx, models.CreateGoalInput{Title: "Read daily", Category: models.CategoryLife, Cadence: models.CadenceDaily})
	require.NoError(t, err)

	goals := sess.Goals()
	require.Len(t, goals, 2)
	assert.Equal(t, second.ID, goals[0].ID, "newest goal comes first")
	assert.Equal(t, first.ID, goals[1].ID)
	assert.Equal(t, "user-1", goals[0].OwnerID)
}

func TestCreateGoalStoreFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	_, err := sess.CreateGoal(ctx, models.CreateGoalInput{Title: "Run 5k"})
	require.NoError(t, err)

	store.failInsertGoal = errors.New("connection reset")
	_, err = sess.CreateGoal(ctx, models.CreateGoalInput{Title: "Read daily"})
	require.Error(t, err)
	assert.Len(t, sess.Goals(), 1, "a failed insert must not appear in the cache")
}

func TestMutationsRequireCurrentUser(t *testing.T) {
	ctx := context.Background()
	sess := New("", newFakeStore(), 0)

	_, err := sess.CreateGoal(ctx, models.CreateGoalInput{Title: "Run 5k"})
	assert.ErrorIs(t, err, models.ErrNoCurrentUser)
	_, err = sess.CreateCheckIn(ctx, models.CreateCheckInInput{GoalID: "goal-1"})
	assert.ErrorIs(t, err, models.ErrNoCurrentUser)
	_, err = sess.ToggleKudos(ctx, "ci-1")
	assert.ErrorIs(t, err, models.ErrNoCurrentUser)
	_, err = sess.CreateCrew(ctx, "runners")
	assert.ErrorIs(t, err, models.ErrNoCurrentUser)
}

func TestCreateCheckInPrependsAndRefreshesGoals(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)

	goal, err := sess.CreateGoal(ctx, models.CreateGoalInput{Title: "Run 5k", Cadence: models.CadenceDaily})
	require.NoError(t, err)
	seedCheckIn(store, goal.ID)
	require.NoError(t, sess.FetchFeed(ctx))

	ci, err := sess.CreateCheckIn(ctx, models.CreateCheckInInput{GoalID: goal.ID, Verdict: "Looks legit", ConfidenceScore: 82})
	require.NoError(t, err)

	feed := sess.Feed()
	require.Len(t, feed, 2)
	assert.Equal(t, ci.ID, feed[0].ID, "new check-in is prepended")
	assert.Equal(t, 0, feed[0].KudosCount)
	assert.NotNil(t, feed[0].Kudos)
	assert.Empty(t, feed[0].Kudos, "fresh check-in starts with an empty reaction aggregate")

	// Goal streaks are recomputed by the store; the cache must pick them up.
	assert.Equal(t, 1, store.listCall, "goals are re-fetched after a check-in")
}

func TestCreateCheckInFailureLeavesFeedUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	seedCheckIn(store, "goal-1")
	require.NoError(t, sess.FetchFeed(ctx))

	store.failInsertCheckIn = errors.New("constraint violation")
	_, err := sess.CreateCheckIn(ctx, models.CreateCheckInInput{GoalID: "goal-1"})
	require.Error(t, err)

	feed := sess.Feed()
	assert.Len(t, feed, 1, "no partial entry after a persistence failure")
}

func TestCreateCheckInCapsFeedWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 2)

	for i := 0; i < 3; i++ {
		_, err := sess.CreateCheckIn(ctx, models.CreateCheckInInput{GoalID: "goal-1"})
		require.NoError(t, err)
	}
	assert.Len(t, sess.Feed(), 2, "cached feed stays within the window")
}

func TestFetchFeedFailureKeepsPriorData(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	seedCheckIn(store, "goal-1")
	require.NoError(t, sess.FetchFeed(ctx))

	store.failListFeed = errors.New("connection refused")
	require.Error(t, sess.FetchFeed(ctx))
	assert.Len(t, sess.Feed(), 1, "a failed refresh keeps the previous collection")
}

func TestFetchFeedInvalidatesStaleEntries(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	stale := seedCheckIn(store, "goal-1")
	require.NoError(t, sess.FetchFeed(ctx))

	// The record disappears server-side; a refresh must drop it.
	store.feed = nil
	require.NoError(t, sess.FetchFeed(ctx))
	for _, ci := range sess.Feed() {
		assert.NotEqual(t, stale.ID, ci.ID)
	}
	assert.Empty(t, sess.Feed())
}

func TestToggleKudosRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	ci := seedCheckIn(store, "goal-1")
	require.NoError(t, sess.FetchFeed(ctx))

	// Odd number of toggles leaves exactly one kudos.
	for i := 0; i < 3; i++ {
		_, err := sess.ToggleKudos(ctx, ci.ID)
		require.NoError(t, err)
	}
	feed := sess.Feed()
	assert.Equal(t, 1, feed[0].KudosCount)
	require.Len(t, feed[0].Kudos, 1)
	assert.Equal(t, "user-1", feed[0].Kudos[0].UserID)
	_, err := store.FindKudos(ctx, ci.ID, "user-1")
	assert.NoError(t, err, "kudos persisted")

	// One more toggle returns to the original state.
	exists, err := sess.ToggleKudos(ctx, ci.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	feed = sess.Feed()
	assert.Equal(t, 0, feed[0].KudosCount)
	assert.Empty(t, feed[0].Kudos)
	_, err = store.FindKudos(ctx, ci.ID, "user-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestToggleKudosCountNeverNegative(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	ci := seedCheckIn(store, "goal-1")
	// Persisted kudos exists but the cached count is already zero.
	_, err := store.InsertKudos(ctx, ci.ID, "user-1")
	require.NoError(t, err)
	require.NoError(t, sess.FetchFeed(ctx))

	exists, err := sess.ToggleKudos(ctx, ci.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, sess.Feed()[0].KudosCount, "count is floored at zero")
}

func TestToggleKudosStoreFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	ci := seedCheckIn(store, "goal-1")
	require.NoError(t, sess.FetchFeed(ctx))

	store.failInsertKudos = errors.New("connection reset")
	_, err := sess.ToggleKudos(ctx, ci.ID)
	require.Error(t, err)
	feed := sess.Feed()
	assert.Equal(t, 0, feed[0].KudosCount)
	assert.Empty(t, feed[0].Kudos)
}

func TestToggleKudosLeavesSnapshotsUntouched(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	ci := seedCheckIn(store, "goal-1")
	require.NoError(t, sess.FetchFeed(ctx))

	before := sess.Feed()
	_, err := sess.ToggleKudos(ctx, ci.ID)
	require.NoError(t, err)

	// The snapshot taken before the toggle still shows the old aggregate.
	assert.Equal(t, 0, before[0].KudosCount)
	assert.Empty(t, before[0].Kudos)

	after := sess.Feed()
	assert.Equal(t, 1, after[0].KudosCount)
	require.Len(t, after[0].Kudos, 1)

	// Undoing the kudos must not write into the first snapshot's slice either.
	_, err = sess.ToggleKudos(ctx, ci.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after[0].KudosCount)
	assert.Len(t, after[0].Kudos, 1)
}

func TestToggleKudosConcurrentWithFeedReads(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	ci := seedCheckIn(store, "goal-1")
	require.NoError(t, sess.FetchFeed(ctx))

	stop := make(chan struct{})
	var torn int32
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, got := range sess.Feed() {
					if got.KudosCount != len(got.Kudos) {
						atomic.StoreInt32(&torn, 1)
					}
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_, err := sess.ToggleKudos(ctx, ci.ID)
		require.NoError(t, err)
	}
	close(stop)
	readers.Wait()

	assert.Zero(t, atomic.LoadInt32(&torn), "every feed snapshot must show count == len(kudos)")
}

func TestDeleteGoalRemovesFromCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)
	goal, err := sess.CreateGoal(ctx, models.CreateGoalInput{Title: "Run 5k"})
	require.NoError(t, err)

	require.NoError(t, sess.DeleteGoal(ctx, goal.ID))
	assert.Empty(t, sess.Goals())
	assert.Empty(t, store.goals)
}

func TestCrewLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	sess := New("user-1", store, 0)

	crew, err := sess.CreateCrew(ctx, "runners")
	require.NoError(t, err)
	crews, _ := sess.Crews()
	require.Len(t, crews, 1)

	other := New("user-2", store, 0)
	joined, err := other.JoinCrew(ctx, crew.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, crew.ID, joined.ID)
	_, members := other.Crews()
	assert.Len(t, members, 2, "join refreshes the cached memberships")

	require.NoError(t, other.LeaveCrew(ctx, crew.ID))
	crews, _ = other.Crews()
	assert.Empty(t, crews)
}

func TestManagerReusesSessions(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, 0)
	defer mgr.Close()

	a := mgr.Session("user-1")
	b := mgr.Session("user-1")
	assert.Same(t, a, b, "one session per user")

	mgr.Drop("user-1")
	c := mgr.Session("user-1")
	assert.NotSame(t, a, c)
}
