package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoncity/chat-app/internal/store"
)

// fakeStore is an in-memory Store for exercising the matchmaking loop.
type fakeStore struct {
	users      map[string]*store.User
	requests   map[string]*store.MatchRequest // by user id, one pending per user
	blocks     map[[2]string]bool
	goneOnce   map[string]bool // request ids that vanish on first claim
	claims     []string        // request ids claimed, in order
	claimErr   error           // terminal error injected into ClaimMatch
	candidates []store.Candidate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*store.User),
		requests: make(map[string]*store.MatchRequest),
		blocks:   make(map[[2]string]bool),
		goneOnce: make(map[string]bool),
	}
}

func (f *fakeStore) addUser(id, city string, age int, gender string) {
	group, _ := store.AgeGroupFor(age)
	f.users[id] = &store.User{ID: id, City: city, Age: age, AgeGroup: group, Gender: gender}
}

func (f *fakeStore) addRequest(reqID, userID string, minAge, maxAge int, pref string) {
	u := f.users[userID]
	f.requests[userID] = &store.MatchRequest{
		ID: reqID, UserID: userID, City: u.City, AgeGroup: u.AgeGroup,
		MinAge: minAge, MaxAge: maxAge, PreferredGender: pref,
	}
	f.candidates = append(f.candidates, store.Candidate{
		RequestID: reqID, UserID: userID, MinAge: minAge, MaxAge: maxAge,
		PreferredGender: pref, Age: u.Age, Gender: u.Gender,
	})
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*store.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) LatestMatchRequest(_ context.Context, userID string) (*store.MatchRequest, error) {
	return f.requests[userID], nil
}

func (f *fakeStore) ListCandidates(_ context.Context, city, ageGroup, exclude string, limit int) ([]store.Candidate, error) {
	var out []store.Candidate
	for _, c := range f.candidates {
		u := f.users[c.UserID]
		if u == nil || c.UserID == exclude || u.City != city || u.AgeGroup != ageGroup {
			continue
		}
		if _, pending := f.requests[c.UserID]; !pending {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) BlockExists(_ context.Context, a, b string) (bool, error) {
	return f.blocks[[2]string{a, b}] || f.blocks[[2]string{b, a}], nil
}

func (f *fakeStore) ClaimMatch(_ context.Context, chatID, requesterID, partnerID, partnerRequestID string) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	if f.goneOnce[partnerRequestID] {
		delete(f.goneOnce, partnerRequestID)
		delete(f.requests, partnerID)
		return store.ErrRequestGone
	}
	if req := f.requests[partnerID]; req == nil || req.ID != partnerRequestID {
		return store.ErrRequestGone
	}
	f.claims = append(f.claims, partnerRequestID)
	delete(f.requests, requesterID)
	delete(f.requests, partnerID)
	return nil
}

func TestTryMatchFor_NotRegistered(t *testing.T) {
	f := newFakeStore()
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "ghost")
	assert.Nil(t, match)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestTryMatchFor_NoPendingRequest(t *testing.T) {
	f := newFakeStore()
	f.addUser("a", "Lagos", 16, "female")
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestTryMatchFor_NoCandidates(t *testing.T) {
	f := newFakeStore()
	f.addUser("a", "Lagos", 16, "female")
	f.addRequest("req-a", "a", 15, 17, "any")
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestTryMatchFor_MutualAcceptance(t *testing.T) {
	f := newFakeStore()
	f.addUser("b", "Lagos", 16, "male")
	f.addRequest("req-b", "b", 15, 17, "any")
	f.addUser("a", "Lagos", 16, "female")
	f.addRequest("req-a", "a", 15, 17, "any")
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "b", match.PartnerID)
	assert.NotEmpty(t, match.ChatID)

	// Both pending requests are consumed by the claim.
	assert.Nil(t, f.requests["a"])
	assert.Nil(t, f.requests["b"])
}

func TestTryMatchFor_OneSidedAcceptanceRejected(t *testing.T) {
	f := newFakeStore()
	// b only wants 17-year-olds; a is 15. a accepts b, b does not accept a.
	f.addUser("b", "Lagos", 16, "male")
	f.addRequest("req-b", "b", 17, 17, "any")
	f.addUser("a", "Lagos", 15, "female")
	f.addRequest("req-a", "a", 15, 17, "any")
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestTryMatchFor_GenderPreference(t *testing.T) {
	f := newFakeStore()
	f.addUser("b", "Lagos", 20, "male")
	f.addRequest("req-b", "b", 18, 30, "female")
	f.addUser("c", "Lagos", 21, "female")
	f.addRequest("req-c", "c", 18, 30, "any")
	f.addUser("a", "Lagos", 22, "female")
	f.addRequest("req-a", "a", 18, 30, "female")
	m := New(f)

	// a wants female: b (male) is skipped despite being older in the queue,
	// c matches mutually.
	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "c", match.PartnerID)
}

func TestTryMatchFor_BlockSuppressesBothDirections(t *testing.T) {
	f := newFakeStore()
	f.addUser("b", "Lagos", 16, "male")
	f.addRequest("req-b", "b", 15, 17, "any")
	f.addUser("a", "Lagos", 16, "female")
	f.addRequest("req-a", "a", 15, 17, "any")
	f.blocks[[2]string{"b", "a"}] = true // b blocked a; a's attempt must skip b
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestTryMatchFor_FIFOFairness(t *testing.T) {
	f := newFakeStore()
	// Candidates were enqueued b first, then c; b wins.
	f.addUser("b", "Lagos", 16, "male")
	f.addRequest("req-b", "b", 15, 17, "any")
	f.addUser("c", "Lagos", 16, "male")
	f.addRequest("req-c", "c", 15, 17, "any")
	f.addUser("a", "Lagos", 16, "female")
	f.addRequest("req-a", "a", 15, 17, "any")
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "b", match.PartnerID)
}

func TestTryMatchFor_RaceMovesToNextCandidate(t *testing.T) {
	f := newFakeStore()
	f.addUser("b", "Lagos", 16, "male")
	f.addRequest("req-b", "b", 15, 17, "any")
	f.addUser("c", "Lagos", 16, "male")
	f.addRequest("req-c", "c", 15, 17, "any")
	f.addUser("a", "Lagos", 16, "female")
	f.addRequest("req-a", "a", 15, 17, "any")
	f.goneOnce["req-b"] = true // b gets claimed concurrently mid-attempt
	m := New(f)

	match, err := m.TryMatchFor(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "c", match.PartnerID)
	assert.Equal(t, []string{"req-c"}, f.claims, "the vanished candidate must never be claimed")
}

func TestTryMatchFor_TerminalClaimErrorSurfaces(t *testing.T) {
	f := newFakeStore()
	f.addUser("b", "Lagos", 16, "male")
	f.addRequest("req-b", "b", 15, 17, "any")
	f.addUser("a", "Lagos", 16, "female")
	f.addRequest("req-a", "a", 15, 17, "any")
	f.claimErr = errors.New("connection reset")
	m := New(f)

	// A broken transaction layer is not a "request gone" race: it aborts.
	match, err := m.TryMatchFor(context.Background(), "a")
	assert.Nil(t, match)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrRequestGone)
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		name        string
		min, max    int
		pref        string
		otherAge    int
		otherGender string
		want        bool
	}{
		{"in range any gender", 15, 17, "any", 16, "male", true},
		{"below range", 16, 17, "any", 15, "male", false},
		{"above range", 15, 16, "any", 17, "male", false},
		{"gender match", 18, 30, "female", 25, "female", true},
		{"gender mismatch", 18, 30, "female", 25, "male", false},
		{"range edge low", 15, 17, "any", 15, "male", true},
		{"range edge high", 15, 17, "any", 17, "male", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := accepts(tt.min, tt.max, tt.pref, tt.otherAge, tt.otherGender)
			assert.Equal(t, tt.want, got)
		})
	}
}
