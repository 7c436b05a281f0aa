package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"igmanager/pkg/models"
)

type allowSet map[string]bool

func (a allowSet) Contains(handle string) bool { return a[handle] }

func snapshot(kind models.ListKind, complete bool, handles ...string) *models.CollectionSnapshot {
	snap := &models.CollectionSnapshot{Kind: kind, Complete: complete}
	for _, h := range handles {
		a := models.Account{Handle: h}
		if kind == models.ListFollowers {
			a.FollowsMe = true
		} else {
			a.IFollow = true
		}
		snap.Accounts = append(snap.Accounts, a)
	}
	return snap
}

func TestCandidatesBasic(t *testing.T) {
	followers := snapshot(models.ListFollowers, true, "a", "b")
	following := snapshot(models.ListFollowing, true, "a", "b", "c", "d")

	res := Candidates(followers, following, allowSet{"d": true}, Filters{})

	require := []string{"c"}
	assert.Len(t, res.Candidates, 1)
	for i, h := range require {
		assert.Equal(t, h, res.Candidates[i].Handle)
	}
	assert.False(t, res.Provisional)
	assert.Equal(t, 2, res.TotalFollowers)
	assert.Equal(t, 4, res.TotalFollowing)
}

func TestCandidatesEveryoneFollowsBack(t *testing.T) {
	followers := snapshot(models.ListFollowers, true, "a", "b", "c")
	following := snapshot(models.ListFollowing, true, "a", "b")

	res := Candidates(followers, following, nil, Filters{})
	assert.Empty(t, res.Candidates)
}

func TestCandidatesProvisionalWhenTruncated(t *testing.T) {
	followers := snapshot(models.ListFollowers, false, "a")
	following := snapshot(models.ListFollowing, true, "a", "b")

	res := Candidates(followers, following, nil, Filters{})
	assert.True(t, res.Provisional)
	assert.Len(t, res.Candidates, 1)

	// Truncation on either side marks the result.
	res = Candidates(snapshot(models.ListFollowers, true, "a"),
		snapshot(models.ListFollowing, false, "a", "b"), nil, Filters{})
	assert.True(t, res.Provisional)
}

func TestCandidatesPreservesFollowingOrder(t *testing.T) {
	followers := snapshot(models.ListFollowers, true)
	following := snapshot(models.ListFollowing, true, "z", "m", "a")

	res := Candidates(followers, following, nil, Filters{})

	handles := make([]string, 0, len(res.Candidates))
	for _, a := range res.Candidates {
		handles = append(handles, a.Handle)
	}
	assert.Equal(t, []string{"z", "m", "a"}, handles)
}

func TestCandidatesSkipsNotFollowedEntries(t *testing.T) {
	// An entry in the following snapshot without the follow edge must not
	// become a candidate.
	following := snapshot(models.ListFollowing, true, "a")
	following.Accounts = append(following.Accounts, models.Account{Handle: "stray"})

	res := Candidates(snapshot(models.ListFollowers, true), following, nil, Filters{})
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, "a", res.Candidates[0].Handle)
}

func TestCandidatesFilters(t *testing.T) {
	followers := snapshot(models.ListFollowers, true)
	following := &models.CollectionSnapshot{
		Kind:     models.ListFollowing,
		Complete: true,
		Accounts: []models.Account{
			{Handle: "normal", IFollow: true},
			{Handle: "celebrity", IFollow: true, Verified: true, FollowerCount: 2_000_000},
			{Handle: "brand", IFollow: true, FollowerCount: 50_000},
		},
	}

	res := Candidates(followers, following, nil, Filters{ExcludeVerified: true, MaxFollowerCount: 10_000})
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, "normal", res.Candidates[0].Handle)

	// Without filters everyone qualifies.
	res = Candidates(followers, following, nil, Filters{})
	assert.Len(t, res.Candidates, 3)
}

func TestCandidatesIsPure(t *testing.T) {
	followers := snapshot(models.ListFollowers, true, "a")
	following := snapshot(models.ListFollowing, true, "a", "b")

	first := Candidates(followers, following, nil, Filters{})
	second := Candidates(followers, following, nil, Filters{})

	assert.Equal(t, first, second)
	assert.Len(t, followers.Accounts, 1, "inputs must not be mutated")
	assert.Len(t, following.Accounts, 2, "inputs must not be mutated")
}
