package reconcile

import (
	"igmanager/pkg/models"
)

// AllowChecker answers whether a handle is protected.
type AllowChecker interface {
	Contains(handle string) bool
}

// Filters narrows the candidate set beyond the core reconciliation rule.
type Filters struct {
	// ExcludeVerified drops verified accounts from the candidates.
	ExcludeVerified bool
	// MaxFollowerCount drops accounts at or above this follower count when
	// positive. Large accounts are usually followed deliberately.
	MaxFollowerCount int
}

// Result is one reconciliation output. Provisional is true when either input
// snapshot was capped or truncated: the candidate set is then computed from
// partial data and is a lower-confidence answer, passed through for the
// caller to surface.
type Result struct {
	Candidates  []models.Account
	Provisional bool
	// TotalFollowers and TotalFollowing are the input snapshot sizes.
	TotalFollowers int
	TotalFollowing int
}

// Candidates computes the non-follower set: accounts present in the
// following snapshot, absent from the followers snapshot, and not protected
// by the allow-list. Pure function of its inputs; it holds no state and must
// be recomputed, never patched, whenever any input changes.
func Candidates(followers, following *models.CollectionSnapshot, allow AllowChecker, filters Filters) Result {
	res := Result{
		Provisional:    !followers.Complete || !following.Complete,
		TotalFollowers: len(followers.Accounts),
		TotalFollowing: len(following.Accounts),
	}

	followerSet := followers.Handles()

	for _, a := range following.Accounts {
		if !a.IFollow {
			continue
		}
		if _, ok := followerSet[a.Handle]; ok {
			continue
		}
		if allow != nil && allow.Contains(a.Handle) {
			continue
		}
		if filters.ExcludeVerified && a.Verified {
			continue
		}
		if filters.MaxFollowerCount > 0 && a.FollowerCount >= filters.MaxFollowerCount {
			continue
		}
		res.Candidates = append(res.Candidates, a)
	}

	return res
}
