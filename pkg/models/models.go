package models

import "time"

// ListKind identifies which relationship list a collection run targets.
type ListKind string

const (
	ListFollowers ListKind = "followers"
	ListFollowing ListKind = "following"
)

// ActionKind identifies an audited engine action.
type ActionKind string

const (
	ActionLogin            ActionKind = "login"
	ActionLogout           ActionKind = "logout"
	ActionCollectFollowers ActionKind = "collect_followers"
	ActionCollectFollowing ActionKind = "collect_following"
	ActionUnfollow         ActionKind = "unfollow"
	ActionWhitelistAdd     ActionKind = "whitelist_add"
	ActionWhitelistRemove  ActionKind = "whitelist_remove"
)

// CollectKind maps a list kind to the action kind recorded for its collection run.
func CollectKind(kind ListKind) ActionKind {
	if kind == ListFollowers {
		return ActionCollectFollowers
	}
	return ActionCollectFollowing
}

// Outcome is the recorded result of a single action attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Account is the identity record for a platform user. Handle is the dedup
// key; the relationship flags are only ever set true by the collection pass
// that observed them (a following pass never touches FollowsMe and vice
// versa), so absence within one pass is not proof of falsity.
type Account struct {
	Handle        string    `json:"handle"`
	ExternalID    string    `json:"external_id,omitempty"`
	FullName      string    `json:"full_name,omitempty"`
	Verified      bool      `json:"verified"`
	FollowerCount int       `json:"follower_count"`
	FollowsMe     bool      `json:"follows_me"`
	IFollow       bool      `json:"i_follow"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// CollectionSnapshot is the result of one completed List Collector run.
// Complete is true only when the run reached a genuine end of list (end
// indicator or content growth stall); cap-hit and round-exceeded runs are
// lower bounds, not closed sets.
type CollectionSnapshot struct {
	ID          int64     `json:"id,omitempty"`
	Kind        ListKind  `json:"kind"`
	Target      string    `json:"target"`
	Accounts    []Account `json:"accounts"`
	Complete    bool      `json:"complete"`
	Rounds      int       `json:"rounds"`
	CollectedAt time.Time `json:"collected_at"`
}

// Handles returns the set of handles present in the snapshot.
func (s *CollectionSnapshot) Handles() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Accounts))
	for _, a := range s.Accounts {
		set[a.Handle] = struct{}{}
	}
	return set
}

// AllowListEntry is a protected handle excluded from candidate computation
// and action execution. Entries never expire.
type AllowListEntry struct {
	Handle  string    `json:"handle"`
	Reason  string    `json:"reason,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// ActionRecord is one append-only audit row per attempted action. It is the
// sole source of truth for quota accounting and is never mutated or deleted.
type ActionRecord struct {
	ID        int64          `json:"id,omitempty"`
	Kind      ActionKind     `json:"kind"`
	Target    string         `json:"target,omitempty"` // empty for session-level actions
	Outcome   Outcome        `json:"outcome"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActionQueueItem is one unit of work inside a batch. Ephemeral: the outcome
// lives in the batch result, not in persistent storage (the audit trail is
// written separately, one record per attempt).
type ActionQueueItem struct {
	Handle  string   `json:"handle"`
	Account *Account `json:"account,omitempty"` // snapshot at selection time
	Outcome Outcome  `json:"outcome,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Session is an opaque authenticated browsing context handle: the platform
// cookies captured at login, keyed by a generated session identifier.
type Session struct {
	ID        string    `json:"session_id"`
	Username  string    `json:"username"`
	Cookies   []Cookie  `json:"cookies"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Cookie is a single platform cookie. The engine never interprets values.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// QuotaStatus reports same-day usage for one action kind.
type QuotaStatus struct {
	Kind      ActionKind `json:"kind"`
	UsedToday int        `json:"used_today"`
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
}

// Stats is the aggregate view over stored accounts and today's activity.
type Stats struct {
	TotalAccounts  int `json:"total_accounts"`
	TotalFollowers int `json:"total_followers"`
	TotalFollowing int `json:"total_following"`
	NonFollowers   int `json:"non_followers"`
	TodayUnfollows int `json:"today_unfollows"`
	RemainingToday int `json:"remaining_today"`
	DailyLimit     int `json:"daily_limit"`
}
