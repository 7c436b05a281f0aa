package surface

import (
	"context"
	"errors"

	"igmanager/pkg/models"
)

// ErrStructureNotFound is returned when no extraction strategy recognizes
// the rendered content. Callers wrap it into a SurfaceNotFound engine error
// after capturing a diagnostic artifact.
var ErrStructureNotFound = errors.New("list entry structure not found in rendered content")

// ListSurface is one rendering of a relationship list for a target account.
// The collector drives it to completion: extract, advance, wait, check.
// Implementations own exactly one underlying browsing context and are not
// safe for concurrent use.
type ListSurface interface {
	// Open navigates to the relationship list. Returns SessionInvalid when
	// the authenticated context is no longer usable.
	Open(ctx context.Context) error

	// Entries returns every currently-rendered account, in render order.
	// Returns ErrStructureNotFound (possibly wrapped) when no extraction
	// strategy matches the rendered content.
	Entries(ctx context.Context) ([]models.Account, error)

	// Advance triggers further content to render: the scroll-to-bottom
	// equivalent.
	Advance(ctx context.Context) error

	// ContentHeight is the current rendered content height. The collector
	// treats two consecutive rounds without growth as end of list.
	ContentHeight() int

	// EndOfList reports whether an explicit end-of-list indicator was
	// observed.
	EndOfList() bool

	// Capture returns a point-in-time capture of the rendered content for
	// diagnostics.
	Capture() []byte
}

// Actor executes destructive platform actions against the session's
// browsing context.
type Actor interface {
	// Unfollow removes the session user's follow edge to handle. A
	// SessionInvalid error aborts the whole batch; anything else is a
	// transient per-action failure.
	Unfollow(ctx context.Context, handle string) error
}

// Provider opens surfaces bound to an authenticated session. The engine
// treats the session as opaque; resolving it into a usable context is the
// provider's job.
type Provider interface {
	ListSurface(sess *models.Session, target string, kind models.ListKind) ListSurface
	Actor(sess *models.Session) Actor
	// Validate checks that the session's browsing context is still usable.
	Validate(ctx context.Context, sess *models.Session) error
}
