package hazard

import "context"

// NoticeKind classifies user-facing notices.
type NoticeKind int

const (
	NoticeCreated        NoticeKind = iota // A hazard was created from a token
	NoticeRemoved                          // A hazard was dropped from the registry
	NoticeRegionsMarked                    // Regions were marked flammable
	NoticeRegionsCleared                   // Regions were unmarked
	NoticeSpread                           // A spread step committed
	NoticeSpreadFailed                     // A spread step failed
	NoticeRejected                         // A request failed its preconditions
)

// String returns the journal category for the kind.
func (k NoticeKind) String() string {
	switch k {
	case NoticeCreated:
		return "created"
	case NoticeRemoved:
		return "removed"
	case NoticeRegionsMarked:
		return "regions_marked"
	case NoticeRegionsCleared:
		return "regions_cleared"
	case NoticeSpread:
		return "spread"
	case NoticeSpreadFailed:
		return "spread_failed"
	case NoticeRejected:
		return "rejected"
	}
	return "unknown"
}

// Notice is a status report for whoever is watching the table.
type Notice struct {
	Kind       NoticeKind
	HazardID   string
	HazardName string
	Count      int
	Err        error

	// Turn that drove the step, or 0 outside a turn.
	Turn uint64
}

type turnKey struct{}

// WithTurn returns a context that stamps spread notices with turn.
func WithTurn(ctx context.Context, turn uint64) context.Context {
	return context.WithValue(ctx, turnKey{}, turn)
}

func turnOf(ctx context.Context) uint64 {
	turn, _ := ctx.Value(turnKey{}).(uint64)
	return turn
}

// Notifier receives notices. Implementations must not block for long;
// they are called on the spread path.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

type discard struct{}

func (discard) Notify(Notice) {}
