package activity

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the action recorded by a ledger entry.
type Kind string

const (
	KindMine  Kind = "mine"
	KindSteal Kind = "steal"
	KindLock  Kind = "lock"
	KindBid   Kind = "bid"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMine, KindSteal, KindLock, KindBid:
		return true
	}
	return false
}

// IsClaim reports whether k is one of the one-shot claim actions.
func (k Kind) IsClaim() bool {
	return k.ClaimRank() > 0
}

// ClaimRank is the strength of a claim action. Higher is stronger.
// Bids are not part of the claim hierarchy and rank 0.
func (k Kind) ClaimRank() int {
	switch k {
	case KindMine:
		return 1
	case KindSteal:
		return 2
	case KindLock:
		return 3
	}
	return 0
}

// ServeRank is the order in which claimants are offered the right to buy.
// Lower is served first.
func (k Kind) ServeRank() int {
	switch k {
	case KindLock:
		return 1
	case KindSteal:
		return 2
	case KindMine:
		return 3
	case KindBid:
		return 4
	}
	return 99
}

// Entry is an immutable ledger row. Entries are never updated or deleted.
type Entry struct {
	ID        int64           `json:"id"`
	EntryID   uuid.UUID       `json:"entryId"`
	ListingID uuid.UUID       `json:"listingId"`
	UserID    string          `json:"userId"`
	UserName  string          `json:"userName"`
	Kind      Kind            `json:"actionKind"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"timestamp"`
}

// NewEntry creates a ledger entry stamped at now.
func NewEntry(listingID uuid.UUID, userID, userName string, kind Kind, amount decimal.Decimal, now time.Time) *Entry {
	return &Entry{
		EntryID:   uuid.New(),
		ListingID: listingID,
		UserID:    userID,
		UserName:  userName,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: now.UTC(),
	}
}

// SortForService returns a copy of entries ordered by ServeRank ascending,
// then higher amount, then earlier timestamp.
func SortForService(entries []*Entry) []*Entry {
	out := make([]*Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.Kind.ServeRank(), b.Kind.ServeRank(); ra != rb {
			return ra < rb
		}
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out
}

// Participants returns the distinct user ids found in entries, in first-seen
// order, skipping any id listed in exclude.
func Participants(entries []*Entry, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	var out []string
	for _, e := range entries {
		if _, ok := skip[e.UserID]; ok {
			continue
		}
		skip[e.UserID] = struct{}{}
		out = append(out, e.UserID)
	}
	return out
}

// StrongestClaim returns the highest claim rank userID has logged, or 0.
func StrongestClaim(entries []*Entry, userID string) int {
	best := 0
	for _, e := range entries {
		if e.UserID == userID && e.Kind.ClaimRank() > best {
			best = e.Kind.ClaimRank()
		}
	}
	return best
}

// HasLogged reports whether userID already has an entry of kind.
func HasLogged(entries []*Entry, userID string, kind Kind) bool {
	for _, e := range entries {
		if e.UserID == userID && e.Kind == kind {
			return true
		}
	}
	return false
}
