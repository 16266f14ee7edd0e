package activity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindRanks(t *testing.T) {
	assert.Less(t, KindMine.ClaimRank(), KindSteal.ClaimRank())
	assert.Less(t, KindSteal.ClaimRank(), KindLock.ClaimRank())
	assert.Zero(t, KindBid.ClaimRank())

	assert.Equal(t, 1, KindLock.ServeRank())
	assert.Equal(t, 2, KindSteal.ServeRank())
	assert.Equal(t, 3, KindMine.ServeRank())
	assert.Equal(t, 4, KindBid.ServeRank())

	assert.True(t, KindLock.IsClaim())
	assert.False(t, KindBid.IsClaim())
	assert.False(t, Kind("buy").Valid())
}

func TestSortForService(t *testing.T) {
	listingID := uuid.New()
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	entry := func(user string, kind Kind, amount int64, offset time.Duration) *Entry {
		return NewEntry(listingID, user, user, kind, decimal.NewFromInt(amount), base.Add(offset))
	}

	t.Run("rank first", func(t *testing.T) {
		in := []*Entry{
			entry("A", KindBid, 100, 0),
			entry("B", KindMine, 150, time.Second),
			entry("C", KindSteal, 200, 2*time.Second),
		}
		out := SortForService(in)
		require.Len(t, out, 3)
		assert.Equal(t, []string{"C", "B", "A"}, []string{out[0].UserID, out[1].UserID, out[2].UserID})
		assert.Equal(t, "A", in[0].UserID, "input must not be reordered")
	})

	t.Run("higher amount then earlier", func(t *testing.T) {
		in := []*Entry{
			entry("late", KindBid, 120, 3*time.Second),
			entry("low", KindBid, 110, 0),
			entry("early", KindBid, 120, time.Second),
		}
		out := SortForService(in)
		assert.Equal(t, "early", out[0].UserID)
		assert.Equal(t, "late", out[1].UserID)
		assert.Equal(t, "low", out[2].UserID)
	})
}

func TestParticipants(t *testing.T) {
	listingID := uuid.New()
	now := time.Now()
	entries := []*Entry{
		NewEntry(listingID, "A", "a", KindMine, decimal.NewFromInt(1), now),
		NewEntry(listingID, "B", "b", KindMine, decimal.NewFromInt(1), now),
		NewEntry(listingID, "A", "a", KindSteal, decimal.NewFromInt(2), now),
		NewEntry(listingID, "C", "c", KindBid, decimal.NewFromInt(3), now),
	}
	assert.Equal(t, []string{"A", "B", "C"}, Participants(entries))
	assert.Equal(t, []string{"A", "C"}, Participants(entries, "B", "S"))
	assert.Equal(t, 2, StrongestClaim(entries, "A"))
	assert.Equal(t, 0, StrongestClaim(entries, "C"))
	assert.True(t, HasLogged(entries, "B", KindMine))
	assert.False(t, HasLogged(entries, "B", KindSteal))
}
