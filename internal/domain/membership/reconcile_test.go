package membership

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestNewMembers(t *testing.T) {
	crm := NewSet("a@x.com", "b@x.com")
	recorded := NewSet("a@x.com")

	delta := NewMembers(crm, recorded)
	require.Equal(t, []string{"b@x.com"}, delta.Strings())
}

func TestUnsubscribed(t *testing.T) {
	previous := NewSet("a@x.com", "b@x.com", "c@x.com")
	current := NewSet("a@x.com")

	t.Run("Nothing Recorded Yet", func(t *testing.T) {
		delta := Unsubscribed(previous, current, NewSet())
		require.Equal(t, []string{"b@x.com", "c@x.com"}, delta.Strings())
	})

	t.Run("Already Recorded Addresses Are Skipped", func(t *testing.T) {
		delta := Unsubscribed(previous, current, NewSet("c@x.com"))
		require.Equal(t, []string{"b@x.com"}, delta.Strings())
	})

	t.Run("First Run Has No Previous List", func(t *testing.T) {
		require.True(t, Unsubscribed(NewSet(), current, NewSet()).IsEmpty())
	})
}

func TestAggregate(t *testing.T) {
	recorded := NewSet("a@x.com", "b@x.com")
	previous := NewSet("b@x.com", "c@x.com", "d@x.com")
	unsubscribed := NewSet("d@x.com", "a@x.com")

	candidate, changed := Aggregate(recorded, previous, unsubscribed, NewSet())
	require.True(t, changed)
	require.Equal(t, []string{"b@x.com", "c@x.com"}, candidate.Strings())

	_, changed = Aggregate(recorded, previous, unsubscribed, NewSet("c@x.com", "b@x.com"))
	require.False(t, changed)
}

func TestNewMembersProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("delta shares nothing with the recorded set", prop.ForAll(
		func(a, b []string) bool {
			recorded := NewSet(b...)
			for e := range NewMembers(NewSet(a...), recorded) {
				if recorded.Contains(e) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("reapplying after recording the delta is empty", prop.ForAll(
		func(a, b []string) bool {
			crm, recorded := NewSet(a...), NewSet(b...)
			delta := NewMembers(crm, recorded)
			return NewMembers(crm, recorded.Union(delta)).IsEmpty()
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

func TestAggregateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("iteration order never causes a spurious change", prop.ForAll(
		func(recorded, previous, unsubscribed []string, seed int64) bool {
			candidate, _ := Aggregate(NewSet(recorded...), NewSet(previous...), NewSet(unsubscribed...), NewSet())

			shuffled := candidate.Strings()
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			_, changed := Aggregate(NewSet(recorded...), NewSet(previous...), NewSet(unsubscribed...), NewSet(shuffled...))
			return !changed
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
		gen.Int64(),
	))

	properties.Property("result never contains an unsubscribed address", prop.ForAll(
		func(recorded, previous, unsubscribed []string) bool {
			unsub := NewSet(unsubscribed...)
			candidate, _ := Aggregate(NewSet(recorded...), NewSet(previous...), unsub, NewSet())
			return candidate.Difference(unsub).Equal(candidate)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
