package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_JoinAndList(t *testing.T) {
	r := NewRegistry()

	snapshot := r.Join("r1", "id-a", "alice")
	require.Len(t, snapshot, 1)
	assert.Equal(t, MemberSnapshot{ID: "id-a", DisplayName: "alice"}, snapshot[0])

	snapshot = r.Join("r1", "id-b", "bob")
	require.Len(t, snapshot, 2)
	assert.ElementsMatch(t, []MemberSnapshot{
		{ID: "id-a", DisplayName: "alice"},
		{ID: "id-b", DisplayName: "bob"},
	}, snapshot)

	assert.Equal(t, snapshot, r.ListMembers("r1"))
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Join("r1", "id-a", "alice")
	snapshot := r.Join("r1", "id-a", "alice")

	require.Len(t, snapshot, 1, "joining twice must not duplicate the member")
}

func TestRegistry_JoinSecondRoomMovesMember(t *testing.T) {
	r := NewRegistry()

	r.Join("r1", "id-a", "alice")
	r.Join("r2", "id-a", "alice")

	assert.Empty(t, r.ListMembers("r1"))
	require.Len(t, r.ListMembers("r2"), 1)
}

func TestRegistry_Leave(t *testing.T) {
	r := NewRegistry()

	r.Join("r1", "id-a", "alice")
	r.Join("r1", "id-b", "bob")

	roomName, ok := r.Leave("id-a")
	require.True(t, ok)
	assert.Equal(t, "r1", roomName)

	members := r.ListMembers("r1")
	require.Len(t, members, 1)
	assert.Equal(t, "id-b", members[0].ID)

	// Leaving again is a no-op.
	_, ok = r.Leave("id-a")
	assert.False(t, ok)
}

func TestRegistry_UnknownRoomIsEmpty(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.ListMembers("nowhere"))
}

// TestRegistry_JoinLeaveSequences checks that after an arbitrary sequence of
// joins and leaves the registry reflects exactly the members who joined and
// have not since left.
func TestRegistry_JoinLeaveSequences(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 10; i++ {
		r.Join("r1", fmt.Sprintf("id-%d", i), fmt.Sprintf("user-%d", i))
	}
	for i := 0; i < 10; i += 2 {
		r.Leave(fmt.Sprintf("id-%d", i))
	}

	members := r.ListMembers("r1")
	require.Len(t, members, 5)
	for _, m := range members {
		var n int
		_, err := fmt.Sscanf(m.ID, "id-%d", &n)
		require.NoError(t, err)
		assert.Equal(t, 1, n%2, "only odd-numbered members should remain")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			r.Join("r1", id, "user")
			r.ListMembers("r1")
			if i%2 == 0 {
				r.Leave(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.ListMembers("r1"), 25)
}
