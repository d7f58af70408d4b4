package planner

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRolesAndColors(t *testing.T, h *harness) {
	t.Helper()
	stops := h.m.Stops()
	var first, last int
	for i, s := range stops {
		want := RoleAt(i, len(stops))
		assert.Equal(t, want, s.Role, "role of stop %d", i)
		assert.Equal(t, ColorFor(want), s.Color, "color of stop %d", i)
		switch s.Role {
		case RoleFirst:
			first++
		case RoleLast:
			last++
		}
	}
	assert.LessOrEqual(t, first, 1)
	assert.LessOrEqual(t, last, 1)
	assert.Len(t, h.surface.markers, len(stops), "one marker per stop")
	byPos := h.surface.colorsByPosition()
	for _, s := range stops {
		assert.Equal(t, s.Color, byPos[s.Position], "marker color at %v", s.Position)
	}
}

func TestRoleAt(t *testing.T) {
	tests := []struct {
		i, n int
		want Role
	}{
		{0, 1, RoleFirst},
		{0, 2, RoleFirst},
		{1, 2, RoleLast},
		{1, 3, RoleMiddle},
		{2, 3, RoleLast},
		{3, 5, RoleMiddle},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoleAt(tt.i, tt.n), "RoleAt(%d, %d)", tt.i, tt.n)
	}
}

func TestInsertAtClick_AppendsAsLast(t *testing.T) {
	h := newHarness(0)

	a, err := h.m.InsertAtClick(pt(144.96, -37.81))
	require.NoError(t, err)
	b, err := h.m.InsertAtClick(pt(144.97, -37.82))
	require.NoError(t, err)
	c, err := h.m.InsertAtClick(pt(144.98, -37.83))
	require.NoError(t, err)

	stops := h.m.Stops()
	require.Len(t, stops, 3)
	assert.Equal(t, []StopID{a, b, c}, []StopID{stops[0].ID, stops[1].ID, stops[2].ID})
	assert.Equal(t, ColorBlue, stops[0].Color)
	assert.Equal(t, ColorOrange, stops[1].Color)
	assert.Equal(t, ColorRed, stops[2].Color)
	assertRolesAndColors(t, h)

	require.Len(t, h.lookups.calls, 3)
	assert.Equal(t, LookupToken{StopID: c, Generation: 1}, h.lookups.last().token)
	assert.Equal(t, pt(144.98, -37.83), h.lookups.last().pos)
}

func TestInsertAtClick_SoleStopIsFirst(t *testing.T) {
	h := newHarness(0)

	_, err := h.m.InsertAtClick(pt(1, 1))
	require.NoError(t, err)

	stops := h.m.Stops()
	require.Len(t, stops, 1)
	assert.Equal(t, RoleFirst, stops[0].Role)
	assert.Equal(t, ColorBlue, stops[0].Color)
}

func TestInsertAtClick_InvalidPosition(t *testing.T) {
	h := newHarness(0)

	for _, p := range []orb.Point{pt(181, 0), pt(0, -91), pt(math.NaN(), 0), pt(0, math.Inf(1))} {
		_, err := h.m.InsertAtClick(p)
		assert.ErrorIs(t, err, ErrInvalidPosition)
	}
	assert.Equal(t, 0, h.m.Len())
	assert.Empty(t, h.surface.markers)
	assert.Empty(t, h.lookups.calls)
}

func TestRemoveMiddle_RecomputesColors(t *testing.T) {
	h := newHarness(0)
	a, _ := h.m.InsertAtClick(pt(1, 1))
	_, _ = h.m.InsertAtClick(pt(2, 2))
	c, _ := h.m.InsertAtClick(pt(3, 3))

	require.NoError(t, h.m.Remove(1))

	stops := h.m.Stops()
	require.Len(t, stops, 2)
	assert.Equal(t, a, stops[0].ID)
	assert.Equal(t, ColorBlue, stops[0].Color)
	assert.Equal(t, c, stops[1].ID)
	assert.Equal(t, ColorRed, stops[1].Color)
	assertRolesAndColors(t, h)
}

func TestRemoveFirst_PromotesNextStop(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))
	b, _ := h.m.InsertAtClick(pt(2, 2))
	_, _ = h.m.InsertAtClick(pt(3, 3))

	require.NoError(t, h.m.Remove(0))

	stops := h.m.Stops()
	require.Len(t, stops, 2)
	assert.Equal(t, b, stops[0].ID)
	assert.Equal(t, RoleFirst, stops[0].Role)
	assertRolesAndColors(t, h)
}

func TestRemoveOnlyStop_LeavesNothingBehind(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))
	h.m.ToggleRoute()

	require.NoError(t, h.m.Remove(0))

	assert.Equal(t, 0, h.m.Len())
	assert.Empty(t, h.surface.markers)
	assert.Nil(t, h.surface.layer)
	assert.Empty(t, h.view.last().Rows)
}

func TestRemove_EmptyIsNoop(t *testing.T) {
	h := newHarness(0)

	require.NoError(t, h.m.Remove(0))
	require.NoError(t, h.m.Remove(5))

	assert.Equal(t, 0, h.m.Len())
	assert.Empty(t, h.view.renders)
}

func TestRemove_OutOfRange(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))
	_, _ = h.m.InsertAtClick(pt(2, 2))

	err := h.m.Remove(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	err = h.m.Remove(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.Equal(t, 2, h.m.Len())
	assertRolesAndColors(t, h)
}

func TestMarkersReplacedOnlyWhenColorChanges(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))
	_, _ = h.m.InsertAtClick(pt(2, 2))
	_, _ = h.m.InsertAtClick(pt(3, 3))
	_, _ = h.m.InsertAtClick(pt(4, 4))

	before := map[orb.Point]MarkerHandle{}
	for handle, m := range h.surface.markers {
		before[m.pos] = handle
	}

	// Removing the last stop only recolors the new last one.
	require.NoError(t, h.m.Remove(3))

	after := map[orb.Point]MarkerHandle{}
	for handle, m := range h.surface.markers {
		after[m.pos] = handle
	}
	assert.Equal(t, before[pt(1, 1)], after[pt(1, 1)])
	assert.Equal(t, before[pt(2, 2)], after[pt(2, 2)])
	assert.NotEqual(t, before[pt(3, 3)], after[pt(3, 3)])
	assertRolesAndColors(t, h)
}

func TestRandomInsertRemove_KeepsInvariants(t *testing.T) {
	h := newHarness(0)
	r := rand.New(rand.NewPCG(1, 2))

	for step := 0; step < 300; step++ {
		if h.m.Len() == 0 || r.IntN(3) > 0 {
			_, err := h.m.InsertAtClick(pt(r.Float64()*100, r.Float64()*50))
			require.NoError(t, err)
		} else {
			require.NoError(t, h.m.Remove(r.IntN(h.m.Len())))
		}
		assertRolesAndColors(t, h)
	}
}

func TestInsertUserLocation_ReplacesFirst(t *testing.T) {
	h := newHarness(0)
	a, _ := h.m.InsertAtClick(pt(1, 1))
	b, _ := h.m.InsertAtClick(pt(2, 2))
	h.m.OnAddressResolved(LookupToken{StopID: a, Generation: 1}, "Old pickup", nil)

	id, err := h.m.InsertUserLocation(pt(9, 9))
	require.NoError(t, err)

	stops := h.m.Stops()
	require.Len(t, stops, 2)
	assert.Equal(t, id, stops[0].ID)
	assert.NotEqual(t, a, stops[0].ID)
	assert.Equal(t, b, stops[1].ID)
	assert.False(t, stops[0].Resolved)

	for _, m := range h.surface.markers {
		assert.NotEqual(t, pt(1, 1), m.pos, "old pickup marker must be removed")
		assert.NotEqual(t, "Old pickup", m.popup)
	}
	assert.Equal(t, []orb.Point{pt(9, 9)}, h.surface.panned)
	assert.Equal(t, pt(9, 9), h.lookups.last().pos)
	assertRolesAndColors(t, h)
}

func TestInsertUserLocation_EmptyList(t *testing.T) {
	h := newHarness(0)

	_, err := h.m.InsertUserLocation(pt(5, 5))
	require.NoError(t, err)

	stops := h.m.Stops()
	require.Len(t, stops, 1)
	assert.Equal(t, RoleFirst, stops[0].Role)
}

func TestInsertUserLocation_NotThrottled(t *testing.T) {
	h := newHarness(DefaultCooldown)
	_, err := h.m.InsertAtClick(pt(1, 1))
	require.NoError(t, err)
	require.False(t, h.m.InputEnabled())

	_, err = h.m.InsertUserLocation(pt(2, 2))
	assert.NoError(t, err)
}

func TestReposition_TwiceKeepsLatestAddress(t *testing.T) {
	h := newHarness(0)
	id, _ := h.m.InsertAtClick(pt(1, 1))
	h.m.OnAddressResolved(h.lookups.last().token, "Original", nil)

	require.NoError(t, h.m.Reposition(id, pt(2, 2)))
	first := h.lookups.last().token
	require.NoError(t, h.m.Reposition(id, pt(3, 3)))
	second := h.lookups.last().token
	require.Greater(t, second.Generation, first.Generation)

	// The second lookup completes first, then the stale one arrives.
	assert.True(t, h.m.OnAddressResolved(second, "Second address", nil))
	assert.False(t, h.m.OnAddressResolved(first, "First address", nil))

	stops := h.m.Stops()
	require.Len(t, stops, 1)
	assert.Equal(t, "Second address", stops[0].Address)
	assert.Equal(t, pt(3, 3), stops[0].Position)
	for _, m := range h.surface.markers {
		assert.Equal(t, "Second address", m.popup)
	}
}

func TestReposition_StaleResultWhilePending(t *testing.T) {
	h := newHarness(0)
	id, _ := h.m.InsertAtClick(pt(1, 1))
	stale := h.lookups.last().token

	require.NoError(t, h.m.Reposition(id, pt(2, 2)))
	assert.False(t, h.m.OnAddressResolved(stale, "Stale", nil))

	stops := h.m.Stops()
	assert.False(t, stops[0].Resolved)
	assert.Equal(t, PlaceholderPending, h.view.last().Rows[0].Address)
}

func TestReposition_ClearsAddressAndPopup(t *testing.T) {
	h := newHarness(0)
	id, _ := h.m.InsertAtClick(pt(1, 1))
	h.m.OnAddressResolved(h.lookups.last().token, "Somewhere", nil)

	require.NoError(t, h.m.Reposition(id, pt(2, 2)))

	assert.False(t, h.m.Stops()[0].Resolved)
	for _, m := range h.surface.markers {
		assert.Empty(t, m.popup)
	}
}

func TestReposition_MovesMarkerInPlace(t *testing.T) {
	h := newHarness(0)
	first, _ := h.m.InsertAtClick(pt(1, 1))
	_, _ = h.m.InsertAtClick(pt(3, 3))
	before := h.m.Stops()[0].Marker

	require.NoError(t, h.m.Reposition(first, pt(2, 2)))

	stops := h.m.Stops()
	assert.Equal(t, before, stops[0].Marker, "same marker, not a replacement")
	require.Contains(t, h.surface.markers, before)
	assert.Equal(t, pt(2, 2), h.surface.markers[before].pos)
	assert.Equal(t, 1, h.surface.moves)
	assert.Len(t, h.surface.markers, 2)
}

func TestReposition_UnknownStop(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))

	err := h.m.Reposition(StopID{}, pt(2, 2))
	assert.ErrorIs(t, err, ErrStopNotFound)
}

func TestOnAddressResolved_RemovedStop(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))
	token := h.lookups.last().token
	require.NoError(t, h.m.Remove(0))

	assert.False(t, h.m.OnAddressResolved(token, "Gone", nil))
	assert.Equal(t, 0, h.m.Len())
}

func TestOnAddressResolved_Failure(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))

	applied := h.m.OnAddressResolved(h.lookups.last().token, "", errors.New("upstream down"))
	require.True(t, applied)

	stops := h.m.Stops()
	assert.False(t, stops[0].Resolved)
	row := h.view.last().Rows[0]
	assert.True(t, row.Pending)
	assert.True(t, row.Failed)
	assert.Equal(t, PlaceholderUnavailable, row.Address)
	assert.Len(t, h.lookups.calls, 1, "no retry")
}

func TestThrottle_RejectsClickDuringCooldown(t *testing.T) {
	h := newHarness(DefaultCooldown)
	_, err := h.m.InsertAtClick(pt(1, 1))
	require.NoError(t, err)
	assert.False(t, h.m.InputEnabled())
	assert.False(t, h.surface.interactive)

	_, err = h.m.InsertAtClick(pt(2, 2))
	assert.ErrorIs(t, err, ErrInputSuspended)
	assert.Equal(t, 1, h.m.Len())

	h.sched.fireAll()
	assert.True(t, h.m.InputEnabled())
	assert.True(t, h.surface.interactive)

	_, err = h.m.InsertAtClick(pt(2, 2))
	assert.NoError(t, err)
}

func TestThrottle_OnlyLatestTimerReenables(t *testing.T) {
	h := newHarness(DefaultCooldown)
	_, _ = h.m.InsertAtClick(pt(1, 1))
	h.sched.fire(0)
	require.True(t, h.m.InputEnabled())

	// The user location lookup starts a newer cooldown while the second
	// click's timer is still outstanding.
	_, _ = h.m.InsertAtClick(pt(2, 2))
	_, err := h.m.InsertUserLocation(pt(3, 3))
	require.NoError(t, err)
	require.Len(t, h.sched.pending, 3)

	h.sched.fire(1)
	assert.False(t, h.m.InputEnabled(), "an older cooldown must not re-enable input")

	h.sched.fire(2)
	assert.True(t, h.m.InputEnabled())
}

func TestThrottle_RejectedDragRedrawsMarker(t *testing.T) {
	h := newHarness(DefaultCooldown)
	id, _ := h.m.InsertAtClick(pt(1, 1))

	err := h.m.Reposition(id, pt(5, 5))
	assert.ErrorIs(t, err, ErrInputSuspended)

	stops := h.m.Stops()
	assert.Equal(t, pt(1, 1), stops[0].Position)
	require.Len(t, h.surface.markers, 1)
	for _, m := range h.surface.markers {
		assert.Equal(t, pt(1, 1), m.pos)
	}
	assert.Len(t, h.lookups.calls, 1)
}

func TestToggleRoute(t *testing.T) {
	t.Run("no polyline below two stops", func(t *testing.T) {
		h := newHarness(0)
		h.m.ToggleRoute()
		assert.Nil(t, h.surface.layer)

		_, _ = h.m.InsertAtClick(pt(1, 1))
		assert.Nil(t, h.surface.layer)
		assert.True(t, h.m.RouteVisible())
	})

	t.Run("polyline follows list order", func(t *testing.T) {
		h := newHarness(0)
		_, _ = h.m.InsertAtClick(pt(1, 1))
		_, _ = h.m.InsertAtClick(pt(2, 2))
		_, _ = h.m.InsertAtClick(pt(3, 3))

		h.m.ToggleRoute()
		assert.Equal(t, orb.LineString{pt(1, 1), pt(2, 2), pt(3, 3)}, h.surface.layer)

		h.m.ToggleRoute()
		assert.Nil(t, h.surface.layer)
		assert.False(t, h.m.RouteVisible())
	})

	t.Run("recomputed after mutation while visible", func(t *testing.T) {
		h := newHarness(0)
		_, _ = h.m.InsertAtClick(pt(1, 1))
		_, _ = h.m.InsertAtClick(pt(2, 2))
		h.m.ToggleRoute()

		_, _ = h.m.InsertAtClick(pt(3, 3))
		assert.Equal(t, orb.LineString{pt(1, 1), pt(2, 2), pt(3, 3)}, h.surface.layer)

		require.NoError(t, h.m.Remove(0))
		assert.Equal(t, orb.LineString{pt(2, 2), pt(3, 3)}, h.surface.layer)

		require.NoError(t, h.m.Remove(0))
		assert.Nil(t, h.surface.layer)
	})

	t.Run("not drawn while hidden", func(t *testing.T) {
		h := newHarness(0)
		_, _ = h.m.InsertAtClick(pt(1, 1))
		_, _ = h.m.InsertAtClick(pt(2, 2))
		assert.Zero(t, h.surface.layerAdds)
	})
}

func TestTogglePopupVisibility(t *testing.T) {
	h := newHarness(0)
	_, _ = h.m.InsertAtClick(pt(1, 1))
	h.m.OnAddressResolved(h.lookups.last().token, "Here", nil)

	h.m.TogglePopupVisibility()
	assert.True(t, h.surface.popups)
	assert.True(t, h.m.PopupsVisible())

	h.m.TogglePopupVisibility()
	assert.False(t, h.surface.popups)
	assert.Equal(t, "Here", h.m.Stops()[0].Address)
}

func TestIndependentManagers(t *testing.T) {
	a := newHarness(0)
	b := newHarness(0)

	_, _ = a.m.InsertAtClick(pt(1, 1))

	assert.Equal(t, 1, a.m.Len())
	assert.Equal(t, 0, b.m.Len())
	assert.Empty(t, b.surface.markers)
}

func TestNewManager_NilCollaborators(t *testing.T) {
	m := NewManager(Config{})

	id, err := m.InsertAtClick(pt(1, 1))
	require.NoError(t, err)
	require.NoError(t, m.Reposition(id, pt(2, 2)))
	m.ToggleRoute()
	m.TogglePopupVisibility()
	require.NoError(t, m.Remove(0))
	assert.Equal(t, 0, m.Len())
}
