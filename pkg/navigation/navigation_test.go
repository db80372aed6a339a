package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	pattern, params, ok := Match("/domain/history/abc-123/")
	require.True(t, ok)
	assert.Equal(t, "/domain/history/:domainId", pattern)
	assert.Equal(t, map[string]string{"domainId": "abc-123"}, params)

	pattern, params, ok = Match("/domain/history")
	require.True(t, ok)
	assert.Equal(t, "/domain/history", pattern)
	assert.Empty(t, params)

	_, _, ok = Match("/domain/update")
	assert.False(t, ok)
	_, _, ok = Match("/domain/update/1/extra")
	assert.False(t, ok)
}

func TestTrail(t *testing.T) {
	crumbs, ok := Trail("/client/update/42", nil)
	require.True(t, ok)
	assert.Equal(t, []Crumb{
		{Label: "Dashboard", Path: "/admin-dashboard"},
		{Label: "Clients", Path: "/client/all"},
		{Label: "Edit Client"},
	}, crumbs)

	crumbs, ok = Trail("/domain/history/7", map[string]string{"Domain History": "example.com history"})
	require.True(t, ok)
	assert.Equal(t, "example.com history", crumbs[2].Label)

	// Relabelling must not leak into later calls.
	crumbs, _ = Trail("/domain/history/7", nil)
	assert.Equal(t, "Domain History", crumbs[2].Label)

	_, ok = Trail("/unknown", nil)
	assert.False(t, ok)
}

func TestSidebarWidth(t *testing.T) {
	assert.Equal(t, "240px", SidebarWidth(true))
	assert.Equal(t, "70px", SidebarWidth(false))
}
