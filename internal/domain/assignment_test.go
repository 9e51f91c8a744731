package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

var matchNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func baseContext() MatchContext {
	return MatchContext{
		CustomerID:    "CUST-1",
		SiteID:        "SITE-A",
		ItemID:        "ITEM-100",
		ItemType:      "FRAME",
		OrderPriority: 5,
		PickupViaID:   "PV-1",
		ShipViaID:     "SV-1",
		Now:           matchNow,
	}
}

func activeAssignment(id string) *RouteAssignment {
	return &RouteAssignment{
		AssignmentID:  id,
		TemplateID:    "tpl-1",
		Active:        true,
		EffectiveFrom: matchNow.Add(-24 * time.Hour),
	}
}

func TestClassifyTier(t *testing.T) {
	ctx := baseContext()

	tests := []struct {
		name     string
		scope    func(a *RouteAssignment)
		expected AssignmentTier
	}{
		{
			name: "customer item site",
			scope: func(a *RouteAssignment) {
				a.CustomerID = strPtr("CUST-1")
				a.ItemID = strPtr("ITEM-100")
				a.SiteID = strPtr("SITE-A")
			},
			expected: TierCustomerItemSite,
		},
		{
			name: "customer itemtype site",
			scope: func(a *RouteAssignment) {
				a.CustomerID = strPtr("CUST-1")
				a.ItemType = strPtr("FRAME")
				a.SiteID = strPtr("SITE-A")
			},
			expected: TierCustomerItemTypeSite,
		},
		{
			name: "item site",
			scope: func(a *RouteAssignment) {
				a.ItemID = strPtr("ITEM-100")
				a.SiteID = strPtr("SITE-A")
			},
			expected: TierItemSite,
		},
		{
			name: "itemtype site",
			scope: func(a *RouteAssignment) {
				a.ItemType = strPtr("FRAME")
				a.SiteID = strPtr("SITE-A")
			},
			expected: TierItemTypeSite,
		},
		{
			name: "customer site",
			scope: func(a *RouteAssignment) {
				a.CustomerID = strPtr("CUST-1")
				a.SiteID = strPtr("SITE-A")
			},
			expected: TierCustomerSite,
		},
		{
			name: "site default",
			scope: func(a *RouteAssignment) {
				a.SiteID = strPtr("SITE-A")
			},
			expected: TierSiteDefault,
		},
		{
			name:     "global default",
			scope:    func(a *RouteAssignment) {},
			expected: TierGlobalDefault,
		},
		{
			name: "customer mismatch falls out entirely",
			scope: func(a *RouteAssignment) {
				a.CustomerID = strPtr("OTHER")
				a.ItemID = strPtr("ITEM-100")
				a.SiteID = strPtr("SITE-A")
			},
			expected: tierNoMatch,
		},
		{
			name: "item set blocks the itemtype tier",
			scope: func(a *RouteAssignment) {
				a.CustomerID = strPtr("CUST-1")
				a.ItemType = strPtr("FRAME")
				a.ItemID = strPtr("OTHER-ITEM")
				a.SiteID = strPtr("SITE-A")
			},
			expected: tierNoMatch,
		},
		{
			name: "site mismatch never matches",
			scope: func(a *RouteAssignment) {
				a.SiteID = strPtr("SITE-B")
			},
			expected: tierNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := activeAssignment("a-1")
			tt.scope(a)
			assert.Equal(t, tt.expected, ClassifyTier(a, ctx))
		})
	}
}

func TestResolveAssignment_MoreSpecificTierWins(t *testing.T) {
	ctx := baseContext()

	global := activeAssignment("a-global")
	siteDefault := activeAssignment("a-site")
	siteDefault.SiteID = strPtr("SITE-A")
	itemSite := activeAssignment("a-item-site")
	itemSite.ItemID = strPtr("ITEM-100")
	itemSite.SiteID = strPtr("SITE-A")

	match, err := ResolveAssignment([]*RouteAssignment{global, siteDefault, itemSite}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "a-item-site", match.Assignment.AssignmentID)
	assert.Equal(t, TierItemSite, match.Tier)
}

func TestResolveAssignment_TieBreaks(t *testing.T) {
	ctx := baseContext()

	t.Run("lower priority wins within a tier", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		a.Priority = 20
		b := activeAssignment("a-2")
		b.SiteID = strPtr("SITE-A")
		b.Priority = 10

		match, err := ResolveAssignment([]*RouteAssignment{a, b}, ctx)
		require.NoError(t, err)
		assert.Equal(t, "a-2", match.Assignment.AssignmentID)
	})

	t.Run("higher revision wins at equal priority", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		a.Revision = 1
		b := activeAssignment("a-2")
		b.SiteID = strPtr("SITE-A")
		b.Revision = 3

		match, err := ResolveAssignment([]*RouteAssignment{a, b}, ctx)
		require.NoError(t, err)
		assert.Equal(t, "a-2", match.Assignment.AssignmentID)
	})

	t.Run("most recent effective-from wins next", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		a.EffectiveFrom = matchNow.Add(-48 * time.Hour)
		b := activeAssignment("a-2")
		b.SiteID = strPtr("SITE-A")
		b.EffectiveFrom = matchNow.Add(-1 * time.Hour)

		match, err := ResolveAssignment([]*RouteAssignment{a, b}, ctx)
		require.NoError(t, err)
		assert.Equal(t, "a-2", match.Assignment.AssignmentID)
	})

	t.Run("resolution is deterministic regardless of input order", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		b := activeAssignment("a-2")
		b.SiteID = strPtr("SITE-A")

		first, err := ResolveAssignment([]*RouteAssignment{a, b}, ctx)
		require.NoError(t, err)
		second, err := ResolveAssignment([]*RouteAssignment{b, a}, ctx)
		require.NoError(t, err)
		assert.Equal(t, first.Assignment.AssignmentID, second.Assignment.AssignmentID)
		assert.Equal(t, "a-2", first.Assignment.AssignmentID)
	})
}

func TestResolveAssignment_Filters(t *testing.T) {
	ctx := baseContext()

	t.Run("inactive candidates are skipped", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		a.Active = false

		_, err := ResolveAssignment([]*RouteAssignment{a}, ctx)
		assert.ErrorIs(t, err, ErrNoMatchingRoute)
	})

	t.Run("expired window is skipped", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		end := matchNow.Add(-1 * time.Hour)
		a.EffectiveTo = &end

		_, err := ResolveAssignment([]*RouteAssignment{a}, ctx)
		assert.ErrorIs(t, err, ErrNoMatchingRoute)
	})

	t.Run("priority range excludes the order", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		a.PriorityMin = intPtr(1)
		a.PriorityMax = intPtr(3)

		_, err := ResolveAssignment([]*RouteAssignment{a}, ctx)
		assert.ErrorIs(t, err, ErrNoMatchingRoute)
	})

	t.Run("ship via constraint must match exactly", func(t *testing.T) {
		a := activeAssignment("a-1")
		a.SiteID = strPtr("SITE-A")
		a.ShipViaID = strPtr("SV-OTHER")

		_, err := ResolveAssignment([]*RouteAssignment{a}, ctx)
		assert.ErrorIs(t, err, ErrNoMatchingRoute)
	})

	t.Run("no candidates at all", func(t *testing.T) {
		_, err := ResolveAssignment(nil, ctx)
		assert.ErrorIs(t, err, ErrNoMatchingRoute)
	})
}

func TestCheckOverlap(t *testing.T) {
	newRule := func(id string, from time.Time, to *time.Time) *RouteAssignment {
		return &RouteAssignment{
			AssignmentID:  id,
			SiteID:        strPtr("SITE-A"),
			Priority:      10,
			Active:        true,
			EffectiveFrom: from,
			EffectiveTo:   to,
		}
	}

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("overlapping open-ended windows conflict", func(t *testing.T) {
		existing := newRule("a-1", jan, nil)
		candidate := newRule("a-2", mar, nil)

		err := candidate.CheckOverlap([]*RouteAssignment{existing})
		assert.ErrorIs(t, err, ErrAssignmentOverlap)
	})

	t.Run("disjoint windows are allowed", func(t *testing.T) {
		feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		existing := newRule("a-1", jan, &feb)
		candidate := newRule("a-2", mar, &jun)

		assert.NoError(t, candidate.CheckOverlap([]*RouteAssignment{existing}))
	})

	t.Run("different priority never conflicts", func(t *testing.T) {
		existing := newRule("a-1", jan, nil)
		candidate := newRule("a-2", mar, nil)
		candidate.Priority = 20

		assert.NoError(t, candidate.CheckOverlap([]*RouteAssignment{existing}))
	})

	t.Run("different scope never conflicts", func(t *testing.T) {
		existing := newRule("a-1", jan, nil)
		candidate := newRule("a-2", mar, nil)
		candidate.ItemID = strPtr("ITEM-1")

		assert.NoError(t, candidate.CheckOverlap([]*RouteAssignment{existing}))
	})

	t.Run("inactive rules are ignored on both sides", func(t *testing.T) {
		existing := newRule("a-1", jan, nil)
		existing.Active = false
		candidate := newRule("a-2", mar, nil)

		assert.NoError(t, candidate.CheckOverlap([]*RouteAssignment{existing}))

		candidate.Active = false
		existing.Active = true
		assert.NoError(t, candidate.CheckOverlap([]*RouteAssignment{existing}))
	})

	t.Run("self comparison is skipped on update", func(t *testing.T) {
		rule := newRule("a-1", jan, nil)
		assert.NoError(t, rule.CheckOverlap([]*RouteAssignment{rule}))
	})
}
