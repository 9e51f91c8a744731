package domain

import "sort"

// AssignmentTier ranks an assignment by scope specificity. Lower is more specific.
type AssignmentTier int

const (
	TierCustomerItemSite     AssignmentTier = 1
	TierCustomerItemTypeSite AssignmentTier = 2
	TierItemSite             AssignmentTier = 3
	TierItemTypeSite         AssignmentTier = 4
	TierCustomerSite         AssignmentTier = 5
	TierSiteDefault          AssignmentTier = 6
	TierGlobalDefault        AssignmentTier = 7
	tierNoMatch              AssignmentTier = 0
)

// String returns a label for metrics and logs
func (t AssignmentTier) String() string {
	switch t {
	case TierCustomerItemSite:
		return "customer-item-site"
	case TierCustomerItemTypeSite:
		return "customer-itemtype-site"
	case TierItemSite:
		return "item-site"
	case TierItemTypeSite:
		return "itemtype-site"
	case TierCustomerSite:
		return "customer-site"
	case TierSiteDefault:
		return "site-default"
	case TierGlobalDefault:
		return "global-default"
	default:
		return "none"
	}
}

// ClassifyTier places an assignment into exactly one specificity tier for the
// given context, or tierNoMatch when the assignment's scope shape does not fit.
func ClassifyTier(a *RouteAssignment, ctx MatchContext) AssignmentTier {
	customerSet := a.CustomerID != nil
	siteSet := a.SiteID != nil
	itemSet := a.ItemID != nil
	itemTypeSet := a.ItemType != nil

	customerMatch := customerSet && *a.CustomerID == ctx.CustomerID
	siteMatch := siteSet && *a.SiteID == ctx.SiteID
	itemMatch := itemSet && *a.ItemID == ctx.ItemID
	itemTypeMatch := itemTypeSet && *a.ItemType == ctx.ItemType

	switch {
	case customerMatch && itemMatch && siteMatch:
		return TierCustomerItemSite
	case customerMatch && itemTypeMatch && siteMatch && !itemSet:
		return TierCustomerItemTypeSite
	case itemMatch && siteMatch && !customerSet:
		return TierItemSite
	case itemTypeMatch && siteMatch && !customerSet && !itemSet:
		return TierItemTypeSite
	case customerMatch && siteMatch && !itemSet && !itemTypeSet:
		return TierCustomerSite
	case siteMatch && !customerSet && !itemSet && !itemTypeSet:
		return TierSiteDefault
	case !customerSet && !siteSet && !itemSet && !itemTypeSet:
		return TierGlobalDefault
	default:
		return tierNoMatch
	}
}

// AssignmentMatch is a tier-classified candidate
type AssignmentMatch struct {
	Assignment *RouteAssignment
	Tier       AssignmentTier
}

// ResolveAssignment picks the winning assignment for the given context.
// Candidates are filtered on activity, effective window, scalar constraints,
// and tier shape; survivors are ordered by ascending tier, ascending priority,
// descending revision, most recent effective-from, then highest id so repeated
// resolution over the same candidate set is deterministic.
func ResolveAssignment(candidates []*RouteAssignment, ctx MatchContext) (*AssignmentMatch, error) {
	matches := make([]AssignmentMatch, 0, len(candidates))

	for _, a := range candidates {
		if !a.Active || !a.EffectiveAt(ctx.Now) || !a.MatchesScalars(ctx) {
			continue
		}
		tier := ClassifyTier(a, ctx)
		if tier == tierNoMatch {
			continue
		}
		matches = append(matches, AssignmentMatch{Assignment: a, Tier: tier})
	}

	if len(matches) == 0 {
		return nil, ErrNoMatchingRoute
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.Assignment.Priority != b.Assignment.Priority {
			return a.Assignment.Priority < b.Assignment.Priority
		}
		if a.Assignment.Revision != b.Assignment.Revision {
			return a.Assignment.Revision > b.Assignment.Revision
		}
		if !a.Assignment.EffectiveFrom.Equal(b.Assignment.EffectiveFrom) {
			return a.Assignment.EffectiveFrom.After(b.Assignment.EffectiveFrom)
		}
		return a.Assignment.AssignmentID > b.Assignment.AssignmentID
	})

	winner := matches[0]
	return &winner, nil
}
