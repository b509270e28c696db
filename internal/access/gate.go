// Package access evaluates whether a member may trigger key fulfillment.
// Two independent policies exist: a role gate for staff commands and a
// panel gate for self-service buttons. Both are pure predicates; the dispatch
// layer turns denials into user-visible replies, never internal errors.
package access

// HasRole reports whether requiredRoleID is among memberRoleIDs.
func HasRole(memberRoleIDs []string, requiredRoleID string) bool {
	if requiredRoleID == "" {
		return false
	}
	for _, r := range memberRoleIDs {
		if r == requiredRoleID {
			return true
		}
	}
	return false
}

// PanelAllows reports whether memberRoleIDs intersects the panel allow-list.
// An empty allow-list authorizes nobody.
func PanelAllows(memberRoleIDs, allowedRoleIDs []string) bool {
	if len(allowedRoleIDs) == 0 {
		return false
	}
	allowed := make(map[string]struct{}, len(allowedRoleIDs))
	for _, r := range allowedRoleIDs {
		allowed[r] = struct{}{}
	}
	for _, r := range memberRoleIDs {
		if _, ok := allowed[r]; ok {
			return true
		}
	}
	return false
}
