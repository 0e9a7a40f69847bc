package transport

// AccessControl gates interactions by user id. When the whitelist is
// enabled, messages from unknown users are dropped without a reply so the
// bot stays invisible to strangers.
type AccessControl struct {
	enabled bool
	allowed map[int64]struct{}
}

// NewAccessControl builds an AccessControl from configuration.
func NewAccessControl(enabled bool, userIDs []int64) *AccessControl {
	allowed := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = struct{}{}
	}
	return &AccessControl{enabled: enabled, allowed: allowed}
}

// Allowed reports whether the user may interact with the service.
func (a *AccessControl) Allowed(userID int64) bool {
	if a == nil || !a.enabled {
		return true
	}
	_, ok := a.allowed[userID]
	return ok
}
