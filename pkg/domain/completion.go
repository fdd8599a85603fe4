package domain

// DeriveComplete reports whether a mission owning targets is complete. An
// empty target set is never complete.
func DeriveComplete(targets []Target) bool {
	if len(targets) == 0 {
		return false
	}
	for _, t := range targets {
		if !t.Complete {
			return false
		}
	}
	return true
}
