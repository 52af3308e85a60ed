package core

import "fmt"

// validateNewLabel rejects a label that would collide with an existing
// non-role type.
func validateNewLabel(m *Manager, label string) error {
	if label == "" {
		return fmt.Errorf("core: type label must not be empty")
	}
	if _, exists := m.byLabel[label]; exists {
		return fmt.Errorf("core: label %q is already in use", label)
	}
	return nil
}

// hasCycle reports whether starting from t and following Supertype pointers
// ever revisits a type already seen, which would indicate a corrupted type
// graph. The manager's construction API never produces cycles (supertypes
// must already exist when a type is created); RestoreManager runs this over
// a persisted record set, which carries no such guarantee.
func hasCycle(t *Type) bool {
	seen := make(map[TypeID]bool)
	for cur := t; cur != nil; cur = cur.Supertype {
		if seen[cur.ID] {
			return true
		}
		seen[cur.ID] = true
	}
	return false
}
