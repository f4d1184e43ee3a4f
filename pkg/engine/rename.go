package engine

import (
	"fmt"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/state"
)

// Rename rekeys a resource in the desired state and checkpoint without any
// remote interaction.
//
// The desired-state entry must exist under oldKey and newKey must be free;
// violations are identity errors. When the entry has no explicit display-name
// override the old key is backfilled as one, so the remote-visible name stays
// what it was: a rename changes local identity, never remote state. The
// checkpoint entry is relocated when present; a desired-state-only resource
// (never synced) renames fine without one.
func Rename(project *config.Project, cp *state.Checkpoint, kind Kind, oldKey, newKey string) error {
	switch kind {
	case KindPass:
		if err := renameEntry(project.Passes, kind, oldKey, newKey); err != nil {
			return err
		}
		if spec := project.Passes[newKey]; spec.Name == nil {
			name := oldKey
			spec.Name = &name
		}
		renameEntry(cp.Passes, kind, oldKey, newKey) //nolint:errcheck

	case KindBadge:
		if err := renameEntry(project.Badges, kind, oldKey, newKey); err != nil {
			return err
		}
		if spec := project.Badges[newKey]; spec.Name == nil {
			name := oldKey
			spec.Name = &name
		}
		renameEntry(cp.Badges, kind, oldKey, newKey) //nolint:errcheck

	case KindProduct:
		if err := renameEntry(project.Products, kind, oldKey, newKey); err != nil {
			return err
		}
		if spec := project.Products[newKey]; spec.Name == nil {
			name := oldKey
			spec.Name = &name
		}
		renameEntry(cp.Products, kind, oldKey, newKey) //nolint:errcheck

	default:
		return NewIdentityError(fmt.Sprintf("unknown resource kind %q", kind))
	}

	return nil
}

func renameEntry[V any](m map[string]V, kind Kind, oldKey, newKey string) error {
	if _, ok := m[oldKey]; !ok {
		return NewIdentityError(fmt.Sprintf("%s %q not found", kind, oldKey))
	}
	if _, ok := m[newKey]; ok {
		return NewIdentityError(fmt.Sprintf("%s %q already exists", kind, newKey))
	}
	m[newKey] = m[oldKey]
	delete(m, oldKey)
	return nil
}
