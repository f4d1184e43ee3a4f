package engine

import (
	"fmt"
	"sort"
)

// Kind is the closed set of managed resource categories.
type Kind string

const (
	KindPass    Kind = "pass"
	KindBadge   Kind = "badge"
	KindProduct Kind = "product"
)

// Kinds returns all kinds in reconciliation order.
func Kinds() []Kind {
	return []Kind{KindPass, KindBadge, KindProduct}
}

// ActionType is the closed set of plan operations. There is deliberately no
// delete: resources present in the checkpoint but absent from the desired
// state are only warned about.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionSkip   ActionType = "skip"
)

// FieldChange describes one differing attribute in an update.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// String renders the change as "field: old -> new".
func (c FieldChange) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Field, c.Old, c.New)
}

// ResourceAction is one planned step for one resource.
type ResourceAction struct {
	Key    string
	Kind   Kind
	Action ActionType

	// Changes is populated only for ActionUpdate.
	Changes []FieldChange
}

// SyncPlan is the ordered output of the planner: actions per kind, in
// lexicographic key order, plus advisory warnings.
type SyncPlan struct {
	Passes   []ResourceAction
	Badges   []ResourceAction
	Products []ResourceAction

	// Warnings report checkpoint entries with no desired counterpart.
	Warnings []string
}

// ActionsFor returns the action list for one kind.
func (p *SyncPlan) ActionsFor(kind Kind) []ResourceAction {
	switch kind {
	case KindPass:
		return p.Passes
	case KindBadge:
		return p.Badges
	case KindProduct:
		return p.Products
	}
	return nil
}

// HasChanges reports whether any action is not a skip.
func (p *SyncPlan) HasChanges() bool {
	for _, kind := range Kinds() {
		for _, a := range p.ActionsFor(kind) {
			if a.Action != ActionSkip {
				return true
			}
		}
	}
	return false
}

// PlanSummary counts actions by type.
type PlanSummary struct {
	ToCreate  int
	ToUpdate  int
	Unchanged int
}

// Summary tallies the plan.
func (p *SyncPlan) Summary() PlanSummary {
	var s PlanSummary
	for _, kind := range Kinds() {
		for _, a := range p.ActionsFor(kind) {
			switch a.Action {
			case ActionCreate:
				s.ToCreate++
			case ActionUpdate:
				s.ToUpdate++
			case ActionSkip:
				s.Unchanged++
			}
		}
	}
	return s
}

// String renders the summary as "x to create, y to update, z unchanged".
func (s PlanSummary) String() string {
	return fmt.Sprintf("%d to create, %d to update, %d unchanged", s.ToCreate, s.ToUpdate, s.Unchanged)
}

// Conflict records a resource whose icon changed both locally and remotely
// since the last checkpoint, requiring explicit operator resolution.
type Conflict struct {
	Kind      Kind
	Key       string
	LocalPath string
	LocalHash string

	// RemoteAssetID is the freshly observed remote content id, or "none"
	// when the remote icon was removed.
	RemoteAssetID string
}

// sortedKeys returns map keys in lexicographic order. Desired and applied
// state are plain maps; every iteration that feeds a plan, a diff, or a log
// goes through this for reproducibility.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatOptInt64(v *int64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}

func eqOptInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func shortHash(h string) string {
	if h == "" {
		return "none"
	}
	if len(h) > 8 {
		return h[:8] + "..."
	}
	return h
}
