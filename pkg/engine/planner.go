package engine

import (
	"fmt"
	"path/filepath"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/content"
	"github.com/rbxsync/rbxsync/pkg/state"
)

// Planner computes a SyncPlan by comparing desired state against the
// checkpoint. It performs no network activity; icon comparisons read local
// files through the content store.
type Planner struct {
	// Content fingerprints local icon bytes.
	Content content.Store

	// BaseDir resolves icon paths, normally the config file's directory.
	BaseDir string
}

// BuildPlan diffs project against cp.
//
// Keys are visited in lexicographic order per kind. A key absent from the
// checkpoint plans a create; a present key plans an update listing every
// differing field, or a skip when nothing differs. Checkpoint keys with no
// desired counterpart produce a warning, never an action.
func (p *Planner) BuildPlan(project *config.Project, cp *state.Checkpoint) (*SyncPlan, error) {
	plan := &SyncPlan{}

	for _, key := range sortedKeys(cp.Passes) {
		if _, ok := project.Passes[key]; !ok {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("pass %q exists in checkpoint but not in config (will not be deleted)", key))
		}
	}
	for _, key := range sortedKeys(cp.Badges) {
		if _, ok := project.Badges[key]; !ok {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("badge %q exists in checkpoint but not in config (will not be deleted)", key))
		}
	}
	for _, key := range sortedKeys(cp.Products) {
		if _, ok := project.Products[key]; !ok {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("product %q exists in checkpoint but not in config (will not be deleted)", key))
		}
	}

	var err error
	if plan.Passes, err = p.diffPasses(project, cp); err != nil {
		return nil, err
	}
	if plan.Badges, err = p.diffBadges(project, cp); err != nil {
		return nil, err
	}
	if plan.Products, err = p.diffProducts(project, cp); err != nil {
		return nil, err
	}

	return plan, nil
}

func (p *Planner) diffPasses(project *config.Project, cp *state.Checkpoint) ([]ResourceAction, error) {
	var actions []ResourceAction

	for _, key := range sortedKeys(project.Passes) {
		spec := project.Passes[key]
		rec, ok := cp.Passes[key]
		if !ok {
			actions = append(actions, ResourceAction{Key: key, Kind: KindPass, Action: ActionCreate})
			continue
		}

		var changes []FieldChange
		if name := config.ResolveName(spec.Name, key); name != rec.Name {
			changes = append(changes, FieldChange{Field: "name", Old: rec.Name, New: name})
		}
		if !eqOptInt64(spec.Price, rec.Price) {
			changes = append(changes, FieldChange{Field: "price", Old: formatOptInt64(rec.Price), New: formatOptInt64(spec.Price)})
		}
		if desc := config.DescriptionOrEmpty(spec.Description); desc != rec.Description {
			changes = append(changes, FieldChange{Field: "description", Old: rec.Description, New: desc})
		}
		if spec.ForSaleEnabled() != rec.ForSale {
			changes = append(changes, FieldChange{Field: "for_sale", Old: fmt.Sprint(rec.ForSale), New: fmt.Sprint(spec.ForSaleEnabled())})
		}
		if spec.RegionalPricing != rec.RegionalPricing {
			changes = append(changes, FieldChange{Field: "regional_pricing", Old: fmt.Sprint(rec.RegionalPricing), New: fmt.Sprint(spec.RegionalPricing)})
		}
		iconChange, err := p.diffIcon(spec.Icon, rec.IconHash)
		if err != nil {
			return nil, NewValidationError("failed to fingerprint icon", err).WithResource(KindPass, key)
		}
		if iconChange != nil {
			changes = append(changes, *iconChange)
		}

		actions = append(actions, updateOrSkip(key, KindPass, changes))
	}

	return actions, nil
}

func (p *Planner) diffBadges(project *config.Project, cp *state.Checkpoint) ([]ResourceAction, error) {
	var actions []ResourceAction

	for _, key := range sortedKeys(project.Badges) {
		spec := project.Badges[key]
		rec, ok := cp.Badges[key]
		if !ok {
			actions = append(actions, ResourceAction{Key: key, Kind: KindBadge, Action: ActionCreate})
			continue
		}

		var changes []FieldChange
		if name := config.ResolveName(spec.Name, key); name != rec.Name {
			changes = append(changes, FieldChange{Field: "name", Old: rec.Name, New: name})
		}
		if desc := config.DescriptionOrEmpty(spec.Description); desc != rec.Description {
			changes = append(changes, FieldChange{Field: "description", Old: rec.Description, New: desc})
		}
		if spec.EnabledFlag() != rec.Enabled {
			changes = append(changes, FieldChange{Field: "enabled", Old: fmt.Sprint(rec.Enabled), New: fmt.Sprint(spec.EnabledFlag())})
		}
		iconChange, err := p.diffIcon(spec.Icon, rec.IconHash)
		if err != nil {
			return nil, NewValidationError("failed to fingerprint icon", err).WithResource(KindBadge, key)
		}
		if iconChange != nil {
			changes = append(changes, *iconChange)
		}

		actions = append(actions, updateOrSkip(key, KindBadge, changes))
	}

	return actions, nil
}

func (p *Planner) diffProducts(project *config.Project, cp *state.Checkpoint) ([]ResourceAction, error) {
	var actions []ResourceAction

	for _, key := range sortedKeys(project.Products) {
		spec := project.Products[key]
		rec, ok := cp.Products[key]
		if !ok {
			actions = append(actions, ResourceAction{Key: key, Kind: KindProduct, Action: ActionCreate})
			continue
		}

		var changes []FieldChange
		if name := config.ResolveName(spec.Name, key); name != rec.Name {
			changes = append(changes, FieldChange{Field: "name", Old: rec.Name, New: name})
		}
		if spec.Price != rec.Price {
			changes = append(changes, FieldChange{Field: "price", Old: fmt.Sprint(rec.Price), New: fmt.Sprint(spec.Price)})
		}
		if desc := config.DescriptionOrEmpty(spec.Description); desc != rec.Description {
			changes = append(changes, FieldChange{Field: "description", Old: rec.Description, New: desc})
		}
		if spec.ForSaleEnabled() != rec.ForSale {
			changes = append(changes, FieldChange{Field: "for_sale", Old: fmt.Sprint(rec.ForSale), New: fmt.Sprint(spec.ForSaleEnabled())})
		}
		if spec.RegionalPricing != rec.RegionalPricing {
			changes = append(changes, FieldChange{Field: "regional_pricing", Old: fmt.Sprint(rec.RegionalPricing), New: fmt.Sprint(spec.RegionalPricing)})
		}
		if spec.StorePage != rec.StorePage {
			changes = append(changes, FieldChange{Field: "store_page", Old: fmt.Sprint(rec.StorePage), New: fmt.Sprint(spec.StorePage)})
		}
		iconChange, err := p.diffIcon(spec.Icon, rec.IconHash)
		if err != nil {
			return nil, NewValidationError("failed to fingerprint icon", err).WithResource(KindProduct, key)
		}
		if iconChange != nil {
			changes = append(changes, *iconChange)
		}

		actions = append(actions, updateOrSkip(key, KindProduct, changes))
	}

	return actions, nil
}

// diffIcon compares the current fingerprint of the referenced local content
// against the checkpoint's stored fingerprint. Presence alone is not enough:
// an icon that exists both locally and in the checkpoint still differs when
// its bytes changed since the last upload.
func (p *Planner) diffIcon(iconPath, recordedHash string) (*FieldChange, error) {
	if iconPath == "" {
		return nil, nil
	}
	data, err := p.Content.ReadBytes(filepath.Join(p.BaseDir, iconPath))
	if err != nil {
		return nil, err
	}
	current := p.Content.Fingerprint(data)
	if current == recordedHash {
		return nil, nil
	}
	return &FieldChange{Field: "icon", Old: shortHash(recordedHash), New: shortHash(current)}, nil
}

func updateOrSkip(key string, kind Kind, changes []FieldChange) ResourceAction {
	if len(changes) == 0 {
		return ResourceAction{Key: key, Kind: kind, Action: ActionSkip}
	}
	return ResourceAction{Key: key, Kind: kind, Action: ActionUpdate, Changes: changes}
}
