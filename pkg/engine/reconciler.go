package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/content"
	"github.com/rbxsync/rbxsync/pkg/state"
)

// Reconciler executes a SyncPlan against a Provider.
//
// Actions run strictly sequentially: kinds in fixed order, keys in plan order,
// at most one provider call in flight. After every successful remote mutation
// the checkpoint entry is updated in memory and the whole checkpoint is handed
// to Sink before the next action starts, so an abort mid-run loses at most the
// action that failed.
type Reconciler struct {
	Provider Provider
	Sink     CheckpointSink
	Content  content.Store

	// BaseDir resolves icon paths, normally the config file's directory.
	BaseDir string

	// BadgeCost is the Robux fee charged when creating a badge.
	BadgeCost int64

	Log zerolog.Logger
}

// AppliedResource records one executed create or update.
type AppliedResource struct {
	Kind     Kind
	Key      string
	Action   ActionType
	RemoteID int64
}

// ApplyResult summarizes a reconciliation run. When Apply returns an error the
// result still lists every action that committed before the failure.
type ApplyResult struct {
	Applied []AppliedResource
	Created int
	Updated int
	Skipped int
}

// Apply executes plan, mutating cp as it goes. The returned error is
// classified: validation errors for unreadable local content, provider errors
// for failed remote calls.
func (r *Reconciler) Apply(ctx context.Context, plan *SyncPlan, project *config.Project, cp *state.Checkpoint) (*ApplyResult, error) {
	res := &ApplyResult{}

	for _, action := range plan.Passes {
		if err := r.applyPass(ctx, action, project, cp, res); err != nil {
			return res, err
		}
	}
	for _, action := range plan.Badges {
		if err := r.applyBadge(ctx, action, project, cp, res); err != nil {
			return res, err
		}
	}
	for _, action := range plan.Products {
		if err := r.applyProduct(ctx, action, project, cp, res); err != nil {
			return res, err
		}
	}

	return res, nil
}

func (r *Reconciler) applyPass(ctx context.Context, action ResourceAction, project *config.Project, cp *state.Checkpoint, res *ApplyResult) error {
	if action.Action == ActionSkip {
		res.Skipped++
		return nil
	}

	spec := project.Passes[action.Key]
	fields := PassFields{
		Name:            config.ResolveName(spec.Name, action.Key),
		Description:     config.DescriptionOrEmpty(spec.Description),
		Price:           spec.Price,
		ForSale:         spec.ForSaleEnabled(),
		RegionalPricing: spec.RegionalPricing,
	}

	switch action.Action {
	case ActionCreate:
		icon, iconHash, err := r.readIcon(spec.Icon, KindPass, action.Key)
		if err != nil {
			return err
		}
		fields.Icon = icon

		r.Log.Info().Str("kind", string(KindPass)).Str("key", action.Key).Msg("creating resource")
		remote, err := r.Provider.CreatePass(ctx, fields)
		if err != nil {
			return NewProviderError("failed to create pass", false, err).WithResource(KindPass, action.Key)
		}

		cp.Passes[action.Key] = state.PassRecord{
			RemoteID:        remote.ID,
			Name:            fields.Name,
			Price:           spec.Price,
			Description:     fields.Description,
			IconAssetID:     remote.IconAssetID,
			IconHash:        iconHash,
			ForSale:         fields.ForSale,
			RegionalPricing: fields.RegionalPricing,
		}
		return r.commit(cp, res, AppliedResource{Kind: KindPass, Key: action.Key, Action: ActionCreate, RemoteID: remote.ID})

	case ActionUpdate:
		rec := cp.Passes[action.Key]
		var iconHash string
		if hasChange(action.Changes, "icon") {
			icon, hash, err := r.readIcon(spec.Icon, KindPass, action.Key)
			if err != nil {
				return err
			}
			fields.Icon = icon
			iconHash = hash
		}

		r.Log.Info().Str("kind", string(KindPass)).Str("key", action.Key).Int64("id", rec.RemoteID).Msg("updating resource")
		remote, err := r.Provider.UpdatePass(ctx, rec.RemoteID, fields)
		if err != nil {
			return NewProviderError("failed to update pass", false, err).WithResource(KindPass, action.Key)
		}

		next := state.PassRecord{
			RemoteID:        rec.RemoteID,
			Name:            fields.Name,
			Price:           spec.Price,
			Description:     fields.Description,
			IconAssetID:     rec.IconAssetID,
			IconHash:        rec.IconHash,
			ForSale:         fields.ForSale,
			RegionalPricing: fields.RegionalPricing,
		}
		// An update response carrying a fresh icon asset id supersedes the
		// recorded one; an empty acknowledgement keeps it.
		if remote != nil && remote.IconAssetID != nil {
			next.IconAssetID = remote.IconAssetID
		}
		if iconHash != "" {
			next.IconHash = iconHash
		}
		cp.Passes[action.Key] = next
		return r.commit(cp, res, AppliedResource{Kind: KindPass, Key: action.Key, Action: ActionUpdate, RemoteID: rec.RemoteID})
	}

	return nil
}

func (r *Reconciler) applyBadge(ctx context.Context, action ResourceAction, project *config.Project, cp *state.Checkpoint, res *ApplyResult) error {
	if action.Action == ActionSkip {
		res.Skipped++
		return nil
	}

	spec := project.Badges[action.Key]
	fields := BadgeFields{
		Name:        config.ResolveName(spec.Name, action.Key),
		Description: config.DescriptionOrEmpty(spec.Description),
		Enabled:     spec.EnabledFlag(),
	}

	switch action.Action {
	case ActionCreate:
		icon, iconHash, err := r.readIcon(spec.Icon, KindBadge, action.Key)
		if err != nil {
			return err
		}
		fields.Icon = icon
		fields.PaymentSource = string(project.Experience.Creator.Type)
		fields.Cost = r.BadgeCost

		r.Log.Info().Str("kind", string(KindBadge)).Str("key", action.Key).Msg("creating resource")
		remote, err := r.Provider.CreateBadge(ctx, fields)
		if err != nil {
			return NewProviderError("failed to create badge", false, err).WithResource(KindBadge, action.Key)
		}

		cp.Badges[action.Key] = state.BadgeRecord{
			RemoteID:    remote.ID,
			Name:        fields.Name,
			Description: fields.Description,
			Enabled:     fields.Enabled,
			IconAssetID: remote.IconAssetID,
			IconHash:    iconHash,
		}
		return r.commit(cp, res, AppliedResource{Kind: KindBadge, Key: action.Key, Action: ActionCreate, RemoteID: remote.ID})

	case ActionUpdate:
		rec := cp.Badges[action.Key]
		next := state.BadgeRecord{
			RemoteID:    rec.RemoteID,
			Name:        fields.Name,
			Description: fields.Description,
			Enabled:     fields.Enabled,
			IconAssetID: rec.IconAssetID,
			IconHash:    rec.IconHash,
		}

		if fieldsChanged(action.Changes) {
			r.Log.Info().Str("kind", string(KindBadge)).Str("key", action.Key).Int64("id", rec.RemoteID).Msg("updating resource")
			if _, err := r.Provider.UpdateBadge(ctx, rec.RemoteID, fields); err != nil {
				return NewProviderError("failed to update badge", false, err).WithResource(KindBadge, action.Key)
			}
		}

		// Badge icons go through a dedicated endpoint, not the badge update.
		if hasChange(action.Changes, "icon") {
			icon, hash, err := r.readIcon(spec.Icon, KindBadge, action.Key)
			if err != nil {
				return err
			}
			r.Log.Info().Str("kind", string(KindBadge)).Str("key", action.Key).Int64("id", rec.RemoteID).Msg("updating badge icon")
			assetID, err := r.Provider.UpdateBadgeIcon(ctx, rec.RemoteID, icon)
			if err != nil {
				return NewProviderError("failed to update badge icon", false, err).WithResource(KindBadge, action.Key)
			}
			if assetID != nil {
				next.IconAssetID = assetID
			}
			next.IconHash = hash
		}

		cp.Badges[action.Key] = next
		return r.commit(cp, res, AppliedResource{Kind: KindBadge, Key: action.Key, Action: ActionUpdate, RemoteID: rec.RemoteID})
	}

	return nil
}

func (r *Reconciler) applyProduct(ctx context.Context, action ResourceAction, project *config.Project, cp *state.Checkpoint, res *ApplyResult) error {
	if action.Action == ActionSkip {
		res.Skipped++
		return nil
	}

	spec := project.Products[action.Key]
	forSale := spec.ForSaleEnabled()
	fields := ProductFields{
		Name:            config.ResolveName(spec.Name, action.Key),
		Description:     config.DescriptionOrEmpty(spec.Description),
		Price:           spec.Price,
		ForSale:         forSale,
		RegionalPricing: spec.RegionalPricing,
		// A store page listing requires the product to be on sale, so the
		// flag sent to the provider is gated on for_sale. The checkpoint
		// records the desired flag, matching what the planner compares.
		StorePage: spec.StorePage && forSale,
	}

	switch action.Action {
	case ActionCreate:
		icon, iconHash, err := r.readIcon(spec.Icon, KindProduct, action.Key)
		if err != nil {
			return err
		}
		fields.Icon = icon

		r.Log.Info().Str("kind", string(KindProduct)).Str("key", action.Key).Msg("creating resource")
		remote, err := r.Provider.CreateProduct(ctx, fields)
		if err != nil {
			return NewProviderError("failed to create product", false, err).WithResource(KindProduct, action.Key)
		}

		cp.Products[action.Key] = state.ProductRecord{
			RemoteID:        remote.ID,
			Name:            fields.Name,
			Price:           spec.Price,
			Description:     fields.Description,
			IconAssetID:     remote.IconAssetID,
			IconHash:        iconHash,
			ForSale:         forSale,
			RegionalPricing: fields.RegionalPricing,
			StorePage:       spec.StorePage,
		}
		return r.commit(cp, res, AppliedResource{Kind: KindProduct, Key: action.Key, Action: ActionCreate, RemoteID: remote.ID})

	case ActionUpdate:
		rec := cp.Products[action.Key]

		// Taking a store-paged product off sale needs two steps: the remote
		// side rejects isForSale=false while the store page listing is still
		// active, so the listing is removed first with the product still on
		// sale, then the sale flag is dropped. The listing is only live when
		// the product was on sale at the last checkpoint.
		if !forSale && rec.ForSale && rec.StorePage {
			phase := fields
			phase.ForSale = true
			phase.StorePage = false
			phase.Icon = nil
			r.Log.Info().Str("kind", string(KindProduct)).Str("key", action.Key).Int64("id", rec.RemoteID).Msg("removing store page listing before disabling sale")
			if _, err := r.Provider.UpdateProduct(ctx, rec.RemoteID, phase); err != nil {
				return NewProviderError("failed to remove product store page listing", false, err).WithResource(KindProduct, action.Key)
			}
		}

		var iconHash string
		if hasChange(action.Changes, "icon") {
			icon, hash, err := r.readIcon(spec.Icon, KindProduct, action.Key)
			if err != nil {
				return err
			}
			fields.Icon = icon
			iconHash = hash
		}

		r.Log.Info().Str("kind", string(KindProduct)).Str("key", action.Key).Int64("id", rec.RemoteID).Msg("updating resource")
		remote, err := r.Provider.UpdateProduct(ctx, rec.RemoteID, fields)
		if err != nil {
			return NewProviderError("failed to update product", false, err).WithResource(KindProduct, action.Key)
		}

		next := state.ProductRecord{
			RemoteID:        rec.RemoteID,
			Name:            fields.Name,
			Price:           spec.Price,
			Description:     fields.Description,
			IconAssetID:     rec.IconAssetID,
			IconHash:        rec.IconHash,
			ForSale:         forSale,
			RegionalPricing: fields.RegionalPricing,
			StorePage:       spec.StorePage,
		}
		if remote != nil && remote.IconAssetID != nil {
			next.IconAssetID = remote.IconAssetID
		}
		if iconHash != "" {
			next.IconHash = iconHash
		}
		cp.Products[action.Key] = next
		return r.commit(cp, res, AppliedResource{Kind: KindProduct, Key: action.Key, Action: ActionUpdate, RemoteID: rec.RemoteID})
	}

	return nil
}

// commit records a finished action and persists the checkpoint. A persist
// failure aborts the run: continuing would let further mutations outrun the
// durable record.
func (r *Reconciler) commit(cp *state.Checkpoint, res *ApplyResult, applied AppliedResource) error {
	if err := r.Sink.Persist(cp); err != nil {
		return fmt.Errorf("failed to persist checkpoint after %s of %s %q: %w", applied.Action, applied.Kind, applied.Key, err)
	}
	res.Applied = append(res.Applied, applied)
	switch applied.Action {
	case ActionCreate:
		res.Created++
	case ActionUpdate:
		res.Updated++
	}
	return nil
}

// readIcon loads and fingerprints local icon content. The fingerprint always
// covers the raw file bytes, before any upload-time processing.
func (r *Reconciler) readIcon(iconPath string, kind Kind, key string) ([]byte, string, error) {
	if iconPath == "" {
		return nil, "", nil
	}
	data, err := r.Content.ReadBytes(filepath.Join(r.BaseDir, iconPath))
	if err != nil {
		return nil, "", NewValidationError("failed to read icon", err).WithResource(kind, key)
	}
	return data, r.Content.Fingerprint(data), nil
}

func hasChange(changes []FieldChange, field string) bool {
	for _, c := range changes {
		if c.Field == field {
			return true
		}
	}
	return false
}

// fieldsChanged reports whether any non-icon field differs.
func fieldsChanged(changes []FieldChange) bool {
	for _, c := range changes {
		if c.Field != "icon" {
			return true
		}
	}
	return false
}
