package engine

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/content"
	"github.com/rbxsync/rbxsync/pkg/state"
)

// DriftDetector pulls live remote state and merges it into the desired state
// and checkpoint.
//
// The merge is three-way: for each resource the remote observation, the
// checkpoint (the last state this tool applied), and the local desired state
// are combined. Remote-visible fields flow into the desired state; config-only
// fields (icon path, codegen path, regional pricing) are preserved. Icon
// content needs explicit resolution because the fingerprint of remote bytes is
// unknown until downloaded.
type DriftDetector struct {
	Provider Provider
	Content  content.Store

	// BaseDir resolves icon paths, normally the config file's directory.
	BaseDir string

	Log zerolog.Logger
}

// PullOptions controls a drift pull.
type PullOptions struct {
	// AcceptRemote resolves icon conflicts by downloading the remote icon and
	// refingerprinting it.
	AcceptRemote bool

	// AcceptLocal resolves icon conflicts by clearing the recorded fingerprint
	// so the next reconciliation re-uploads the local icon.
	AcceptLocal bool

	// DryRun reports differences without mutating anything or downloading.
	DryRun bool
}

// ResourceDiff is one observed difference between checkpoint and remote.
type ResourceDiff struct {
	Kind     Kind
	Key      string
	RemoteID int64
	New      bool
	Removed  bool
	Changes  []FieldChange
}

// ConfigChange is one desired-state mutation performed by the merge.
type ConfigChange struct {
	Kind    Kind
	Key     string
	New     bool
	Changes []string
}

// DownloadedIcon records one remote icon written to local content.
type DownloadedIcon struct {
	Kind Kind
	Key  string
	Path string
}

// PullReport is the outcome of a drift pull.
type PullReport struct {
	// Checkpoint is the merged candidate checkpoint. Nil on dry runs, where
	// icon fingerprints were never resolved.
	Checkpoint *state.Checkpoint

	Diffs         []ResourceDiff
	ConfigChanges []ConfigChange
	Downloads     []DownloadedIcon
	Warnings      []string
}

// HasDiff reports whether the pull observed any difference.
func (r *PullReport) HasDiff() bool {
	return len(r.Diffs) > 0 || len(r.ConfigChanges) > 0
}

type pendingDownload struct {
	kind     Kind
	key      string
	assetID  int64
	savePath string
	relPath  string
}

// Pull fetches remote state, merges it into project, and returns the merged
// checkpoint. On success the caller persists both; on error neither has been
// durably changed (project may carry in-memory edits the caller must discard).
//
// Unresolved icon conflicts fail the pull atomically with a ConflictError
// listing every conflict. Dry runs report differences only.
func (d *DriftDetector) Pull(ctx context.Context, project *config.Project, cp *state.Checkpoint, opts PullOptions) (*PullReport, error) {
	report := &PullReport{}
	ensureSpecMaps(project)

	passIndex := reverseIndex(cp.Passes, func(r state.PassRecord) int64 { return r.RemoteID })
	badgeIndex := reverseIndex(cp.Badges, func(r state.BadgeRecord) int64 { return r.RemoteID })
	productIndex := reverseIndex(cp.Products, func(r state.ProductRecord) int64 { return r.RemoteID })

	candidate := state.New(project.Experience.UniverseID)

	remotePasses, err := d.Provider.ListPasses(ctx)
	if err != nil {
		return nil, NewProviderError("failed to list passes", false, err)
	}
	for _, remote := range remotePasses {
		key := adoptKey(passIndex, remote.ID, remote.Name)
		if _, dup := candidate.Passes[key]; dup {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("duplicate pass name %q (id %d), skipping", remote.Name, remote.ID))
			continue
		}
		candidate.Passes[key] = state.PassRecord{
			RemoteID:    remote.ID,
			Name:        remote.Name,
			Price:       remote.Price,
			Description: remote.Description,
			IconAssetID: remote.IconAssetID,
			ForSale:     remote.ForSale,
		}
	}

	remoteBadges, err := d.Provider.ListBadges(ctx)
	if err != nil {
		return nil, NewProviderError("failed to list badges", false, err)
	}
	seenBadges := map[int64]bool{}
	for _, remote := range remoteBadges {
		seenBadges[remote.ID] = true
		key := adoptKey(badgeIndex, remote.ID, remote.Name)
		if _, dup := candidate.Badges[key]; dup {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("duplicate badge name %q (id %d), skipping", remote.Name, remote.ID))
			continue
		}
		candidate.Badges[key] = state.BadgeRecord{
			RemoteID:    remote.ID,
			Name:        remote.Name,
			Description: remote.Description,
			Enabled:     remote.Enabled,
			IconAssetID: remote.IconAssetID,
		}
	}

	// The badge listing omits badges in a disabled state, so a checkpoint
	// badge missing from it is fetched individually before it is concluded
	// removed.
	for _, key := range sortedKeys(cp.Badges) {
		rec := cp.Badges[key]
		if seenBadges[rec.RemoteID] {
			continue
		}
		remote, err := d.Provider.GetBadge(ctx, rec.RemoteID)
		if err != nil || remote == nil {
			d.Log.Debug().Str("key", key).Int64("id", rec.RemoteID).Msg("badge absent from listing and individual fetch, treating as removed")
			continue
		}
		candidate.Badges[key] = state.BadgeRecord{
			RemoteID:    remote.ID,
			Name:        remote.Name,
			Description: remote.Description,
			Enabled:     remote.Enabled,
			IconAssetID: remote.IconAssetID,
		}
	}

	remoteProducts, err := d.Provider.ListProducts(ctx)
	if err != nil {
		return nil, NewProviderError("failed to list products", false, err)
	}
	for _, remote := range remoteProducts {
		key := adoptKey(productIndex, remote.ID, remote.Name)
		if _, dup := candidate.Products[key]; dup {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("duplicate product name %q (id %d), skipping", remote.Name, remote.ID))
			continue
		}
		var price int64
		if remote.Price != nil {
			price = *remote.Price
		}
		candidate.Products[key] = state.ProductRecord{
			RemoteID:    remote.ID,
			Name:        remote.Name,
			Price:       price,
			Description: remote.Description,
			IconAssetID: remote.IconAssetID,
			ForSale:     remote.ForSale,
			StorePage:   remote.StorePage,
		}
	}

	report.Diffs = diffCheckpoints(cp, candidate)
	report.ConfigChanges = d.mergeConfig(project, candidate)

	if opts.DryRun {
		return report, nil
	}

	var conflicts []Conflict
	var downloads []pendingDownload

	for _, key := range sortedKeys(candidate.Passes) {
		rec := candidate.Passes[key]
		var oldID *int64
		var oldHash string
		if old, ok := cp.Passes[key]; ok {
			oldID = old.IconAssetID
			oldHash = old.IconHash
		}
		var localIcon string
		if spec, ok := project.Passes[key]; ok {
			localIcon = spec.Icon
		}
		hash, err := d.resolveIcon(KindPass, key, rec.RemoteID, oldID, rec.IconAssetID, oldHash, localIcon, project.Icons, opts, &conflicts, &downloads)
		if err != nil {
			return nil, err
		}
		rec.IconHash = hash
		candidate.Passes[key] = rec
	}

	for _, key := range sortedKeys(candidate.Badges) {
		rec := candidate.Badges[key]
		var oldID *int64
		var oldHash string
		if old, ok := cp.Badges[key]; ok {
			oldID = old.IconAssetID
			oldHash = old.IconHash
		}
		var localIcon string
		if spec, ok := project.Badges[key]; ok {
			localIcon = spec.Icon
		}
		hash, err := d.resolveIcon(KindBadge, key, rec.RemoteID, oldID, rec.IconAssetID, oldHash, localIcon, project.Icons, opts, &conflicts, &downloads)
		if err != nil {
			return nil, err
		}
		rec.IconHash = hash
		candidate.Badges[key] = rec
	}

	for _, key := range sortedKeys(candidate.Products) {
		rec := candidate.Products[key]
		var oldID *int64
		var oldHash string
		if old, ok := cp.Products[key]; ok {
			oldID = old.IconAssetID
			oldHash = old.IconHash
		}
		var localIcon string
		if spec, ok := project.Products[key]; ok {
			localIcon = spec.Icon
		}
		hash, err := d.resolveIcon(KindProduct, key, rec.RemoteID, oldID, rec.IconAssetID, oldHash, localIcon, project.Icons, opts, &conflicts, &downloads)
		if err != nil {
			return nil, err
		}
		rec.IconHash = hash
		candidate.Products[key] = rec
	}

	// All conflicts are reported together; nothing has been downloaded or
	// written at this point.
	if len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	for _, dl := range downloads {
		d.Log.Info().Str("kind", string(dl.kind)).Str("key", dl.key).Int64("asset_id", dl.assetID).Msg("downloading remote icon")
		data, err := d.Provider.DownloadAsset(ctx, dl.assetID)
		if err != nil {
			return nil, NewProviderError("failed to download icon", false, err).WithResource(dl.kind, dl.key)
		}
		if err := d.Content.WriteBytes(dl.savePath, data); err != nil {
			return nil, NewValidationError("failed to save downloaded icon", err).WithResource(dl.kind, dl.key)
		}
		hash := d.Content.Fingerprint(data)

		switch dl.kind {
		case KindPass:
			rec := candidate.Passes[dl.key]
			rec.IconHash = hash
			candidate.Passes[dl.key] = rec
			if spec, ok := project.Passes[dl.key]; ok && spec.Icon == "" {
				spec.Icon = dl.relPath
			}
		case KindBadge:
			rec := candidate.Badges[dl.key]
			rec.IconHash = hash
			candidate.Badges[dl.key] = rec
			if spec, ok := project.Badges[dl.key]; ok && spec.Icon == "" {
				spec.Icon = dl.relPath
			}
		case KindProduct:
			rec := candidate.Products[dl.key]
			rec.IconHash = hash
			candidate.Products[dl.key] = rec
			if spec, ok := project.Products[dl.key]; ok && spec.Icon == "" {
				spec.Icon = dl.relPath
			}
		}
		report.Downloads = append(report.Downloads, DownloadedIcon{Kind: dl.kind, Key: dl.key, Path: dl.relPath})
	}

	report.Checkpoint = candidate
	return report, nil
}

// adoptKey maps a remote resource to a local key: the checkpoint's key when
// the id is known, otherwise the remote display name.
func adoptKey(index map[int64]string, id int64, name string) string {
	if key, ok := index[id]; ok {
		return key
	}
	if name == "" {
		return "unnamed"
	}
	return name
}

func reverseIndex[R any](m map[string]R, id func(R) int64) map[int64]string {
	out := make(map[int64]string, len(m))
	for k, v := range m {
		out[id(v)] = k
	}
	return out
}

// resolveIcon decides the candidate record's fingerprint for one resource.
//
// An unchanged remote icon id preserves the checkpoint fingerprint. A changed
// id resolves per flags: accept-remote schedules a download (fingerprint set
// afterwards), accept-local clears the fingerprint so the next sync re-uploads,
// and with neither flag a configured local icon is a conflict while a missing
// one just clears the fingerprint.
func (d *DriftDetector) resolveIcon(kind Kind, key string, resourceID int64, oldID, newID *int64, oldHash, localIcon string, icons config.IconsConfig, opts PullOptions, conflicts *[]Conflict, downloads *[]pendingDownload) (string, error) {
	if eqOptInt64(oldID, newID) {
		return oldHash, nil
	}

	if opts.AcceptRemote {
		if newID == nil {
			return "", nil
		}
		relPath := localIcon
		if relPath == "" {
			relPath = path.Join(icons.EffectiveDir(), fmt.Sprintf("%s-%d-%s.png", kind, resourceID, key))
		}
		*downloads = append(*downloads, pendingDownload{
			kind:     kind,
			key:      key,
			assetID:  *newID,
			savePath: filepath.Join(d.BaseDir, filepath.FromSlash(relPath)),
			relPath:  relPath,
		})
		return "", nil
	}

	if opts.AcceptLocal {
		return "", nil
	}

	if localIcon == "" {
		return "", nil
	}

	data, err := d.Content.ReadBytes(filepath.Join(d.BaseDir, localIcon))
	if err != nil {
		return "", NewValidationError("failed to read icon", err).WithResource(kind, key)
	}
	*conflicts = append(*conflicts, Conflict{
		Kind:          kind,
		Key:           key,
		LocalPath:     localIcon,
		LocalHash:     d.Content.Fingerprint(data),
		RemoteAssetID: formatOptInt64(newID),
	})
	return "", nil
}

// mergeConfig folds remote-visible fields of the candidate checkpoint into the
// desired state. Unknown resources are adopted as new entries; known ones have
// only their remote-visible fields updated, preserving icon paths, codegen
// placement, and regional pricing.
func (d *DriftDetector) mergeConfig(project *config.Project, candidate *state.Checkpoint) []ConfigChange {
	var changes []ConfigChange

	for _, key := range sortedKeys(candidate.Passes) {
		rec := candidate.Passes[key]
		spec, ok := project.Passes[key]
		if !ok {
			project.Passes[key] = &config.PassSpec{
				Name:        nameOverride(rec.Name, key),
				Price:       rec.Price,
				Description: strPtrOrNil(rec.Description),
				ForSale:     boolPtr(rec.ForSale),
			}
			changes = append(changes, ConfigChange{Kind: KindPass, Key: key, New: true})
			continue
		}

		var fields []string
		if config.ResolveName(spec.Name, key) != rec.Name {
			fields = append(fields, fmt.Sprintf("name: %s -> %s", config.ResolveName(spec.Name, key), rec.Name))
			spec.Name = nameOverride(rec.Name, key)
		}
		if !eqOptInt64(spec.Price, rec.Price) {
			fields = append(fields, fmt.Sprintf("price: %s -> %s", formatOptInt64(spec.Price), formatOptInt64(rec.Price)))
			spec.Price = rec.Price
		}
		if config.DescriptionOrEmpty(spec.Description) != rec.Description {
			fields = append(fields, fmt.Sprintf("description: %q -> %q", config.DescriptionOrEmpty(spec.Description), rec.Description))
			spec.Description = strPtrOrNil(rec.Description)
		}
		if spec.ForSaleEnabled() != rec.ForSale {
			fields = append(fields, fmt.Sprintf("for_sale: %t -> %t", spec.ForSaleEnabled(), rec.ForSale))
			spec.ForSale = boolPtr(rec.ForSale)
		}
		if len(fields) > 0 {
			changes = append(changes, ConfigChange{Kind: KindPass, Key: key, Changes: fields})
		}
	}

	for _, key := range sortedKeys(candidate.Badges) {
		rec := candidate.Badges[key]
		spec, ok := project.Badges[key]
		if !ok {
			project.Badges[key] = &config.BadgeSpec{
				Name:        nameOverride(rec.Name, key),
				Description: strPtrOrNil(rec.Description),
				Enabled:     boolPtr(rec.Enabled),
			}
			changes = append(changes, ConfigChange{Kind: KindBadge, Key: key, New: true})
			continue
		}

		var fields []string
		if config.ResolveName(spec.Name, key) != rec.Name {
			fields = append(fields, fmt.Sprintf("name: %s -> %s", config.ResolveName(spec.Name, key), rec.Name))
			spec.Name = nameOverride(rec.Name, key)
		}
		if config.DescriptionOrEmpty(spec.Description) != rec.Description {
			fields = append(fields, fmt.Sprintf("description: %q -> %q", config.DescriptionOrEmpty(spec.Description), rec.Description))
			spec.Description = strPtrOrNil(rec.Description)
		}
		if spec.EnabledFlag() != rec.Enabled {
			fields = append(fields, fmt.Sprintf("enabled: %t -> %t", spec.EnabledFlag(), rec.Enabled))
			spec.Enabled = boolPtr(rec.Enabled)
		}
		if len(fields) > 0 {
			changes = append(changes, ConfigChange{Kind: KindBadge, Key: key, Changes: fields})
		}
	}

	for _, key := range sortedKeys(candidate.Products) {
		rec := candidate.Products[key]
		spec, ok := project.Products[key]
		if !ok {
			project.Products[key] = &config.ProductSpec{
				Name:        nameOverride(rec.Name, key),
				Price:       rec.Price,
				Description: strPtrOrNil(rec.Description),
				ForSale:     boolPtr(rec.ForSale),
				StorePage:   rec.StorePage,
			}
			changes = append(changes, ConfigChange{Kind: KindProduct, Key: key, New: true})
			continue
		}

		var fields []string
		if config.ResolveName(spec.Name, key) != rec.Name {
			fields = append(fields, fmt.Sprintf("name: %s -> %s", config.ResolveName(spec.Name, key), rec.Name))
			spec.Name = nameOverride(rec.Name, key)
		}
		if spec.Price != rec.Price {
			fields = append(fields, fmt.Sprintf("price: %d -> %d", spec.Price, rec.Price))
			spec.Price = rec.Price
		}
		if config.DescriptionOrEmpty(spec.Description) != rec.Description {
			fields = append(fields, fmt.Sprintf("description: %q -> %q", config.DescriptionOrEmpty(spec.Description), rec.Description))
			spec.Description = strPtrOrNil(rec.Description)
		}
		if spec.ForSaleEnabled() != rec.ForSale {
			fields = append(fields, fmt.Sprintf("for_sale: %t -> %t", spec.ForSaleEnabled(), rec.ForSale))
			spec.ForSale = boolPtr(rec.ForSale)
		}
		if spec.StorePage != rec.StorePage {
			fields = append(fields, fmt.Sprintf("store_page: %t -> %t", spec.StorePage, rec.StorePage))
			spec.StorePage = rec.StorePage
		}
		if len(fields) > 0 {
			changes = append(changes, ConfigChange{Kind: KindProduct, Key: key, Changes: fields})
		}
	}

	return changes
}

// diffCheckpoints compares the old checkpoint against the remote candidate,
// listing per-resource field changes plus new and removed resources.
func diffCheckpoints(old, candidate *state.Checkpoint) []ResourceDiff {
	var diffs []ResourceDiff

	for _, key := range sortedKeys(candidate.Passes) {
		rec := candidate.Passes[key]
		prev, ok := old.Passes[key]
		if !ok {
			diffs = append(diffs, ResourceDiff{Kind: KindPass, Key: key, RemoteID: rec.RemoteID, New: true})
			continue
		}
		var changes []FieldChange
		if prev.Name != rec.Name {
			changes = append(changes, FieldChange{Field: "name", Old: prev.Name, New: rec.Name})
		}
		if !eqOptInt64(prev.Price, rec.Price) {
			changes = append(changes, FieldChange{Field: "price", Old: formatOptInt64(prev.Price), New: formatOptInt64(rec.Price)})
		}
		if prev.Description != rec.Description {
			changes = append(changes, FieldChange{Field: "description", Old: prev.Description, New: rec.Description})
		}
		if prev.ForSale != rec.ForSale {
			changes = append(changes, FieldChange{Field: "for_sale", Old: fmt.Sprint(prev.ForSale), New: fmt.Sprint(rec.ForSale)})
		}
		if !eqOptInt64(prev.IconAssetID, rec.IconAssetID) {
			changes = append(changes, FieldChange{Field: "icon", Old: formatOptInt64(prev.IconAssetID), New: formatOptInt64(rec.IconAssetID)})
		}
		if len(changes) > 0 {
			diffs = append(diffs, ResourceDiff{Kind: KindPass, Key: key, RemoteID: rec.RemoteID, Changes: changes})
		}
	}
	for _, key := range sortedKeys(old.Passes) {
		if _, ok := candidate.Passes[key]; !ok {
			diffs = append(diffs, ResourceDiff{Kind: KindPass, Key: key, RemoteID: old.Passes[key].RemoteID, Removed: true})
		}
	}

	for _, key := range sortedKeys(candidate.Badges) {
		rec := candidate.Badges[key]
		prev, ok := old.Badges[key]
		if !ok {
			diffs = append(diffs, ResourceDiff{Kind: KindBadge, Key: key, RemoteID: rec.RemoteID, New: true})
			continue
		}
		var changes []FieldChange
		if prev.Name != rec.Name {
			changes = append(changes, FieldChange{Field: "name", Old: prev.Name, New: rec.Name})
		}
		if prev.Description != rec.Description {
			changes = append(changes, FieldChange{Field: "description", Old: prev.Description, New: rec.Description})
		}
		if prev.Enabled != rec.Enabled {
			changes = append(changes, FieldChange{Field: "enabled", Old: fmt.Sprint(prev.Enabled), New: fmt.Sprint(rec.Enabled)})
		}
		if !eqOptInt64(prev.IconAssetID, rec.IconAssetID) {
			changes = append(changes, FieldChange{Field: "icon", Old: formatOptInt64(prev.IconAssetID), New: formatOptInt64(rec.IconAssetID)})
		}
		if len(changes) > 0 {
			diffs = append(diffs, ResourceDiff{Kind: KindBadge, Key: key, RemoteID: rec.RemoteID, Changes: changes})
		}
	}
	for _, key := range sortedKeys(old.Badges) {
		if _, ok := candidate.Badges[key]; !ok {
			diffs = append(diffs, ResourceDiff{Kind: KindBadge, Key: key, RemoteID: old.Badges[key].RemoteID, Removed: true})
		}
	}

	for _, key := range sortedKeys(candidate.Products) {
		rec := candidate.Products[key]
		prev, ok := old.Products[key]
		if !ok {
			diffs = append(diffs, ResourceDiff{Kind: KindProduct, Key: key, RemoteID: rec.RemoteID, New: true})
			continue
		}
		var changes []FieldChange
		if prev.Name != rec.Name {
			changes = append(changes, FieldChange{Field: "name", Old: prev.Name, New: rec.Name})
		}
		if prev.Price != rec.Price {
			changes = append(changes, FieldChange{Field: "price", Old: fmt.Sprint(prev.Price), New: fmt.Sprint(rec.Price)})
		}
		if prev.Description != rec.Description {
			changes = append(changes, FieldChange{Field: "description", Old: prev.Description, New: rec.Description})
		}
		if prev.ForSale != rec.ForSale {
			changes = append(changes, FieldChange{Field: "for_sale", Old: fmt.Sprint(prev.ForSale), New: fmt.Sprint(rec.ForSale)})
		}
		if prev.StorePage != rec.StorePage {
			changes = append(changes, FieldChange{Field: "store_page", Old: fmt.Sprint(prev.StorePage), New: fmt.Sprint(rec.StorePage)})
		}
		if !eqOptInt64(prev.IconAssetID, rec.IconAssetID) {
			changes = append(changes, FieldChange{Field: "icon", Old: formatOptInt64(prev.IconAssetID), New: formatOptInt64(rec.IconAssetID)})
		}
		if len(changes) > 0 {
			diffs = append(diffs, ResourceDiff{Kind: KindProduct, Key: key, RemoteID: rec.RemoteID, Changes: changes})
		}
	}
	for _, key := range sortedKeys(old.Products) {
		if _, ok := candidate.Products[key]; !ok {
			diffs = append(diffs, ResourceDiff{Kind: KindProduct, Key: key, RemoteID: old.Products[key].RemoteID, Removed: true})
		}
	}

	return diffs
}

func ensureSpecMaps(project *config.Project) {
	if project.Passes == nil {
		project.Passes = map[string]*config.PassSpec{}
	}
	if project.Badges == nil {
		project.Badges = map[string]*config.BadgeSpec{}
	}
	if project.Products == nil {
		project.Products = map[string]*config.ProductSpec{}
	}
}

// nameOverride returns nil when the remote display name matches the key, so
// the desired state stays minimal.
func nameOverride(name, key string) *string {
	if name == key {
		return nil
	}
	n := name
	return &n
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	v := s
	return &v
}

func boolPtr(b bool) *bool { return &b }
