// Package state holds the applied-state checkpoint (rbxsync.lock.toml): the
// durable record of the last successfully reconciled remote identity and
// content fingerprint per resource.
//
// The checkpoint is an explicit value owned by the caller. The engine never
// touches the filesystem for it; persistence is an injected capability invoked
// after every successful remote mutation, so the durable checkpoint always
// reflects exactly the set of mutations that have completed.
package state

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileName is the conventional checkpoint document name, stored next to the
// desired-state document.
const FileName = "rbxsync.lock.toml"

// SchemaVersion is the current checkpoint schema version.
const SchemaVersion = 1

// Checkpoint is the applied state for one universe.
type Checkpoint struct {
	Version    int   `toml:"version"`
	UniverseID int64 `toml:"universe_id"`

	Passes   map[string]PassRecord    `toml:"passes,omitempty"`
	Badges   map[string]BadgeRecord   `toml:"badges,omitempty"`
	Products map[string]ProductRecord `toml:"products,omitempty"`
}

// PassRecord mirrors the last-applied state of a game pass.
//
// RemoteID is assigned once on create and never changes. IconHash is the
// fingerprint of the icon bytes last uploaded or downloaded by this tool; it
// is never inferred from remote state alone.
type PassRecord struct {
	RemoteID        int64  `toml:"id"`
	Name            string `toml:"name"`
	Price           *int64 `toml:"price,omitempty"`
	Description     string `toml:"description,omitempty"`
	IconAssetID     *int64 `toml:"icon_asset_id,omitempty"`
	IconHash        string `toml:"icon_hash,omitempty"`
	ForSale         bool   `toml:"for_sale"`
	RegionalPricing bool   `toml:"regional_pricing,omitempty"`
}

// BadgeRecord mirrors the last-applied state of a badge.
type BadgeRecord struct {
	RemoteID    int64  `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description,omitempty"`
	Enabled     bool   `toml:"enabled"`
	IconAssetID *int64 `toml:"icon_asset_id,omitempty"`
	IconHash    string `toml:"icon_hash,omitempty"`
}

// ProductRecord mirrors the last-applied state of a developer product.
type ProductRecord struct {
	RemoteID        int64  `toml:"id"`
	Name            string `toml:"name"`
	Price           int64  `toml:"price"`
	Description     string `toml:"description,omitempty"`
	IconAssetID     *int64 `toml:"icon_asset_id,omitempty"`
	IconHash        string `toml:"icon_hash,omitempty"`
	ForSale         bool   `toml:"for_sale"`
	RegionalPricing bool   `toml:"regional_pricing,omitempty"`
	StorePage       bool   `toml:"store_page,omitempty"`
}

// New returns an empty checkpoint at the current schema version.
func New(universeID int64) *Checkpoint {
	return &Checkpoint{
		Version:    SchemaVersion,
		UniverseID: universeID,
		Passes:     map[string]PassRecord{},
		Badges:     map[string]BadgeRecord{},
		Products:   map[string]ProductRecord{},
	}
}

// Load reads the checkpoint at path. A missing file yields an empty
// checkpoint; a newer schema version than this build understands is an error.
func Load(path string) (*Checkpoint, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(0), nil
	}

	var cp Checkpoint
	if _, err := toml.DecodeFile(path, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cp.Version > SchemaVersion {
		return nil, fmt.Errorf("%s: schema version %d is newer than supported version %d", path, cp.Version, SchemaVersion)
	}
	cp.ensureMaps()
	return &cp, nil
}

// Save writes the checkpoint to path, wholesale.
func Save(cp *Checkpoint, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(cp); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// Clone returns a deep copy. Drift detection builds its candidate state on a
// copy so a failed pull leaves the caller's checkpoint untouched.
func (cp *Checkpoint) Clone() *Checkpoint {
	out := &Checkpoint{
		Version:    cp.Version,
		UniverseID: cp.UniverseID,
		Passes:     make(map[string]PassRecord, len(cp.Passes)),
		Badges:     make(map[string]BadgeRecord, len(cp.Badges)),
		Products:   make(map[string]ProductRecord, len(cp.Products)),
	}
	for k, v := range cp.Passes {
		out.Passes[k] = clonePass(v)
	}
	for k, v := range cp.Badges {
		out.Badges[k] = cloneBadge(v)
	}
	for k, v := range cp.Products {
		out.Products[k] = cloneProduct(v)
	}
	return out
}

func (cp *Checkpoint) ensureMaps() {
	if cp.Passes == nil {
		cp.Passes = map[string]PassRecord{}
	}
	if cp.Badges == nil {
		cp.Badges = map[string]BadgeRecord{}
	}
	if cp.Products == nil {
		cp.Products = map[string]ProductRecord{}
	}
}

func clonePass(r PassRecord) PassRecord {
	r.Price = cloneInt64(r.Price)
	r.IconAssetID = cloneInt64(r.IconAssetID)
	return r
}

func cloneBadge(r BadgeRecord) BadgeRecord {
	r.IconAssetID = cloneInt64(r.IconAssetID)
	return r
}

func cloneProduct(r ProductRecord) ProductRecord {
	r.IconAssetID = cloneInt64(r.IconAssetID)
	return r
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
