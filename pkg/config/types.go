package config

// Project is the desired state: the parsed rbxsync.toml document.
//
// Resource maps are keyed by a user-chosen key that is stable across renames
// of the remote-visible display name. Optional fields are pointers so that a
// field that is absent from the document can be distinguished from one that is
// present with a zero value; this matters for price, where "no price" and
// "price = 0" are different desired states.
type Project struct {
	Experience Experience `toml:"experience" validate:"required"`

	Codegen CodegenConfig `toml:"codegen,omitempty"`

	Icons IconsConfig `toml:"icons,omitempty"`

	Passes map[string]*PassSpec `toml:"passes,omitempty" validate:"dive"`

	Badges map[string]*BadgeSpec `toml:"badges,omitempty" validate:"dive"`

	Products map[string]*ProductSpec `toml:"products,omitempty" validate:"dive"`
}

// Experience identifies the universe and its creator.
type Experience struct {
	UniverseID int64   `toml:"universe_id" validate:"required,gt=0"`
	Creator    Creator `toml:"creator" validate:"required"`
}

// Creator is the owning user or group, used as the badge payment source.
type Creator struct {
	Type CreatorType `toml:"type" validate:"required,oneof=user group"`
	ID   int64       `toml:"id" validate:"required,gt=0"`
}

// CreatorType is the kind of creator that owns the experience.
type CreatorType string

const (
	CreatorUser  CreatorType = "user"
	CreatorGroup CreatorType = "group"
)

// CodegenStyle selects how generated keys are laid out.
type CodegenStyle string

const (
	// StyleFlat emits path-like keys: GameIds["passes.VIP"].
	StyleFlat CodegenStyle = "flat"
	// StyleNested emits nested tables: GameIds.passes.VIP.
	StyleNested CodegenStyle = "nested"
)

// CodegenConfig controls generation of the asset-id source module.
type CodegenConfig struct {
	// Output is the Luau file to generate; empty disables codegen.
	Output string `toml:"output,omitempty"`

	// TypeScript also generates a .d.ts next to Output.
	TypeScript bool `toml:"typescript,omitempty"`

	// Style is "flat" (default) or "nested".
	Style CodegenStyle `toml:"style,omitempty" validate:"omitempty,oneof=flat nested"`

	Paths CodegenPaths `toml:"paths,omitempty"`

	// Extra injects pre-existing assets: dotted path -> asset id.
	Extra map[string]int64 `toml:"extra,omitempty"`
}

// CodegenPaths overrides the default section prefixes per kind.
type CodegenPaths struct {
	Passes   string `toml:"passes,omitempty"`
	Badges   string `toml:"badges,omitempty"`
	Products string `toml:"products,omitempty"`
}

// IconsConfig controls icon handling.
type IconsConfig struct {
	// Bleed applies alpha bleed before upload. Defaults to true.
	Bleed *bool `toml:"bleed,omitempty"`

	// Dir is the directory for downloaded icons. Defaults to "icons".
	Dir string `toml:"dir,omitempty"`
}

// BleedEnabled reports the effective bleed setting.
func (c IconsConfig) BleedEnabled() bool {
	return c.Bleed == nil || *c.Bleed
}

// EffectiveDir reports the effective icon directory.
func (c IconsConfig) EffectiveDir() string {
	if c.Dir == "" {
		return "icons"
	}
	return c.Dir
}

// PassSpec is the desired state of one game pass.
type PassSpec struct {
	// Name overrides the remote display name; defaults to the key.
	Name *string `toml:"name,omitempty" validate:"omitempty,min=1,max=50"`

	Price *int64 `toml:"price,omitempty" validate:"omitempty,gte=0"`

	Description *string `toml:"description,omitempty" validate:"omitempty,max=1000"`

	// Icon is a path to local icon content, relative to the config file.
	Icon string `toml:"icon,omitempty"`

	// ForSale defaults to true.
	ForSale *bool `toml:"for_sale,omitempty"`

	RegionalPricing bool `toml:"regional_pricing,omitempty"`

	// Path overrides the codegen placement; reconciliation ignores it.
	Path string `toml:"path,omitempty"`
}

// BadgeSpec is the desired state of one badge.
type BadgeSpec struct {
	Name *string `toml:"name,omitempty" validate:"omitempty,min=1,max=50"`

	Description *string `toml:"description,omitempty" validate:"omitempty,max=1000"`

	Icon string `toml:"icon,omitempty"`

	// Enabled defaults to true.
	Enabled *bool `toml:"enabled,omitempty"`

	Path string `toml:"path,omitempty"`
}

// ProductSpec is the desired state of one developer product.
type ProductSpec struct {
	Name *string `toml:"name,omitempty" validate:"omitempty,min=1,max=50"`

	// Price is required for products.
	Price int64 `toml:"price" validate:"gte=0"`

	Description *string `toml:"description,omitempty" validate:"omitempty,max=1000"`

	Icon string `toml:"icon,omitempty"`

	ForSale *bool `toml:"for_sale,omitempty"`

	RegionalPricing bool `toml:"regional_pricing,omitempty"`

	// StorePage lists the product on the experience store page.
	StorePage bool `toml:"store_page,omitempty"`

	Path string `toml:"path,omitempty"`
}

// ResolveName returns the effective display name: the explicit override when
// set, otherwise the resource key.
func ResolveName(override *string, key string) string {
	if override != nil && *override != "" {
		return *override
	}
	return key
}

// BoolOrTrue resolves an optional flag that defaults to true.
func BoolOrTrue(b *bool) bool {
	return b == nil || *b
}

// ForSaleEnabled reports the effective for-sale flag.
func (p *PassSpec) ForSaleEnabled() bool { return BoolOrTrue(p.ForSale) }

// EnabledFlag reports the effective enabled flag.
func (b *BadgeSpec) EnabledFlag() bool { return BoolOrTrue(b.Enabled) }

// ForSaleEnabled reports the effective for-sale flag.
func (p *ProductSpec) ForSaleEnabled() bool { return BoolOrTrue(p.ForSale) }

// DescriptionOrEmpty resolves an optional description for comparison.
func DescriptionOrEmpty(d *string) string {
	if d == nil {
		return ""
	}
	return *d
}
