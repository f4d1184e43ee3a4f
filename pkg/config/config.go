// Package config loads, validates and saves the desired-state document
// (rbxsync.toml) and the process environment settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// DefaultFileName is the conventional desired-state document name.
const DefaultFileName = "rbxsync.toml"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates the desired-state document at path.
//
// Validation runs before any network activity: schema constraints first, then
// existence of every referenced icon path (resolved relative to the config
// file's directory).
func Load(path string) (*Project, error) {
	var project Project
	if _, err := toml.DecodeFile(path, &project); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := validate.Struct(&project); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if err := project.checkIconPaths(filepath.Dir(path)); err != nil {
		return nil, err
	}

	return &project, nil
}

// Save writes the document to path.
func Save(project *Project, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(project); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func (p *Project) checkIconPaths(baseDir string) error {
	check := func(kind, key, icon string) error {
		if icon == "" {
			return nil
		}
		full := filepath.Join(baseDir, icon)
		if _, err := os.Stat(full); err != nil {
			return fmt.Errorf("%s %q: icon path does not exist: %s", kind, key, full)
		}
		return nil
	}

	for key, pass := range p.Passes {
		if err := check("pass", key, pass.Icon); err != nil {
			return err
		}
	}
	for key, badge := range p.Badges {
		if err := check("badge", key, badge.Icon); err != nil {
			return err
		}
	}
	for key, product := range p.Products {
		if err := check("product", key, product.Icon); err != nil {
			return err
		}
	}
	return nil
}

// DefaultTemplate is the commented starter document written by `rbxsync init`.
const DefaultTemplate = `# rbxsync configuration

[experience]
universe_id = 0        # Your Roblox universe ID

[experience.creator]
type = "user"          # "user" or "group"
id = 0                 # Your Roblox user or group ID

# Codegen - generate a Luau module with asset IDs
# [codegen]
# output = "src/shared/GameIds.luau"
# typescript = false            # Also generate a .d.ts file
# style = "flat"                # "flat" (default) or "nested"
#                               # flat:   GameIds["passes.VIP"]
#                               # nested: GameIds.passes.VIP

# Custom paths - dot-separated, used as prefix (flat) or nesting (nested)
# [codegen.paths]
# passes = "player.vips"
# products = "shop.items"

# Extra entries - pre-existing assets injected into the generated file
# [codegen.extra]
# "passes.legacy_vip" = 1234567

# Icon settings
# [icons]
# bleed = true         # Apply alpha bleed (fixes resize artifacts)
# dir = "icons"        # Directory for downloaded icons

# Game Passes
# [passes.VIP]
# name = "VIP Pass"        # optional - defaults to "VIP"
# price = 499
# description = "VIP access"
# icon = "icons/vip.png"
# for_sale = true          # optional - defaults to true
# regional_pricing = false # optional - defaults to false
# path = "shop.specials"   # optional - override codegen path

# Badges
# [badges.Welcome]
# name = "Welcome Badge"
# description = "Welcome to the game!"
# icon = "icons/welcome.png"
# enabled = true
# path = "rewards"

# Developer Products
# [products.Coins100]
# name = "100 Coins"
# price = 99
# description = "100 coins"
# icon = "icons/coins.png"
# for_sale = true
# regional_pricing = false
# store_page = false
# path = "shop.specials"
`
