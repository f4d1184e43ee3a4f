package roblox

import "github.com/rbxsync/rbxsync/pkg/engine"

// Wire representations of the Roblox API payloads. Every field is optional on
// the wire; the conversion helpers apply the defaults the engine expects.

type priceInformation struct {
	DefaultPriceInRobux *int64 `json:"defaultPriceInRobux"`
}

type gamePass struct {
	ID               *int64            `json:"gamePassId"`
	Name             *string           `json:"name"`
	Description      *string           `json:"description"`
	IsForSale        *bool             `json:"isForSale"`
	IconAssetID      *int64            `json:"iconAssetId"`
	PriceInformation *priceInformation `json:"priceInformation"`
}

func (g *gamePass) toRemote() *engine.RemotePass {
	return &engine.RemotePass{
		ID:          deref(g.ID, 0),
		Name:        deref(g.Name, "unnamed"),
		Description: deref(g.Description, ""),
		Price:       price(g.PriceInformation),
		ForSale:     deref(g.IsForSale, true),
		IconAssetID: g.IconAssetID,
	}
}

type listGamePassesResponse struct {
	GamePasses    []gamePass `json:"gamePasses"`
	NextPageToken *string    `json:"nextPageToken"`
}

type badge struct {
	ID          *int64  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Enabled     *bool   `json:"enabled"`
	IconImageID *int64  `json:"iconImageId"`
}

func (b *badge) toRemote() *engine.RemoteBadge {
	return &engine.RemoteBadge{
		ID:          deref(b.ID, 0),
		Name:        deref(b.Name, "unnamed"),
		Description: deref(b.Description, ""),
		Enabled:     deref(b.Enabled, true),
		IconAssetID: b.IconImageID,
	}
}

type listBadgesResponse struct {
	Data           []badge `json:"data"`
	NextPageCursor *string `json:"nextPageCursor"`
}

type badgeIconResponse struct {
	TargetID *int64 `json:"targetId"`
}

type developerProduct struct {
	ID               *int64            `json:"productId"`
	Name             *string           `json:"name"`
	Description      *string           `json:"description"`
	IconImageAssetID *int64            `json:"iconImageAssetId"`
	IsForSale        *bool             `json:"isForSale"`
	StorePageEnabled *bool             `json:"storePageEnabled"`
	PriceInformation *priceInformation `json:"priceInformation"`
}

func (p *developerProduct) toRemote() *engine.RemoteProduct {
	return &engine.RemoteProduct{
		ID:          deref(p.ID, 0),
		Name:        deref(p.Name, "unnamed"),
		Description: deref(p.Description, ""),
		Price:       price(p.PriceInformation),
		ForSale:     deref(p.IsForSale, true),
		StorePage:   deref(p.StorePageEnabled, false),
		IconAssetID: p.IconImageAssetID,
	}
}

type listDeveloperProductsResponse struct {
	DeveloperProducts []developerProduct `json:"developerProducts"`
	NextPageToken     *string            `json:"nextPageToken"`
}

type assetDeliveryResponse struct {
	Location string `json:"location"`
}

func price(info *priceInformation) *int64 {
	if info == nil {
		return nil
	}
	return info.DefaultPriceInRobux
}

func deref[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
