package engine

import (
	"context"

	"github.com/rbxsync/rbxsync/pkg/state"
)

// PassFields carries the effective desired fields of a game pass for a
// provider call. Icon is nil when no icon bytes should be transmitted.
type PassFields struct {
	Name            string
	Description     string
	Price           *int64
	ForSale         bool
	RegionalPricing bool
	Icon            []byte
}

// RemotePass is a provider's canonical view of a game pass. Update calls may
// return nil instead (an empty acknowledgement); callers then fall back to
// previously known values.
type RemotePass struct {
	ID          int64
	Name        string
	Description string
	Price       *int64
	ForSale     bool
	IconAssetID *int64
}

// BadgeFields carries the effective desired fields of a badge. PaymentSource
// and Cost are consumed only by create.
type BadgeFields struct {
	Name          string
	Description   string
	Enabled       bool
	Icon          []byte
	PaymentSource string
	Cost          int64
}

// RemoteBadge is a provider's canonical view of a badge.
type RemoteBadge struct {
	ID          int64
	Name        string
	Description string
	Enabled     bool
	IconAssetID *int64
}

// ProductFields carries the effective desired fields of a developer product.
type ProductFields struct {
	Name            string
	Description     string
	Price           int64
	ForSale         bool
	RegionalPricing bool
	StorePage       bool
	Icon            []byte
}

// RemoteProduct is a provider's canonical view of a developer product.
type RemoteProduct struct {
	ID          int64
	Name        string
	Description string
	Price       *int64
	ForSale     bool
	StorePage   bool
	IconAssetID *int64
}

// Provider is the remote side of reconciliation: create/update/get/list per
// kind, plus raw asset downloads. Implementations retry transient failures
// internally with bounded backoff; an error returned here is final.
//
// Listings may be incomplete: the badge listing omits badges in a disabled
// state, which the drift detector compensates for with individual gets.
type Provider interface {
	CreatePass(ctx context.Context, fields PassFields) (*RemotePass, error)
	UpdatePass(ctx context.Context, id int64, fields PassFields) (*RemotePass, error)
	GetPass(ctx context.Context, id int64) (*RemotePass, error)
	ListPasses(ctx context.Context) ([]RemotePass, error)

	CreateBadge(ctx context.Context, fields BadgeFields) (*RemoteBadge, error)
	UpdateBadge(ctx context.Context, id int64, fields BadgeFields) (*RemoteBadge, error)
	UpdateBadgeIcon(ctx context.Context, id int64, icon []byte) (*int64, error)
	GetBadge(ctx context.Context, id int64) (*RemoteBadge, error)
	ListBadges(ctx context.Context) ([]RemoteBadge, error)

	CreateProduct(ctx context.Context, fields ProductFields) (*RemoteProduct, error)
	UpdateProduct(ctx context.Context, id int64, fields ProductFields) (*RemoteProduct, error)
	GetProduct(ctx context.Context, id int64) (*RemoteProduct, error)
	ListProducts(ctx context.Context) ([]RemoteProduct, error)

	DownloadAsset(ctx context.Context, assetID int64) ([]byte, error)
}

// CheckpointSink persists the checkpoint. The reconciler invokes it after
// every successful remote mutation, with the full checkpoint value; the sink
// must rewrite the durable copy wholesale.
type CheckpointSink interface {
	Persist(cp *state.Checkpoint) error
}

// CheckpointSinkFunc adapts a function to a CheckpointSink.
type CheckpointSinkFunc func(cp *state.Checkpoint) error

// Persist calls f.
func (f CheckpointSinkFunc) Persist(cp *state.Checkpoint) error { return f(cp) }
