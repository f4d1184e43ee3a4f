package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/state"
)

func newTestReconciler(provider *mockProvider, sink *memSink, store *memContent) *Reconciler {
	return &Reconciler{
		Provider: provider,
		Sink:     sink,
		Content:  store,
		Log:      zerolog.Nop(),
	}
}

func TestApplyPersistsAfterEveryMutation(t *testing.T) {
	project := testProject()
	project.Passes["A"] = &config.PassSpec{Price: int64Ptr(10)}
	project.Passes["B"] = &config.PassSpec{Price: int64Ptr(20)}

	cp := state.New(77)
	provider := newMockProvider()
	sink := &memSink{}
	store := newMemContent()

	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, sink, store)
	res, err := rec.Apply(context.Background(), plan, project, cp)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if res.Created != 2 {
		t.Errorf("created = %d, want 2", res.Created)
	}
	if len(sink.snapshots) != 2 {
		t.Fatalf("persist count = %d, want one per mutation", len(sink.snapshots))
	}
	// The first durable snapshot reflects exactly the first mutation.
	first := sink.snapshots[0]
	if len(first.Passes) != 1 {
		t.Errorf("first snapshot has %d passes, want 1", len(first.Passes))
	}
	if _, ok := first.Passes["A"]; !ok {
		t.Error("first snapshot missing pass A")
	}
	if len(sink.last().Passes) != 2 {
		t.Errorf("final snapshot has %d passes, want 2", len(sink.last().Passes))
	}
}

func TestApplySecondRunIsNoOp(t *testing.T) {
	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{Price: int64Ptr(100), Description: strPtr("vip")}
	project.Badges["Welcome"] = &config.BadgeSpec{}
	project.Products["Coins"] = &config.ProductSpec{Price: 50}

	cp := state.New(77)
	provider := newMockProvider()
	sink := &memSink{}
	store := newMemContent()
	planner := &Planner{Content: store}
	rec := newTestReconciler(provider, sink, store)

	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if _, err := rec.Apply(context.Background(), plan, project, cp); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	provider.calls = nil
	plan, err = planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("second BuildPlan failed: %v", err)
	}
	res, err := rec.Apply(context.Background(), plan, project, cp)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	if len(provider.calls) != 0 {
		t.Errorf("second run made provider calls: %v", provider.calls)
	}
	if res.Skipped != 3 || res.Created != 0 || res.Updated != 0 {
		t.Errorf("second run result = %+v, want 3 skips", res)
	}
}

func TestApplyUpdateEmptyAckFallsBackToCheckpoint(t *testing.T) {
	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{Price: int64Ptr(200)}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{
		RemoteID:    5,
		Name:        "VIP",
		Price:       int64Ptr(100),
		IconAssetID: int64Ptr(9001),
		IconHash:    "fp:old-icon",
		ForSale:     true,
	}

	provider := newMockProvider() // updates return nil
	sink := &memSink{}
	store := newMemContent()
	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, sink, store)
	if _, err := rec.Apply(context.Background(), plan, project, cp); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got := cp.Passes["VIP"]
	if got.Price == nil || *got.Price != 200 {
		t.Errorf("price = %v, want 200", got.Price)
	}
	if got.IconAssetID == nil || *got.IconAssetID != 9001 {
		t.Errorf("icon asset id = %v, want preserved 9001", got.IconAssetID)
	}
	if got.IconHash != "fp:old-icon" {
		t.Errorf("icon hash = %q, want preserved", got.IconHash)
	}
}

func TestApplyOnlyTransmitsIconWhenChanged(t *testing.T) {
	store := newMemContent()
	store.files["vip.png"] = []byte("icon-bytes")

	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{Price: int64Ptr(200), Icon: "vip.png"}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{
		RemoteID: 5,
		Name:     "VIP",
		Price:    int64Ptr(100),
		IconHash: store.Fingerprint([]byte("icon-bytes")),
		ForSale:  true,
	}

	provider := newMockProvider()
	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, &memSink{}, store)
	if _, err := rec.Apply(context.Background(), plan, project, cp); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(provider.passUpdates) != 1 {
		t.Fatalf("update count = %d, want 1", len(provider.passUpdates))
	}
	if provider.passUpdates[0].Icon != nil {
		t.Error("icon bytes transmitted although fingerprint is unchanged")
	}
}

func TestApplyBadgeIconUsesDedicatedEndpoint(t *testing.T) {
	store := newMemContent()
	store.files["badge.png"] = []byte("new-badge-icon")

	project := testProject()
	project.Badges["Welcome"] = &config.BadgeSpec{Icon: "badge.png"}

	cp := state.New(77)
	cp.Badges["Welcome"] = state.BadgeRecord{
		RemoteID: 3,
		Name:     "Welcome",
		Enabled:  true,
		IconHash: "fp:stale",
	}

	provider := newMockProvider()
	provider.badgeIconAssetID = int64Ptr(5555)

	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, &memSink{}, store)
	if _, err := rec.Apply(context.Background(), plan, project, cp); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Icon-only change: no badge field update, one icon upload.
	if calls := provider.callsNamed("UpdateBadge"); len(calls) != 0 {
		t.Errorf("UpdateBadge called for icon-only change: %v", calls)
	}
	if calls := provider.callsNamed("UpdateBadgeIcon"); len(calls) != 1 {
		t.Fatalf("UpdateBadgeIcon calls = %v, want 1", calls)
	}

	got := cp.Badges["Welcome"]
	if got.IconAssetID == nil || *got.IconAssetID != 5555 {
		t.Errorf("icon asset id = %v, want 5555", got.IconAssetID)
	}
	if got.IconHash != store.Fingerprint([]byte("new-badge-icon")) {
		t.Errorf("icon hash = %q, want fingerprint of uploaded bytes", got.IconHash)
	}
}

func TestApplyDisablingStorePagedProductRunsTwoPhases(t *testing.T) {
	project := testProject()
	project.Products["Coins"] = &config.ProductSpec{
		Price:     50,
		ForSale:   boolPtrT(false),
		StorePage: true,
	}

	cp := state.New(77)
	cp.Products["Coins"] = state.ProductRecord{
		RemoteID:  8,
		Name:      "Coins",
		Price:     50,
		ForSale:   true,
		StorePage: true,
	}

	provider := newMockProvider()
	store := newMemContent()
	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, &memSink{}, store)
	if _, err := rec.Apply(context.Background(), plan, project, cp); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(provider.productUpdates) != 2 {
		t.Fatalf("update count = %d, want 2 (listing removal, then sale disable)", len(provider.productUpdates))
	}
	phase1 := provider.productUpdates[0]
	if !phase1.ForSale || phase1.StorePage {
		t.Errorf("phase 1 = {for_sale: %t, store_page: %t}, want {true, false}", phase1.ForSale, phase1.StorePage)
	}
	final := provider.productUpdates[1]
	if final.ForSale || final.StorePage {
		t.Errorf("final phase = {for_sale: %t, store_page: %t}, want {false, false}", final.ForSale, final.StorePage)
	}

	got := cp.Products["Coins"]
	if got.ForSale {
		t.Error("checkpoint still marks the product on sale")
	}
	if !got.StorePage {
		t.Error("checkpoint lost the desired store_page flag")
	}
}

// An off-sale product with store_page requested must settle after one run:
// the checkpoint records the desired flag, not the gated value sent to the
// provider, so a rebuilt plan is all skips and a re-apply touches nothing.
func TestApplyOffSaleStorePagedProductConverges(t *testing.T) {
	project := testProject()
	project.Products["Coins"] = &config.ProductSpec{
		Price:     50,
		ForSale:   boolPtrT(false),
		StorePage: true,
	}

	cp := state.New(77)
	cp.Products["Coins"] = state.ProductRecord{
		RemoteID:  8,
		Name:      "Coins",
		Price:     50,
		ForSale:   true,
		StorePage: true,
	}

	provider := newMockProvider()
	store := newMemContent()
	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, &memSink{}, store)
	if _, err := rec.Apply(context.Background(), plan, project, cp); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	second, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan after apply failed: %v", err)
	}
	if second.HasChanges() {
		for _, action := range second.Products {
			if action.Action != ActionSkip {
				t.Errorf("second plan still wants %s of %q: %v", action.Action, action.Key, action.Changes)
			}
		}
	}

	fresh := newMockProvider()
	rec2 := newTestReconciler(fresh, &memSink{}, store)
	if _, err := rec2.Apply(context.Background(), second, project, cp); err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if len(fresh.calls) != 0 {
		t.Errorf("second apply made %d provider calls (%v), want 0", len(fresh.calls), fresh.calls)
	}
}

func TestApplyStorePageRequiresForSale(t *testing.T) {
	project := testProject()
	project.Products["Coins"] = &config.ProductSpec{
		Price:     50,
		ForSale:   boolPtrT(false),
		StorePage: true,
	}

	cp := state.New(77)
	provider := newMockProvider()
	store := newMemContent()
	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, &memSink{}, store)
	if _, err := rec.Apply(context.Background(), plan, project, cp); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// The desired flag lands in the checkpoint unchanged; gating applies
	// only to what goes over the wire.
	if !cp.Products["Coins"].StorePage {
		t.Error("checkpoint dropped the desired store_page flag")
	}
	if len(provider.productCreates) != 1 {
		t.Fatalf("create count = %d, want 1", len(provider.productCreates))
	}
	if provider.productCreates[0].StorePage {
		t.Error("store page listing enabled for an off-sale product")
	}
}

func TestApplyAbortsOnProviderErrorKeepingCommitted(t *testing.T) {
	project := testProject()
	project.Passes["A"] = &config.PassSpec{}
	project.Badges["B"] = &config.BadgeSpec{}

	cp := state.New(77)
	provider := newMockProvider()
	provider.failOn["CreateBadge"] = errors.New("rate limited")
	sink := &memSink{}
	store := newMemContent()

	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, sink, store)
	res, err := rec.Apply(context.Background(), plan, project, cp)
	if err == nil {
		t.Fatal("expected provider error")
	}
	if !IsProvider(err) {
		t.Errorf("error not classified as provider: %v", err)
	}

	// The pass create committed before the badge create failed.
	if len(res.Applied) != 1 || res.Applied[0].Key != "A" {
		t.Errorf("applied = %+v, want just pass A", res.Applied)
	}
	last := sink.last()
	if last == nil || len(last.Passes) != 1 {
		t.Fatal("committed pass missing from durable checkpoint")
	}
	if len(last.Badges) != 0 {
		t.Error("failed badge present in durable checkpoint")
	}
}

func TestApplyPersistFailureAborts(t *testing.T) {
	project := testProject()
	project.Passes["A"] = &config.PassSpec{}
	project.Passes["B"] = &config.PassSpec{}

	cp := state.New(77)
	provider := newMockProvider()
	sink := &memSink{failErr: errors.New("disk full")}
	store := newMemContent()

	planner := &Planner{Content: store}
	plan, err := planner.BuildPlan(project, cp)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	rec := newTestReconciler(provider, sink, store)
	_, err = rec.Apply(context.Background(), plan, project, cp)
	if err == nil {
		t.Fatal("expected persist error")
	}
	// Only the first create may have run; the run must not continue past a
	// failed persist.
	if calls := provider.callsNamed("CreatePass"); len(calls) != 1 {
		t.Errorf("CreatePass calls = %v, want 1", calls)
	}
}
