package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/state"
)

func newTestDetector(provider *mockProvider, store *memContent) *DriftDetector {
	return &DriftDetector{
		Provider: provider,
		Content:  store,
		Log:      zerolog.Nop(),
	}
}

func TestPullAdoptsUnknownRemoteResources(t *testing.T) {
	project := testProject()

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "Super VIP", Price: int64Ptr(250), Description: "shiny", ForSale: true},
	}
	provider.remoteProducts = []RemoteProduct{
		{ID: 200, Name: "Gems", Price: int64Ptr(10), ForSale: true, StorePage: true},
	}

	detector := newTestDetector(provider, newMemContent())
	report, err := detector.Pull(context.Background(), project, state.New(0), PullOptions{})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if report.Checkpoint.UniverseID != 77 {
		t.Errorf("merged checkpoint universe = %d, want the project's 77", report.Checkpoint.UniverseID)
	}

	// Key derived from display name, no explicit override needed.
	spec, ok := project.Passes["Super VIP"]
	if !ok {
		t.Fatal("adopted pass missing from desired state")
	}
	if spec.Name != nil {
		t.Errorf("name override = %v, want nil when name equals key", *spec.Name)
	}
	if spec.Price == nil || *spec.Price != 250 {
		t.Errorf("price = %v, want 250", spec.Price)
	}

	product, ok := project.Products["Gems"]
	if !ok {
		t.Fatal("adopted product missing from desired state")
	}
	if !product.StorePage {
		t.Error("store_page not carried into desired state")
	}

	rec, ok := report.Checkpoint.Passes["Super VIP"]
	if !ok {
		t.Fatal("adopted pass missing from merged checkpoint")
	}
	if rec.RemoteID != 100 {
		t.Errorf("remote id = %d, want 100", rec.RemoteID)
	}

	if len(report.ConfigChanges) != 2 {
		t.Errorf("config changes = %+v, want 2 adoptions", report.ConfigChanges)
	}
}

func TestPullKeepsCheckpointKeyAcrossRemoteRename(t *testing.T) {
	project := testProject()
	project.Passes["vip"] = &config.PassSpec{Price: int64Ptr(100)}

	cp := state.New(77)
	cp.Passes["vip"] = state.PassRecord{RemoteID: 100, Name: "vip", Price: int64Ptr(100), ForSale: true}

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP Deluxe", Price: int64Ptr(100), ForSale: true},
	}

	detector := newTestDetector(provider, newMemContent())
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	// Identity follows the remote id, not the display name.
	if _, ok := report.Checkpoint.Passes["vip"]; !ok {
		t.Fatal("checkpoint key lost across remote rename")
	}
	spec := project.Passes["vip"]
	if spec.Name == nil || *spec.Name != "VIP Deluxe" {
		t.Errorf("name override = %v, want VIP Deluxe", spec.Name)
	}
}

func TestPullSkipsDuplicateRemoteNames(t *testing.T) {
	project := testProject()

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP", ForSale: true},
		{ID: 101, Name: "VIP", ForSale: true},
	}

	detector := newTestDetector(provider, newMemContent())
	report, err := detector.Pull(context.Background(), project, state.New(77), PullOptions{})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	// First seen wins; the duplicate is skipped with a warning.
	if got := report.Checkpoint.Passes["VIP"].RemoteID; got != 100 {
		t.Errorf("adopted remote id = %d, want 100", got)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("warnings = %v, want 1 duplicate warning", report.Warnings)
	}
}

func TestPullFetchesDisabledBadgesIndividually(t *testing.T) {
	project := testProject()
	project.Badges["Welcome"] = &config.BadgeSpec{}

	cp := state.New(77)
	cp.Badges["Welcome"] = state.BadgeRecord{RemoteID: 300, Name: "Welcome", Enabled: true}

	// The listing omits the now-disabled badge, but it still exists.
	provider := newMockProvider()
	provider.badgesByID[300] = &RemoteBadge{ID: 300, Name: "Welcome", Enabled: false}

	detector := newTestDetector(provider, newMemContent())
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	rec, ok := report.Checkpoint.Badges["Welcome"]
	if !ok {
		t.Fatal("disabled badge concluded removed despite individual fetch")
	}
	if rec.Enabled {
		t.Error("enabled = true, want false from individual fetch")
	}
	if calls := provider.callsNamed("GetBadge"); len(calls) != 1 {
		t.Errorf("GetBadge calls = %v, want 1", calls)
	}
}

func TestPullReportsTrulyRemovedBadge(t *testing.T) {
	project := testProject()
	project.Badges["Gone"] = &config.BadgeSpec{}

	cp := state.New(77)
	cp.Badges["Gone"] = state.BadgeRecord{RemoteID: 300, Name: "Gone", Enabled: true}

	provider := newMockProvider() // GetBadge(300) errors: not in badgesByID

	detector := newTestDetector(provider, newMemContent())
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if _, ok := report.Checkpoint.Badges["Gone"]; ok {
		t.Fatal("deleted badge still present in merged checkpoint")
	}
	var removed bool
	for _, d := range report.Diffs {
		if d.Kind == KindBadge && d.Key == "Gone" && d.Removed {
			removed = true
		}
	}
	if !removed {
		t.Errorf("diffs = %+v, want removed badge entry", report.Diffs)
	}
}

func TestPullUnchangedRemoteIconPreservesFingerprint(t *testing.T) {
	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{Icon: "vip.png"}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{
		RemoteID:    100,
		Name:        "VIP",
		IconAssetID: int64Ptr(9001),
		IconHash:    "fp:known",
		ForSale:     true,
	}

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP", ForSale: true, IconAssetID: int64Ptr(9001)},
	}

	detector := newTestDetector(provider, newMemContent())
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if got := report.Checkpoint.Passes["VIP"].IconHash; got != "fp:known" {
		t.Errorf("icon hash = %q, want preserved fingerprint", got)
	}
}

func TestPullIconConflictFailsAtomically(t *testing.T) {
	store := newMemContent()
	store.files["vip.png"] = []byte("locally-edited")
	store.files["coins.png"] = []byte("also-edited")

	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{Icon: "vip.png"}
	project.Products["Coins"] = &config.ProductSpec{Price: 50, Icon: "coins.png"}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{RemoteID: 100, Name: "VIP", IconAssetID: int64Ptr(9001), IconHash: "fp:old", ForSale: true}
	cp.Products["Coins"] = state.ProductRecord{RemoteID: 200, Name: "Coins", Price: 50, IconAssetID: int64Ptr(9002), IconHash: "fp:old2", ForSale: true}

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP", ForSale: true, IconAssetID: int64Ptr(9100)},
	}
	provider.remoteProducts = []RemoteProduct{
		{ID: 200, Name: "Coins", Price: int64Ptr(50), ForSale: true, IconAssetID: int64Ptr(9200)},
	}

	detector := newTestDetector(provider, store)
	_, err := detector.Pull(context.Background(), project, cp, PullOptions{})
	if err == nil {
		t.Fatal("expected conflict error")
	}

	conflict, ok := AsConflict(err)
	if !ok {
		t.Fatalf("error is not a ConflictError: %v", err)
	}
	// Both conflicts reported together, not just the first.
	if len(conflict.Conflicts) != 2 {
		t.Fatalf("conflicts = %+v, want 2", conflict.Conflicts)
	}
	if calls := provider.callsNamed("DownloadAsset"); len(calls) != 0 {
		t.Errorf("downloads performed despite conflict: %v", calls)
	}
	if got := store.paths(); len(got) != 2 {
		t.Errorf("local content modified despite conflict: %v", got)
	}
}

func TestPullAcceptRemoteDownloadsAndRefingerprints(t *testing.T) {
	store := newMemContent()

	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{RemoteID: 100, Name: "VIP", IconHash: "", ForSale: true}

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP", ForSale: true, IconAssetID: int64Ptr(9100)},
	}
	provider.assets[9100] = []byte("remote-icon-bytes")

	detector := newTestDetector(provider, store)
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{AcceptRemote: true})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if len(report.Downloads) != 1 {
		t.Fatalf("downloads = %+v, want 1", report.Downloads)
	}
	wantPath := "icons/pass-100-VIP.png"
	if report.Downloads[0].Path != wantPath {
		t.Errorf("download path = %q, want %q", report.Downloads[0].Path, wantPath)
	}
	if got, err := store.ReadBytes(wantPath); err != nil || string(got) != "remote-icon-bytes" {
		t.Errorf("downloaded bytes = %q (%v)", got, err)
	}
	if got := report.Checkpoint.Passes["VIP"].IconHash; got != store.Fingerprint([]byte("remote-icon-bytes")) {
		t.Errorf("icon hash = %q, want fingerprint of downloaded bytes", got)
	}
	if project.Passes["VIP"].Icon != wantPath {
		t.Errorf("desired icon path = %q, want backfilled %q", project.Passes["VIP"].Icon, wantPath)
	}
}

func TestPullAcceptLocalClearsFingerprint(t *testing.T) {
	store := newMemContent()
	store.files["vip.png"] = []byte("locally-edited")

	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{Icon: "vip.png"}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{RemoteID: 100, Name: "VIP", IconAssetID: int64Ptr(9001), IconHash: "fp:old", ForSale: true}

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP", ForSale: true, IconAssetID: int64Ptr(9100)},
	}

	detector := newTestDetector(provider, store)
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{AcceptLocal: true})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	// Cleared fingerprint makes the next plan treat the local icon as new.
	if got := report.Checkpoint.Passes["VIP"].IconHash; got != "" {
		t.Errorf("icon hash = %q, want cleared", got)
	}
	if calls := provider.callsNamed("DownloadAsset"); len(calls) != 0 {
		t.Errorf("accept-local performed downloads: %v", calls)
	}
}

func TestPullRemoteIconRemovedClearsFingerprint(t *testing.T) {
	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{RemoteID: 100, Name: "VIP", IconAssetID: int64Ptr(9001), IconHash: "fp:old", ForSale: true}

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP", ForSale: true}, // no icon anymore
	}

	detector := newTestDetector(provider, newMemContent())
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	// No local icon configured: not a conflict, just a cleared fingerprint.
	if got := report.Checkpoint.Passes["VIP"].IconHash; got != "" {
		t.Errorf("icon hash = %q, want cleared", got)
	}
}

func TestPullDryRunReportsWithoutWrites(t *testing.T) {
	store := newMemContent()
	store.files["vip.png"] = []byte("locally-edited")

	project := testProject()
	project.Passes["VIP"] = &config.PassSpec{Icon: "vip.png", Price: int64Ptr(100)}

	cp := state.New(77)
	cp.Passes["VIP"] = state.PassRecord{RemoteID: 100, Name: "VIP", Price: int64Ptr(100), IconAssetID: int64Ptr(9001), IconHash: "fp:old", ForSale: true}

	provider := newMockProvider()
	provider.remotePasses = []RemotePass{
		{ID: 100, Name: "VIP", Price: int64Ptr(175), ForSale: true, IconAssetID: int64Ptr(9100)},
	}

	detector := newTestDetector(provider, store)
	report, err := detector.Pull(context.Background(), project, cp, PullOptions{DryRun: true, AcceptRemote: true})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if report.Checkpoint != nil {
		t.Error("dry run produced a checkpoint")
	}
	if calls := provider.callsNamed("DownloadAsset"); len(calls) != 0 {
		t.Errorf("dry run performed downloads: %v", calls)
	}
	if !report.HasDiff() {
		t.Fatal("dry run reported no diff for a changed remote")
	}
	var priceChange bool
	for _, d := range report.Diffs {
		for _, c := range d.Changes {
			if c.Field == "price" && c.New == "175" {
				priceChange = true
			}
		}
	}
	if !priceChange {
		t.Errorf("diffs = %+v, want projected price change to 175", report.Diffs)
	}
}
