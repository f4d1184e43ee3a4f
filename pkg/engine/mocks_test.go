package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rbxsync/rbxsync/pkg/state"
)

// Mock implementations for testing

type mockProvider struct {
	calls []string

	// failOn maps a call name ("CreatePass", "UpdateProduct", ...) to an
	// error returned instead of executing.
	failOn map[string]error

	nextID int64

	remotePasses   []RemotePass
	remoteBadges   []RemoteBadge
	remoteProducts []RemoteProduct

	// badgesByID backs GetBadge, for badges hidden from the listing.
	badgesByID map[int64]*RemoteBadge

	// updatePassResult et al. are returned from updates; nil models an
	// empty acknowledgement.
	updatePassResult    *RemotePass
	updateProductResult *RemoteProduct
	badgeIconAssetID    *int64

	// productCreates captures the fields of every CreateProduct call.
	productCreates []ProductFields
	// productUpdates captures the fields of every UpdateProduct call.
	productUpdates []ProductFields
	// passUpdates captures the fields of every UpdatePass call.
	passUpdates []PassFields

	assets map[int64][]byte
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		failOn:     map[string]error{},
		nextID:     1000,
		badgesByID: map[int64]*RemoteBadge{},
		assets:     map[int64][]byte{},
	}
}

func (m *mockProvider) record(call string) error {
	m.calls = append(m.calls, call)
	if err, ok := m.failOn[callName(call)]; ok {
		return err
	}
	return nil
}

// callName strips the argument suffix from a recorded call.
func callName(call string) string {
	for i := 0; i < len(call); i++ {
		if call[i] == '(' {
			return call[:i]
		}
	}
	return call
}

func (m *mockProvider) callsNamed(name string) []string {
	var out []string
	for _, c := range m.calls {
		if callName(c) == name {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockProvider) CreatePass(ctx context.Context, fields PassFields) (*RemotePass, error) {
	if err := m.record(fmt.Sprintf("CreatePass(%s)", fields.Name)); err != nil {
		return nil, err
	}
	m.nextID++
	return &RemotePass{ID: m.nextID, Name: fields.Name, Description: fields.Description, Price: fields.Price, ForSale: fields.ForSale}, nil
}

func (m *mockProvider) UpdatePass(ctx context.Context, id int64, fields PassFields) (*RemotePass, error) {
	if err := m.record(fmt.Sprintf("UpdatePass(%d)", id)); err != nil {
		return nil, err
	}
	m.passUpdates = append(m.passUpdates, fields)
	return m.updatePassResult, nil
}

func (m *mockProvider) GetPass(ctx context.Context, id int64) (*RemotePass, error) {
	if err := m.record(fmt.Sprintf("GetPass(%d)", id)); err != nil {
		return nil, err
	}
	for i := range m.remotePasses {
		if m.remotePasses[i].ID == id {
			return &m.remotePasses[i], nil
		}
	}
	return nil, fmt.Errorf("pass %d not found", id)
}

func (m *mockProvider) ListPasses(ctx context.Context) ([]RemotePass, error) {
	if err := m.record("ListPasses()"); err != nil {
		return nil, err
	}
	return m.remotePasses, nil
}

func (m *mockProvider) CreateBadge(ctx context.Context, fields BadgeFields) (*RemoteBadge, error) {
	if err := m.record(fmt.Sprintf("CreateBadge(%s)", fields.Name)); err != nil {
		return nil, err
	}
	m.nextID++
	return &RemoteBadge{ID: m.nextID, Name: fields.Name, Description: fields.Description, Enabled: fields.Enabled}, nil
}

func (m *mockProvider) UpdateBadge(ctx context.Context, id int64, fields BadgeFields) (*RemoteBadge, error) {
	if err := m.record(fmt.Sprintf("UpdateBadge(%d)", id)); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *mockProvider) UpdateBadgeIcon(ctx context.Context, id int64, icon []byte) (*int64, error) {
	if err := m.record(fmt.Sprintf("UpdateBadgeIcon(%d)", id)); err != nil {
		return nil, err
	}
	return m.badgeIconAssetID, nil
}

func (m *mockProvider) GetBadge(ctx context.Context, id int64) (*RemoteBadge, error) {
	if err := m.record(fmt.Sprintf("GetBadge(%d)", id)); err != nil {
		return nil, err
	}
	if badge, ok := m.badgesByID[id]; ok {
		return badge, nil
	}
	return nil, fmt.Errorf("badge %d not found", id)
}

func (m *mockProvider) ListBadges(ctx context.Context) ([]RemoteBadge, error) {
	if err := m.record("ListBadges()"); err != nil {
		return nil, err
	}
	return m.remoteBadges, nil
}

func (m *mockProvider) CreateProduct(ctx context.Context, fields ProductFields) (*RemoteProduct, error) {
	if err := m.record(fmt.Sprintf("CreateProduct(%s)", fields.Name)); err != nil {
		return nil, err
	}
	m.productCreates = append(m.productCreates, fields)
	m.nextID++
	return &RemoteProduct{ID: m.nextID, Name: fields.Name, Description: fields.Description, ForSale: fields.ForSale, StorePage: fields.StorePage}, nil
}

func (m *mockProvider) UpdateProduct(ctx context.Context, id int64, fields ProductFields) (*RemoteProduct, error) {
	if err := m.record(fmt.Sprintf("UpdateProduct(%d)", id)); err != nil {
		return nil, err
	}
	m.productUpdates = append(m.productUpdates, fields)
	return m.updateProductResult, nil
}

func (m *mockProvider) GetProduct(ctx context.Context, id int64) (*RemoteProduct, error) {
	if err := m.record(fmt.Sprintf("GetProduct(%d)", id)); err != nil {
		return nil, err
	}
	for i := range m.remoteProducts {
		if m.remoteProducts[i].ID == id {
			return &m.remoteProducts[i], nil
		}
	}
	return nil, fmt.Errorf("product %d not found", id)
}

func (m *mockProvider) ListProducts(ctx context.Context) ([]RemoteProduct, error) {
	if err := m.record("ListProducts()"); err != nil {
		return nil, err
	}
	return m.remoteProducts, nil
}

func (m *mockProvider) DownloadAsset(ctx context.Context, assetID int64) ([]byte, error) {
	if err := m.record(fmt.Sprintf("DownloadAsset(%d)", assetID)); err != nil {
		return nil, err
	}
	if data, ok := m.assets[assetID]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("asset %d not found", assetID)
}

// memContent is an in-memory content store with a readable fingerprint scheme.
type memContent struct {
	files map[string][]byte
}

func newMemContent() *memContent {
	return &memContent{files: map[string][]byte{}}
}

func (c *memContent) ReadBytes(path string) ([]byte, error) {
	if data, ok := c.files[path]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no such file: %s", path)
}

func (c *memContent) WriteBytes(path string, data []byte) error {
	c.files[path] = data
	return nil
}

func (c *memContent) Fingerprint(data []byte) string {
	return "fp:" + string(data)
}

func (c *memContent) paths() []string {
	out := make([]string, 0, len(c.files))
	for p := range c.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// memSink records every persisted checkpoint as a deep copy, so tests can
// assert what was durable at each point of the run.
type memSink struct {
	snapshots []*state.Checkpoint
	failErr   error
}

func (s *memSink) Persist(cp *state.Checkpoint) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.snapshots = append(s.snapshots, cp.Clone())
	return nil
}

func (s *memSink) last() *state.Checkpoint {
	if len(s.snapshots) == 0 {
		return nil
	}
	return s.snapshots[len(s.snapshots)-1]
}

func int64Ptr(v int64) *int64    { return &v }
func strPtr(s string) *string    { return &s }
func boolPtrT(b bool) *bool      { return &b }
