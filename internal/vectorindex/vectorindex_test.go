package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records calls and serves pages from an in-memory map, so the
// manager's batching and pagination can be observed directly.
type fakeBackend struct {
	ready    bool
	records  map[string]Record
	order    []string
	putSizes []int
	delSizes []int
	scans    int
	creates  int

	putErr    error
	createErr error
}

func newFakeBackend(ready bool) *fakeBackend {
	return &fakeBackend{ready: ready, records: map[string]Record{}}
}

func (f *fakeBackend) EnsureBucket(context.Context) error { return nil }

func (f *fakeBackend) CreateIndex(context.Context) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	f.ready = true
	return nil
}

func (f *fakeBackend) Put(_ context.Context, records []Record) error {
	if !f.ready {
		return ErrIndexNotReady
	}
	if f.putErr != nil {
		return f.putErr
	}
	f.putSizes = append(f.putSizes, len(records))
	for _, r := range records {
		if _, exists := f.records[r.Key]; !exists {
			f.order = append(f.order, r.Key)
		}
		f.records[r.Key] = r
	}
	return nil
}

func (f *fakeBackend) Query(_ context.Context, q Query) (*Page, error) {
	if !f.ready {
		return nil, ErrIndexNotReady
	}
	f.scans++

	var keys []string
	for _, k := range f.order {
		if f.records[k].Meta.TenantID == q.TenantID {
			keys = append(keys, k)
		}
	}

	offset := 0
	if q.NextToken != "" {
		offset, _ = strconv.Atoi(q.NextToken)
	}

	page := &Page{}
	for i := offset; i < len(keys) && len(page.Matches) < q.TopK; i++ {
		m := Match{Key: keys[i]}
		if q.WithMetadata {
			m.Meta = f.records[keys[i]].Meta
		}
		page.Matches = append(page.Matches, m)
	}
	if offset+len(page.Matches) < len(keys) {
		page.NextToken = strconv.Itoa(offset + len(page.Matches))
	}
	return page, nil
}

func (f *fakeBackend) Delete(_ context.Context, keys []string) error {
	if !f.ready {
		return ErrIndexNotReady
	}
	f.delSizes = append(f.delSizes, len(keys))
	for _, k := range keys {
		delete(f.records, k)
		for i, o := range f.order {
			if o == k {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func seedRecords(t *testing.T, b *fakeBackend, tenantID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%08d-0000-0000-0000-000000000001-%s", i, tenantID)
		b.records[key] = Record{
			Key:    key,
			Vector: []float32{1, 0},
			Meta:   Metadata{TenantID: tenantID, Source: "doc.pdf"},
		}
		b.order = append(b.order, key)
	}
}

func TestEnsureIndexAlreadyExists(t *testing.T) {
	backend := newFakeBackend(true)
	m := NewManager(backend, 4)

	require.NoError(t, m.EnsureIndex(context.Background()))
	assert.Equal(t, 0, backend.creates, "existing index must not be recreated")
	assert.Empty(t, backend.records, "probe record must be cleaned up")
}

func TestEnsureIndexCreatesWhenMissing(t *testing.T) {
	backend := newFakeBackend(false)
	m := NewManager(backend, 4)

	require.NoError(t, m.EnsureIndex(context.Background()))
	assert.Equal(t, 1, backend.creates)
	assert.True(t, backend.ready)
}

func TestEnsureIndexCreationRaceIsSuccess(t *testing.T) {
	backend := newFakeBackend(false)
	backend.createErr = ErrConflict
	m := NewManager(backend, 4)

	require.NoError(t, m.EnsureIndex(context.Background()))
}

func TestEnsureIndexSurfacesOtherErrors(t *testing.T) {
	backend := newFakeBackend(true)
	backend.putErr = errors.New("network down")
	m := NewManager(backend, 4)

	err := m.EnsureIndex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}

func TestUpsertBatches(t *testing.T) {
	backend := newFakeBackend(true)
	m := NewManager(backend, 2)

	records := make([]Record, 1101)
	for i := range records {
		records[i] = Record{
			Key:    fmt.Sprintf("%08d-0000-0000-0000-000000000002", i),
			Vector: []float32{1, 0},
			Meta:   Metadata{TenantID: "t1"},
		}
	}

	require.NoError(t, m.Upsert(context.Background(), "t1", records))
	assert.Equal(t, []int{500, 500, 101}, backend.putSizes)
	assert.Len(t, backend.records, 1101)
}

func TestUpsertRejectsForeignTenantRecords(t *testing.T) {
	backend := newFakeBackend(true)
	m := NewManager(backend, 2)

	records := []Record{
		{Key: "a", Vector: []float32{1, 0}, Meta: Metadata{TenantID: "t1"}},
		{Key: "b", Vector: []float32{1, 0}, Meta: Metadata{TenantID: "t2"}},
	}

	err := m.Upsert(context.Background(), "t1", records)
	require.Error(t, err)
	assert.Empty(t, backend.putSizes, "no batch may be written")
}

func TestDeleteAllPaginatesAndBatches(t *testing.T) {
	backend := newFakeBackend(true)
	seedRecords(t, backend, "t1", 250)
	seedRecords(t, backend, "t2", 5)
	m := NewManager(backend, 2)

	require.NoError(t, m.DeleteAll(context.Background(), "t1"))

	// 250 keys at 30 per scan page is 9 pages; the 9th is short so no
	// extra empty page is fetched.
	assert.Equal(t, 9, backend.scans)
	assert.Equal(t, []int{100, 100, 50}, backend.delSizes)

	for _, r := range backend.records {
		assert.Equal(t, "t2", r.Meta.TenantID, "other tenants' records must survive")
	}
	assert.Len(t, backend.records, 5)
}

func TestDeleteAllEmptyTenant(t *testing.T) {
	backend := newFakeBackend(true)
	seedRecords(t, backend, "t2", 3)
	m := NewManager(backend, 2)

	require.NoError(t, m.DeleteAll(context.Background(), "t1"))
	assert.Empty(t, backend.delSizes)
	assert.Len(t, backend.records, 3)
}

func TestDeleteAllIndexNotReady(t *testing.T) {
	backend := newFakeBackend(false)
	m := NewManager(backend, 2)

	require.NoError(t, m.DeleteAll(context.Background(), "t1"))
}

func TestQueryDefaultsTopK(t *testing.T) {
	backend := newFakeBackend(true)
	seedRecords(t, backend, "t1", 20)
	m := NewManager(backend, 2)

	matches, err := m.Query(context.Background(), "t1", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 8)
}

func TestQueryIndexNotReady(t *testing.T) {
	backend := newFakeBackend(false)
	m := NewManager(backend, 2)

	matches, err := m.Query(context.Background(), "t1", []float32{1, 0}, 8)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestQueryOnlyReturnsOwnTenant(t *testing.T) {
	backend := newFakeBackend(true)
	seedRecords(t, backend, "t1", 4)
	seedRecords(t, backend, "t2", 4)
	m := NewManager(backend, 2)

	matches, err := m.Query(context.Background(), "t1", []float32{1, 0}, 8)
	require.NoError(t, err)
	require.Len(t, matches, 4)
	for _, match := range matches {
		assert.Equal(t, "t1", match.Meta.TenantID)
	}
}
