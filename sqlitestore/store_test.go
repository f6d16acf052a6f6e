package sqlitestore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/petrijr/stepflow/pkg/api"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "sql.Open should succeed")
	t.Cleanup(func() { _ = db.Close() })

	store, err := New(db, "test-flow")
	require.NoError(t, err, "New should initialize the schema")
	return store
}

func TestStoreEmptyLoad(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, loaded, "no row means nothing stored")
}

func TestStorePersistLoadClear(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	fc := api.NewContext(map[string]any{
		"name": "Ada",
		"step": map[string]any{"answers": []any{"a", "b"}},
	})
	current := api.StepID("profile")

	require.NoError(t, store.Persist(ctx, fc, &current))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "Ada", loaded.FlowData["name"])
	require.Equal(t, []any{"a", "b"}, loaded.FlowData["step"].(map[string]any)["answers"])
	require.NotNil(t, loaded.CurrentStepID)
	require.Equal(t, current, *loaded.CurrentStepID)

	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestStoreUpsertOverwrites(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := api.StepID("a")
	require.NoError(t, store.Persist(ctx, api.NewContext(map[string]any{"v": float64(1)}), &first))

	second := api.StepID("b")
	require.NoError(t, store.Persist(ctx, api.NewContext(map[string]any{"v": float64(2)}), &second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(2), loaded.FlowData["v"])
	require.Equal(t, second, *loaded.CurrentStepID)
}

func TestStoreNilCurrentStep(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Persist(ctx, api.NewContext(map[string]any{"done": true}), nil))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded.CurrentStepID)
	require.Equal(t, true, loaded.FlowData["done"])
}

func TestStoresAreScopedByFlowID(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a, err := New(db, "flow-a")
	require.NoError(t, err)
	b, err := New(db, "flow-b")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Persist(ctx, api.NewContext(map[string]any{"who": "a"}), nil))

	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded, "flows must not see each other's state")

	require.NoError(t, b.Clear(ctx), "clearing an empty scope is fine")
	loaded, err = a.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", loaded.FlowData["who"])
}

func TestNewRejectsEmptyFlowID(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = New(db, "")
	require.Error(t, err)
}
