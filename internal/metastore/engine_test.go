package metastore

import (
	"testing"
	"time"

	"github.com/mvp-joe/persona-registry/internal/model"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func sampleEntry(name string, embedding []float32) model.IndexEntry {
	return model.IndexEntry{
		Name:        name,
		Description: name + " canonical description",
		UUID:        "11111111111111111111111111111111",
		Etag:        "etagvalue",
		Files:       []string{"roles/" + name + "/ROLE.md"},
		Tags:        []string{"backend", "senior"},
		Embedding:   embedding,
		Type:        model.KindRole,
		DateCreated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func unitVector(lead int, dims int) []float32 {
	v := make([]float32, dims)
	v[lead%dims] = 1
	return v
}

func TestEngine_OpenCreatesBothKindDatabases(t *testing.T) {
	t.Parallel()

	engine := openTestEngine(t)

	read := engine.ReadSession()
	rows, err := read.GetMany(model.KindRole, nil)
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = read.GetMany(model.KindSkill, nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEngine_ReopenPreservesData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	engine, err := Open(dir)
	require.NoError(t, err)

	sess, err := engine.Session()
	require.NoError(t, err)
	require.NoError(t, sess.Upsert(model.KindRole, []model.IndexEntry{sampleEntry("backend-engineer", unitVector(0, Dimensions))}))
	require.NoError(t, sess.Commit())
	require.NoError(t, engine.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	entry, err := reopened.ReadSession().GetOne(model.KindRole, "backend-engineer")
	require.NoError(t, err)
	require.Equal(t, "backend-engineer", entry.Name)
}
