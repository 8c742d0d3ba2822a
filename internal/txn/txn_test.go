package txn

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/metastore"
	"github.com/mvp-joe/persona-registry/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (filestore.Store, *metastore.Engine) {
	t.Helper()
	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	meta, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })
	return files, meta
}

func roleEntry(name string) model.IndexEntry {
	return model.IndexEntry{
		Name:        name,
		Description: name + " - does things",
		Files:       []string{fmt.Sprintf("roles/%s/ROLE.md", name)},
		Tags:        []string{"backend"},
		Embedding:   make([]float32, metastore.Dimensions),
		Type:        model.KindRole,
		DateCreated: time.Now().UTC(),
	}
}

func TestRun_PublishCommitsFilesAndMetadata(t *testing.T) {
	t.Parallel()
	files, meta := newHarness(t)

	entry := roleEntry("backend-engineer")
	id, err := Run(files, meta, func(c *Coordinator) error {
		if err := files.Save(entry.Files[0], []byte("---\nname: backend-engineer\n---\nbody"), c); err != nil {
			return err
		}
		return c.Index(entry)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.True(t, files.Exists(entry.Files[0]))
	assert.True(t, files.Exists("roles/backend-engineer/.manifest.json"))

	got, err := meta.ReadSession().GetOne(model.KindRole, "backend-engineer")
	require.NoError(t, err)
	assert.Equal(t, id, got.UUID)
}

func TestRun_FnErrorRollsBackFileWrites(t *testing.T) {
	t.Parallel()
	files, meta := newHarness(t)

	require.NoError(t, files.Save("roles/x/ROLE.md", []byte("original"), nil))

	sentinel := errors.New("boom")
	_, err := Run(files, meta, func(c *Coordinator) error {
		if err := files.Save("roles/x/ROLE.md", []byte("mutated"), c); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	data, err := files.Load("roles/x/ROLE.md")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestRun_CommitFailureRollsBackFileWrites(t *testing.T) {
	t.Parallel()
	files, meta := newHarness(t)

	require.NoError(t, files.Save("roles/x/ROLE.md", []byte("original"), nil))

	// Closing the engine makes the commit-phase write session fail after
	// the manifest sidecar has already been written.
	require.NoError(t, meta.Close())

	entry := roleEntry("x")
	_, err := Run(files, meta, func(c *Coordinator) error {
		if err := files.Save("roles/x/ROLE.md", []byte("mutated"), c); err != nil {
			return err
		}
		return c.Index(entry)
	})
	require.ErrorIs(t, err, model.ErrTransactionAborted)

	data, err := files.Load("roles/x/ROLE.md")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assert.False(t, files.Exists("roles/x/.manifest.json"))
}

func TestRun_MixedKindsRejected(t *testing.T) {
	t.Parallel()
	files, meta := newHarness(t)

	_, err := Run(files, meta, func(c *Coordinator) error {
		if err := c.Index(roleEntry("a")); err != nil {
			return err
		}
		skill := roleEntry("b")
		skill.Type = model.KindSkill
		return c.Index(skill)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestRun_IdempotentRepublishSameBytesSameID(t *testing.T) {
	t.Parallel()
	files, meta := newHarness(t)

	publish := func(name string) string {
		entry := roleEntry(name)
		entry.UUID = ""
		id, err := Run(files, meta, func(c *Coordinator) error {
			return c.Index(entry)
		})
		require.NoError(t, err)
		return id
	}

	id1 := publish("stable")
	id2 := publish("stable")
	assert.Equal(t, id1, id2)
}

func TestRun_DeleteRemovesEntry(t *testing.T) {
	t.Parallel()
	files, meta := newHarness(t)

	entry := roleEntry("to-delete")
	_, err := Run(files, meta, func(c *Coordinator) error {
		return c.Index(entry)
	})
	require.NoError(t, err)

	_, err = Run(files, meta, func(c *Coordinator) error {
		return c.Deindex(entry)
	})
	require.NoError(t, err)

	exists, err := meta.ReadSession().Exists(model.KindRole, "to-delete")
	require.NoError(t, err)
	assert.False(t, exists)
}
