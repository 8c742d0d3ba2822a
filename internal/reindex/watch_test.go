package reindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/metastore"
	"github.com/mvp-joe/persona-registry/internal/model"
)

func TestReindexOnChange_AppliesAfterChange(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	files, err := filestore.NewLocal(rootDir)
	require.NoError(t, err)
	meta, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	require.NoError(t, files.Save("roles/chef/ROLE.md",
		[]byte("---\nname: chef\ndescription: cooks meals\n---\nbody\n"), nil))

	provider := embed.NewMockProvider()
	rep := &recordingReporter{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- ReindexOnChange(ctx, files, rootDir, []model.Kind{model.KindRole},
			provider, newTagger(t), meta, rep, 20*time.Millisecond)
	}()

	// Let the watcher register, then touch the watched root to fire a burst.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, files.Save("marker.md", []byte("x"), nil))

	require.Eventually(t, func() bool {
		ok, err := meta.ReadSession().Exists(model.KindRole, "chef")
		return err == nil && ok
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.GreaterOrEqual(t, rep.scanned, 1)
	require.GreaterOrEqual(t, rep.total, 1)
}
