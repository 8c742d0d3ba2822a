package facade

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/persona-registry/internal/config"
	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/frontmatter"
	"github.com/mvp-joe/persona-registry/internal/library"
	"github.com/mvp-joe/persona-registry/internal/metastore"
	"github.com/mvp-joe/persona-registry/internal/model"
)

func newFacade(t *testing.T) *Facade {
	t.Helper()
	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	meta, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	provider := embed.NewMockProvider()
	cat, err := library.Load()
	require.NoError(t, err)

	cfg := config.Default()
	return New(files, meta, provider, cat, cfg)
}

func writeSkillSource(t *testing.T, name, description string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"),
		[]byte("---\nname: "+name+"\ndescription: "+description+"\n---\n# "+name+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.py"), []byte("print('hi')\n"), 0o644))
	return dir
}

func TestPublishThenList(t *testing.T) {
	t.Parallel()
	f := newFacade(t)
	dir := writeSkillSource(t, "web_scraper", "scrapes pages")

	_, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindSkill})
	require.NoError(t, err)

	rows, err := f.ListTemplates(model.KindSkill, []string{"name", "description", "uuid"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "web_scraper", rows[0]["name"])
	require.Equal(t, "web_scraper - scrapes pages", rows[0]["description"])
}

func TestPublishTwiceYieldsSameUUID(t *testing.T) {
	t.Parallel()
	f := newFacade(t)
	dir := writeSkillSource(t, "web_scraper", "scrapes pages")

	entry1, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindSkill})
	require.NoError(t, err)

	entry2, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindSkill})
	require.NoError(t, err)

	require.Equal(t, entry1.UUID, entry2.UUID)

	version, err := f.GetSkillVersion("web_scraper")
	require.NoError(t, err)
	require.Equal(t, entry1.UUID, version)
}

func TestInstallSkillWritesFilesAndVersion(t *testing.T) {
	t.Parallel()
	f := newFacade(t)
	dir := writeSkillSource(t, "web_scraper", "scrapes pages")

	entry, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindSkill})
	require.NoError(t, err)

	installDir := t.TempDir()
	skillMD, err := f.InstallSkill("web_scraper", installDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(installDir, "web_scraper", "SKILL.md"), skillMD)

	require.FileExists(t, filepath.Join(installDir, "web_scraper", "SKILL.md"))
	require.FileExists(t, filepath.Join(installDir, "web_scraper", "run.py"))

	data, err := os.ReadFile(skillMD)
	require.NoError(t, err)
	doc, err := frontmatter.Parse(data)
	require.NoError(t, err)
	nested, ok := doc.Metadata["metadata"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, entry.UUID, nested["version"])

	_, err = f.InstallSkill("web_scraper", "relative/path")
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestGetSkillFilesKeyedByStoragePath(t *testing.T) {
	t.Parallel()
	f := newFacade(t)
	dir := writeSkillSource(t, "web_scraper", "scrapes pages")

	_, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindSkill})
	require.NoError(t, err)

	files, err := f.GetSkillFiles("web_scraper")
	require.NoError(t, err)
	require.Contains(t, files, "skills/web_scraper/SKILL.md")
	require.Contains(t, files, "skills/web_scraper/run.py")

	// Library skills are served under the same key scheme.
	libFiles, err := f.GetSkillFiles("frontmatter-version")
	require.NoError(t, err)
	require.Contains(t, libFiles, "skills/frontmatter-version/SKILL.md")
	require.Contains(t, libFiles, "skills/frontmatter-version/scripts/get_version.py")
}

func TestInstallLibrarySkillShortCircuits(t *testing.T) {
	t.Parallel()
	f := newFacade(t)

	installDir := t.TempDir()
	skillMD, err := f.InstallSkill("frontmatter-version", installDir)
	require.NoError(t, err)
	require.FileExists(t, skillMD)

	_, err = f.GetSkillVersion("frontmatter-version")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSearchRanksClosestMatchFirst(t *testing.T) {
	t.Parallel()
	f := newFacade(t)

	for _, tc := range []struct{ name, desc string }{
		{"data-scientist", "data scientist"},
		{"backend-engineer", "backend engineer"},
		{"chef", "chef"},
	} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ROLE.md"),
			[]byte("---\nname: "+tc.name+"\ndescription: "+tc.desc+"\n---\nbody\n"), 0o644))
		_, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindRole})
		require.NoError(t, err)
	}

	// MockProvider hashes raw text regardless of mode, so querying with the
	// exact canonical description a passage was embedded from ("name -
	// description") reproduces that passage's vector exactly: a guaranteed
	// zero-distance match, unlike a semantically-similar-but-not-identical
	// query string.
	rows, err := f.SearchTemplates(context.Background(), "data-scientist - data scientist", model.KindRole, []string{"name"}, SearchOptions{Limit: 2, MaxCosineDistance: 2.0})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	require.Equal(t, "data-scientist", rows[0]["name"])
}

// closeOnDeleteStore closes the metadata engine before every Delete it
// passes on to the wrapped store.
type closeOnDeleteStore struct {
	filestore.Store
	meta *metastore.Engine
}

func (s closeOnDeleteStore) Delete(key string, recursive bool, rec filestore.Recorder) error {
	_ = s.meta.Close()
	return s.Store.Delete(key, recursive, rec)
}

func TestDeleteTemplateRollsBackOnFailure(t *testing.T) {
	t.Parallel()
	f := newFacade(t)
	dir := writeSkillSource(t, "web_scraper", "scrapes pages")

	_, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindSkill})
	require.NoError(t, err)

	// Close the engine on the first file delete, after DeleteTemplate has read
	// the entry, to force the write-session open inside the delete
	// transaction to fail, simulating a metastore error mid-commit.
	f.files = closeOnDeleteStore{Store: f.files, meta: f.meta}

	err = f.DeleteTemplate("web_scraper", model.KindSkill)
	require.Error(t, err)

	// File bytes must still be present: Deindex's metadata failure rolled
	// the FileStore deletes back.
	require.True(t, f.files.Exists("skills/web_scraper/SKILL.md"))
	require.True(t, f.files.Exists("skills/web_scraper/run.py"))
}

func TestOpenWiresStoresFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Root = t.TempDir()

	reg, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ROLE.md"),
		[]byte("---\nname: greeter\ndescription: greets people\n---\nbody\n"), 0o644))

	_, err = reg.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindRole})
	require.NoError(t, err)

	rows, err := reg.ListTemplates(model.KindRole, []string{"name"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// The metadata databases land under <root>/index.
	require.FileExists(t, filepath.Join(cfg.Root, "index", "roles.db"))
}

func TestGetRoleDetailsDecomposesPrompt(t *testing.T) {
	t.Parallel()
	f := newFacade(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ROLE.md"),
		[]byte("---\nname: backend-engineer\ndescription: builds services\n---\nYou are a backend engineer.\n"), 0o644))

	_, err := f.PublishTemplate(context.Background(), PublishInput{Path: dir, Kind: model.KindRole})
	require.NoError(t, err)

	details, err := f.GetRoleDetails("backend-engineer")
	require.NoError(t, err)
	require.Equal(t, "backend-engineer - builds services", details.Description)
	require.Equal(t, "You are a backend engineer.", details.Prompt)
}
