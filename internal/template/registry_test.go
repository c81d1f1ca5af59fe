package template

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tplJSON(id, version string) string {
	return fmt.Sprintf(`{
		"template_id": %q, "version": %q,
		"columns": [{"name": "id", "dtype": "int64", "required": true}]
	}`, id, version)
}

func TestRegistry_DirectFilenameMatch(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "parcels.json", tplJSON("parcels", "1.0.0"))

	reg := NewRegistry([]string{dir})
	tpl, err := reg.Load("parcels", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", tpl.Version)
}

func TestRegistry_ScanPicksHighestVersion(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "a.json", tplJSON("parcels", "1.2.0"))
	writeTemplate(t, dir, "b.json", tplJSON("parcels", "1.10.0"))
	writeTemplate(t, dir, "c.json", tplJSON("parcels", "0.9.9"))

	reg := NewRegistry([]string{dir})
	tpl, err := reg.Load("parcels", "")
	require.NoError(t, err)
	// 1.10.0 > 1.2.0 numerically, not lexically.
	assert.Equal(t, "1.10.0", tpl.Version)
}

func TestRegistry_ExactVersionRequired(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "a.json", tplJSON("parcels", "1.2.0"))

	reg := NewRegistry([]string{dir})
	_, err := reg.Load("parcels", "2.0.0")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "2.0.0", nf.Version)
}

func TestRegistry_IndexAliasResolution(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "parcels_v1.json", tplJSON("parcels", "1.0.0"))
	writeTemplate(t, dir, "index.json", `{
		"templates": [
			{"template_id": "parcels", "version": "1.0.0", "label": "Parcels",
			 "aliases": ["lpis_population"], "path": "parcels_v1.json"}
		]
	}`)

	reg := NewRegistry([]string{dir})
	tpl, err := reg.Load("lpis_population", "")
	require.NoError(t, err)
	assert.Equal(t, "parcels", tpl.TemplateID)
}

func TestRegistry_NotFound(t *testing.T) {
	reg := NewRegistry([]string{t.TempDir()})
	_, err := reg.Load("nope", "")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRegistry_EnvDirAppended(t *testing.T) {
	cliDir := t.TempDir()
	envDir := t.TempDir()
	writeTemplate(t, envDir, "parcels.json", tplJSON("parcels", "3.0.0"))
	t.Setenv(EnvTemplatesDir, envDir)

	reg := NewRegistry([]string{cliDir})
	tpl, err := reg.Load("parcels", "")
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", tpl.Version)
	assert.Equal(t, []string{cliDir, envDir}, reg.Dirs())
}

func TestRegistry_List(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "index.json", `{
		"templates": [
			{"template_id": "parcels", "version": "1.0.0", "label": "Parcels", "path": "a.json"},
			{"template_id": "claims", "version": "2.1.0", "label": "Claims", "path": "b.json"}
		]
	}`)

	reg := NewRegistry([]string{dir})
	listed := reg.List()
	require.Len(t, listed, 2)
	assert.Equal(t, "parcels", listed[0].TemplateID)
	assert.Equal(t, "claims", listed[1].TemplateID)
	assert.Equal(t, dir, listed[0].Dir)
}

func TestRegistry_UnreadableIndexFallsBackToScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("{broken"), 0644))
	writeTemplate(t, dir, "parcels.json", tplJSON("parcels", "1.0.0"))

	reg := NewRegistry([]string{dir})
	tpl, err := reg.Load("parcels", "")
	require.NoError(t, err)
	assert.Equal(t, "parcels", tpl.TemplateID)
}
