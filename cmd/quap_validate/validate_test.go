package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quapdata/quap-validate/internal/config"
	"github.com/quapdata/quap-validate/internal/template"
	"github.com/quapdata/quap-validate/internal/violation"
)

func TestParseDelimiter(t *testing.T) {
	cases := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{",", ',', false},
		{";", ';', false},
		{`\t`, '\t', false},
		{"ab", 0, true},
	}
	for _, tc := range cases {
		got, err := parseDelimiter(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestRunOptions_FlagsOverrideEnv(t *testing.T) {
	t.Setenv(config.EnvChunkSize, "100")
	t.Setenv(config.EnvMaxViolations, "10")

	opts, err := runOptions(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, opts.ChunkSize)
	assert.Equal(t, 10, opts.MaxStoredViolations)

	opts, err = runOptions(250, 5)
	require.NoError(t, err)
	assert.Equal(t, 250, opts.ChunkSize)
	assert.Equal(t, 5, opts.MaxStoredViolations)
}

func TestTemplateSearchDirs_DefaultsToTemplates(t *testing.T) {
	assert.Equal(t, []string{"templates"}, templateSearchDirs(nil))
	assert.Equal(t, []string{"/a", "/b"}, templateSearchDirs([]string{"/a", "/b"}))
}

func TestCorruptReport_CarriesCorruptedExitCode(t *testing.T) {
	tpl, err := template.Parse([]byte(`{
		"template_id": "parcels",
		"version": "1.0.0",
		"columns": [{"name": "id", "dtype": "int64"}]
	}`), "parcels.json")
	require.NoError(t, err)

	rep := corruptReport(config.Defaults(), tpl, "broken.csv.gz", "", "", errors.New("gzip: invalid header"))
	assert.Equal(t, violation.ExitCorrupted, rep.ExitCode)
	assert.False(t, rep.OK)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, violation.KindCorruption, rep.Violations[0].Kind)
}
