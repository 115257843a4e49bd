package fieldselection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/webgraph/internal/webgraph"
)

func writeSchema(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webgraph.schema")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadBareAndAliasedEntries(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	path := writeSchema(t, "# comment\nid\ntarget_relflags_i = relflags\nbogus_field\n")

	p, err := Load(path, zap.New(core))
	require.NoError(t, err)
	require.False(t, p.IsSelectAll())
	require.True(t, p.IsEnabled(webgraph.FieldID))
	require.Equal(t, "id", p.Alias(webgraph.FieldID))
	require.Equal(t, "relflags", p.Alias(webgraph.FieldTargetRelFlags))
	require.False(t, p.Tracks(webgraph.FieldTargetRel))

	require.Equal(t, 1, logs.FilterMessage("dropping unknown schema field").Len())
	missing := logs.FilterMessage("schema fields not declared, they will not be indexed").All()
	require.Len(t, missing, 1)
}

func TestLoadMissingOrEmptyFileSelectsAll(t *testing.T) {
	t.Parallel()

	p, err := Load(filepath.Join(t.TempDir(), "absent.schema"), nil)
	require.NoError(t, err)
	require.True(t, p.IsSelectAll())

	p, err = Load(writeSchema(t, "\n# nothing here\n"), nil)
	require.NoError(t, err)
	require.True(t, p.IsSelectAll())

	p, err = Load("", nil, WithLazy(true))
	require.NoError(t, err)
	require.True(t, p.IsSelectAll())
	require.True(t, p.Lazy())
}

func TestLoadWithoutIDFails(t *testing.T) {
	t.Parallel()

	_, err := Load(writeSchema(t, "target_rel_s\nprocess_sxt\n"), nil)
	require.ErrorIs(t, err, ErrIDRequired)
}

func TestLoadOnlyUnknownFieldsSelectsAll(t *testing.T) {
	t.Parallel()

	p, err := Load(writeSchema(t, "nope\nalso_nope = x\n"), nil)
	require.NoError(t, err)
	require.True(t, p.IsSelectAll())
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	p, err := New([]Entry{
		{Field: webgraph.FieldID},
		{Field: webgraph.FieldProcess, Alias: "proc"},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.schema")
	p.Save(path, nil)

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, p.Entries(), loaded.Entries())
}

func TestSaveSwallowsIOErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	path := filepath.Join(t.TempDir(), "missing-dir", "saved.schema")
	SelectAll().Save(path, zap.New(core))
	require.Equal(t, 1, logs.FilterMessage("save schema failed").Len())
}
