package ops

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/marshal"
	"github.com/hpungsan/rxscripts/internal/script"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestInject_PreservesUntouchedRecords(t *testing.T) {
	d, _ := testDeps(t)
	dir := t.TempDir()
	container := writeContainer(t, dir,
		rec(t, 1, "A", "a source"),
		rec(t, 2, "B", "b source"),
		&marshal.Hash{Pairs: []marshal.Pair{{Key: marshal.Sym("meta"), Value: marshal.Int(1)}}},
		rec(t, 3, "C", "c source"),
	)
	original, err := os.ReadFile(container)
	require.NoError(t, err)

	edits := t.TempDir()
	b := writeScript(t, edits, "B.rb", "b edited")

	output, err := Inject(context.Background(), d, InjectInput{ContainerPath: container, Files: []string{b}})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Scripts_updated.rxdata"), output.OutputPath)
	assert.Equal(t, InjectTally{Updated: 1}, output.Tally)
	require.Len(t, output.Results, 1)
	assert.Equal(t, StatusUpdated, output.Results[0].Status)
	assert.Equal(t, "B", output.Results[0].Script)

	// input container untouched
	after, err := os.ReadFile(container)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(original, after))

	orig, err := script.Load(container)
	require.NoError(t, err)
	updated, err := script.Load(output.OutputPath)
	require.NoError(t, err)

	require.Len(t, updated.Entries, 4)
	assert.Equal(t, orig.Records()[0].Payload(), updated.Records()[0].Payload())
	assert.Equal(t, orig.Records()[2].Payload(), updated.Records()[2].Payload())
	assert.IsType(t, &script.Opaque{}, updated.Entries[2])
	src, err := updated.Records()[1].Source()
	require.NoError(t, err)
	assert.Equal(t, "b edited", src)

	runs, err := db.ListRuns(d.DB, db.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Updated)
	assert.Equal(t, output.OutputPath, runs[0].OutputPath)
}

func TestInject_NoMatchWritesNothing(t *testing.T) {
	d := quietDeps()
	dir := t.TempDir()
	container := writeContainer(t, dir, rec(t, 1, "A", "a"))
	file := writeScript(t, t.TempDir(), "Z.rb", "z")

	output, err := Inject(context.Background(), d, InjectInput{ContainerPath: container, Files: []string{file}})
	require.NoError(t, err)

	assert.Equal(t, 0, output.Tally.Updated)
	assert.Equal(t, 1, output.Tally.NotFound)
	assert.Empty(t, output.OutputPath)
	assert.NoFileExists(t, filepath.Join(dir, "Scripts_updated.rxdata"))
}

func TestInject_UnchangedAndMixedStatuses(t *testing.T) {
	d := quietDeps()
	dir := t.TempDir()
	container := writeContainer(t, dir,
		rec(t, 1, "Same", "same body"),
		rec(t, 2, "__ Utilities __", "old utils"),
		rec(t, 3, "Game*Map", "first"),
		rec(t, 4, "Game/Map", "second"),
	)
	edits := t.TempDir()
	files := []string{
		writeScript(t, edits, "Same.rb", "same body"),
		writeScript(t, edits, "__Utilities__.rb", "new utils"),
		writeScript(t, edits, "Game_Map.rb", "map edit"),
		writeScript(t, edits, "Missing.rb", "x"),
	}

	output, err := Inject(context.Background(), d, InjectInput{ContainerPath: container, Files: files})
	require.NoError(t, err)

	assert.Equal(t, InjectTally{Updated: 2, Unchanged: 1, NotFound: 1}, output.Tally)
	require.Len(t, output.Collisions, 1)
	assert.Equal(t, "Game_Map", output.Collisions[0].SafeName)

	updated, err := script.Load(output.OutputPath)
	require.NoError(t, err)
	recs := updated.Records()

	utils, err := recs[1].Source()
	require.NoError(t, err)
	assert.Equal(t, "new utils", utils)

	// first match wins on collision
	first, err := recs[2].Source()
	require.NoError(t, err)
	assert.Equal(t, "map edit", first)
	second, err := recs[3].Source()
	require.NoError(t, err)
	assert.Equal(t, "second", second)
}

func TestInject_PreservesEncodedNameWrapper(t *testing.T) {
	d := quietDeps()
	dir := t.TempDir()
	name := &marshal.IVar{
		Object: &marshal.String{Data: []byte("Café")},
		Attrs:  []marshal.Attr{{Name: marshal.Sym("E"), Value: marshal.Bool(true)}},
	}
	payload, err := script.Compress([]byte("old"), -1)
	require.NoError(t, err)
	container := writeContainer(t, dir, &marshal.Array{Elems: []marshal.Value{
		marshal.Int(1), name, &marshal.IVar{Object: &marshal.String{Data: payload}, Attrs: []marshal.Attr{{Name: marshal.Sym("E"), Value: marshal.Bool(false)}}},
	}})
	file := writeScript(t, t.TempDir(), "Café.rb", "new")

	output, err := Inject(context.Background(), d, InjectInput{ContainerPath: container, Files: []string{file}})
	require.NoError(t, err)
	require.Equal(t, 1, output.Tally.Updated)

	data, err := os.ReadFile(output.OutputPath)
	require.NoError(t, err)
	v, err := marshal.Decode(data)
	require.NoError(t, err)
	arr := v.(*marshal.Array).Elems[0].(*marshal.Array)
	assert.IsType(t, &marshal.IVar{}, arr.Elems[1])
	assert.IsType(t, &marshal.IVar{}, arr.Elems[2])
}

func TestInject_ValidatesBeforeLoading(t *testing.T) {
	d := quietDeps()
	dir := t.TempDir()
	garbage := filepath.Join(dir, "Scripts.rxdata")
	require.NoError(t, os.WriteFile(garbage, []byte("not marshal"), 0644))
	txt := writeScript(t, dir, "notes.txt", "x")

	// Invalid inputs are reported even though the container would not load.
	_, err := Inject(context.Background(), d, InjectInput{ContainerPath: garbage, Files: []string{txt}})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	_, err = Inject(context.Background(), d, InjectInput{ContainerPath: filepath.Join(dir, "missing.rxdata"), Files: []string{txt}})
	assert.True(t, errors.Is(err, errors.ErrContainerLoadFailed), "got %v", err)

	rb := writeScript(t, dir, "A.rb", "x")
	_, err = Inject(context.Background(), d, InjectInput{ContainerPath: garbage, Files: []string{rb}, OutputPath: garbage})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	_, err = Inject(context.Background(), d, InjectInput{ContainerPath: garbage, Files: []string{rb}})
	assert.True(t, errors.Is(err, errors.ErrContainerLoadFailed), "got %v", err)
}

func TestInject_CustomOutputAndGlob(t *testing.T) {
	d := quietDeps()
	dir := t.TempDir()
	container := writeContainer(t, dir, rec(t, 1, "A", "a"), rec(t, 2, "B", "b"))
	edits := filepath.Join(dir, "edits", "nested")
	require.NoError(t, os.MkdirAll(edits, 0755))
	writeScript(t, edits, "A.rb", "a2")
	writeScript(t, edits, "B.rb", "b2")
	writeScript(t, edits, "README.md", "ignored")

	out := filepath.Join(dir, "patched.rxdata")
	output, err := Inject(context.Background(), d, InjectInput{
		ContainerPath: container,
		Files:         []string{filepath.Join(dir, "edits", "**", "*")},
		OutputPath:    out,
	})
	require.NoError(t, err)

	assert.Equal(t, out, output.OutputPath)
	assert.Equal(t, 2, output.Tally.Updated)
}
