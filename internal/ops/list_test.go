package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/rxscripts/internal/marshal"
)

func TestList(t *testing.T) {
	d := quietDeps()
	container := writeContainer(t, t.TempDir(),
		rec(t, 10, "Main", "abc"),
		marshal.Int(5),
		brokenRec(11, "Broken"),
		&marshal.Array{Elems: []marshal.Value{marshal.Int(12), &marshal.String{Data: []byte("Bad\xffName")}, mustPayload(t, "x")}},
		rec(t, 13, "Game*Map", "a"),
		rec(t, 14, "Game/Map", "b"),
	)

	output, err := List(context.Background(), d, ListInput{ContainerPath: container})
	require.NoError(t, err)

	assert.Equal(t, 5, output.Records)
	assert.Equal(t, 1, output.Opaque)
	assert.Equal(t, 1, output.Undecoded)
	require.Len(t, output.Entries, 6)

	main := output.Entries[0]
	assert.Equal(t, KindRecord, main.Kind)
	require.NotNil(t, main.ID)
	assert.Equal(t, int64(10), *main.ID)
	assert.Equal(t, DecodeOK, main.Status)
	assert.Equal(t, 3, main.SourceBytes)
	assert.Equal(t, "decoded", main.NameOutcome)

	assert.Equal(t, KindOpaque, output.Entries[1].Kind)
	assert.Equal(t, "5", output.Entries[1].Summary)

	assert.Equal(t, "corrupt", output.Entries[2].Status)

	assert.Equal(t, `Bad\xffName`, output.Entries[3].Name)
	assert.Equal(t, "fallback", output.Entries[3].NameOutcome)
	assert.Equal(t, "Bad_xffName", output.Entries[3].SafeName)

	require.Len(t, output.Collisions, 1)
	assert.Equal(t, []string{"Game*Map", "Game/Map"}, output.Collisions[0].Names)
}

func mustPayload(t *testing.T, src string) marshal.Value {
	t.Helper()
	v := rec(t, 0, "", src).(*marshal.Array)
	return v.Elems[2]
}
