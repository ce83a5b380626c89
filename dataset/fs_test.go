package dataset

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	t.Parallel()

	f := FS(fstest.MapFS{
		RootShardName: &fstest.MapFile{Data: []byte(`{}`)},
	})
	ctx := context.Background()

	data, err := f.Fetch(ctx, RootShardName)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	_, err = f.Fetch(ctx, ShardName("941"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = f.Fetch(ctx, "../escape.json")
	require.Error(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.Fetch(canceled, RootShardName)
	require.ErrorIs(t, err, context.Canceled)
}
