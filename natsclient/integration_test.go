//go:build integration

package natsclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_Integration(t *testing.T) {
	tc := NewTestClient(t, WithKVBuckets("KV_TEST"))
	ctx := context.Background()

	bucket, err := tc.Client.GetKeyValueBucket(ctx, "KV_TEST")
	require.NoError(t, err)
	kv := tc.Client.NewKVStore(bucket)

	_, err = kv.Put(ctx, "graph.community.record.0.a", []byte("one"))
	require.NoError(t, err)
	_, err = kv.Put(ctx, "graph.community.summary.0.a", []byte("two"))
	require.NoError(t, err)

	entry, err := kv.Get(ctx, "graph.community.record.0.a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), entry.Value)

	keys, err := kv.Keys(ctx, "graph.community.record.")
	require.NoError(t, err)
	assert.Equal(t, []string{"graph.community.record.0.a"}, keys)

	require.NoError(t, kv.Delete(ctx, "graph.community.record.0.a"))
	_, err = kv.Get(ctx, "graph.community.record.0.a")
	assert.ErrorIs(t, err, ErrKVKeyNotFound)
	assert.NoError(t, kv.Delete(ctx, "graph.community.record.0.a"))
}
