package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "reports/archive/abc.csv", "text/csv", bytes.NewBufferString("a,b"))
	require.NoError(t, err)
	require.Equal(t, "memory://reports/archive/abc.csv", uri)

	data, ok := store.Object("reports/archive/abc.csv")
	require.True(t, ok)
	require.Equal(t, "a,b", string(data))
	require.Equal(t, []string{"reports/archive/abc.csv"}, store.Paths())

	_, err = store.PutObject(context.Background(), "", "text/csv", bytes.NewBufferString("x"))
	require.Error(t, err)
}
