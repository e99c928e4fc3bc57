package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/payments-reconciler/internal/storage/memory"
)

func TestOpenWithoutDSNUsesMemory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	assert.IsType(t, &memory.MemoryRunStore{}, store)
	assert.NoError(t, closeFn())
}

func TestOpenBadDSN(t *testing.T) {
	_, _, err := Open(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	assert.Error(t, err)
}
