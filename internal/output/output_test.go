package output

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertEmptyTextIsNoOp(t *testing.T) {
	inserter := NewInserter(nil)
	require.NoError(t, inserter.Insert(context.Background(), ""))
}

func TestCopyEmptyTextIsNoOp(t *testing.T) {
	require.NoError(t, Copy(""))
}
