package inmemorystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/inmemorytopology"
)

func newTopology(t *testing.T, ens *entity.Ensemble) *inmemorytopology.Store {
	t.Helper()
	topo, err := inmemorytopology.FromEnsemble(context.Background(), ens)
	require.NoError(t, err)
	return topo
}
