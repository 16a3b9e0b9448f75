package graphclustering_test

import (
	"testing"

	gc "github.com/c360/semcommunity/pkg/graphclustering"
	"github.com/c360/semcommunity/pkg/graphclustering/persistertest"
)

func TestMemoryCommunityStorage_Conformance(t *testing.T) {
	persistertest.Run(t, func(*testing.T) gc.CommunityPersister {
		return gc.NewMemoryCommunityStorage()
	})
}
