package graphclustering

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/c360/semcommunity/natsclient"
)

// Package-level shared test client to avoid Docker resource exhaustion
var sharedTestClient *natsclient.TestClient

// TestMain starts one shared NATS container when integration tests are enabled.
// Unit tests always run; integration tests require INTEGRATION_TESTS=1.
func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TESTS") != "" {
		testClient, err := natsclient.NewSharedTestClient(
			natsclient.WithJetStream(),
			natsclient.WithKVBuckets(CommunityBucket),
			natsclient.WithStartTimeout(30*time.Second),
		)
		if err != nil {
			log.Fatalf("Failed to create shared test client: %v", err)
		}
		sharedTestClient = testClient
	}

	exitCode := m.Run()

	if sharedTestClient != nil {
		sharedTestClient.Terminate()
	}

	os.Exit(exitCode)
}

// getSharedTestClient returns the shared test client for integration tests
func getSharedTestClient(t *testing.T) *natsclient.TestClient {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run.")
	}
	if sharedTestClient == nil {
		t.Fatal("Shared test client not initialized - TestMain should have created it")
	}
	return sharedTestClient
}
