// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package testing provides test helpers for PKE integration tests.
//
// # Quick Start
//
// Use SetupTestStore to create a snapshot store backed by a temporary
// SQLite database:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//
//	    snap := testing.NewTestSnapshot("dir:/tmp/corpus",
//	        testing.NewTestChunk("a.py", "helper", model.KindFunction),
//	    )
//	    require.NoError(t, store.Commit(context.Background(), snap))
//
//	    // Run your tests...
//	}
//
// The store is closed automatically when the test finishes.
package testing
