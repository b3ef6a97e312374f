// Package resource governs the memory and IO budget of the page stores.
//
//   - Memory: the node cache reserves the estimated size of every decoded node
//     it keeps (non-blocking, fail-fast; a refused reservation simply means the
//     node is not cached).
//   - IO: a token bucket throttles page reads and writes against remote blob
//     stores so bulk loads do not starve concurrent queries.
//
// All methods handle a nil Controller gracefully - they become no-ops.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   256 << 20,
//	    IOLimitBytesPerSec: 50 << 20,
//	})
package resource
