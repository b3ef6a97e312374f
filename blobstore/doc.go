// Package blobstore provides the storage abstraction behind persistent
// indexes.
//
// A BlobStore holds tree pages, page allocator state and the index manifest
// as small, whole objects. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and ephemeral indexes
//   - LocalStore: local filesystem with atomic writes and a directory lock
//   - s3.Store: Amazon S3, optionally with DynamoDB manifest commits
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error   // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
