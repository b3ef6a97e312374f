// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/points/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	idx, err := xtree.New(ctx, 3, xtree.WithBlobStore(store))
//
// Wrap the store in a DDBCommitStore when several processes may commit the
// same index concurrently.
package s3
