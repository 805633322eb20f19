// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("ober/"),
//	    s3.WithRegion("us-east-1"),
//	)
//	_, err = blobstore.Publish(ctx, store, versionDir, "tokens/00003")
//
// # Features
//
//   - Multipart uploads for large vector and graph files
//   - CRC32C integrity checksums computed by the SDK
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
