// Package hash computes the CRC32-Castagnoli checksums recorded in publish
// manifests.
//
//	h := hash.NewCRC32C()
//	io.Copy(h, f)
//	sum := hash.Encode(h.Sum32())
//
// Go's crc32 package uses hardware instructions when available.
package hash
