// Package reembed rewrites the vectors of stored chunks with a new or
// updated embedding model.
//
// Records are read from the store in batches, their content is embedded
// again with retry and backoff, the vectors are normalized to unit length,
// and each batch is written back in place. Record IDs, content and the rest
// of the metadata survive untouched.
package reembed
