// Package queue provides a durable, ordered batch queue backed by a Redis list.
//
// Each record on the list is a small JSON envelope tagged either as an item
// (carrying the codec's encoding of the item) or as the end-of-stream marker.
// A queue has exactly one producer, which pushes the marker once after its
// last batch, and one consumer, which learns the stream is over when PopBatch
// reports Ended.
//
// Connection failures are retried a bounded number of times with a fixed
// delay. Exhausting the bound returns ErrConnectionFailed; the queue never
// hands back an unusable connection.
package queue
