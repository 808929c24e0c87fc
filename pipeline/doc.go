// Package pipeline drives the three ingestion workers as one unit.
//
// The chunk worker drains a Chunker into the document queue, the embed
// worker moves chunks from the document queue to the embedding queue, and
// the persist worker writes embedded chunks to a vector store. Workers start
// in that order, StartDelay apart, and end of stream flows down the queues
// until the persist worker fires the completion signal.
//
// Basic usage:
//
//	p, err := pipeline.New(pipeline.DefaultConfig(), pipeline.Stages{...})
//	if err != nil {
//	    return err
//	}
//	if err := p.Run(ctx); err != nil {
//	    return err
//	}
//
// Run is Start, AwaitCompletion and Stop in sequence. Callers that need to
// observe progress while the pipeline runs can call them separately and poll
// Workers.
//
// A worker whose source or sink fails ends the whole pipeline: the remaining
// workers see their context cancelled and the failure is reported, wrapped in
// ErrWorkerFailed, by AwaitCompletion and Stop.
package pipeline
