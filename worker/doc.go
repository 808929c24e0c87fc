// Package worker provides the generic polling loop that runs each pipeline stage.
//
// A Worker pulls a batch from its Source, hands it to its Processor, and
// pushes the result to its Sink. When the source reports end of stream the
// worker forwards the marker downstream, or fires the completion Signal if it
// is the terminal stage, and exits.
//
// Lifecycle moves one way: running, stopping, stopped. Stop is cooperative;
// it is observed between iterations and wakes an idle wait, but never
// interrupts a batch in flight.
package worker
