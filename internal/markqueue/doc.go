// Package markqueue implements per-thread SATB mark queues and the queue
// set that coordinates them.
//
// # Recording
//
// A mutator thread owns one Queue and appends the previous value of every
// reference slot it overwrites while marking is active:
//
//	q := qs.NewQueue(threadID)
//	q.Append(old) // lock-free, thread-confined
//
// When a buffer fills up it is filtered and either handed to the completed
// list or kept for further recording, depending on how much survived.
//
// # Processing
//
// Marking threads pull completed buffers in FIFO order:
//
//	for qs.DrainOne(marker) {
//	}
//
// Notify signals when the completed list grows past the configured
// threshold.
//
// # Activation
//
// Recording is switched on and off for every queue at once while the world
// is stopped:
//
//	qs.SetActiveAllThreads(true, false)  // start of marking
//	qs.SetActiveAllThreads(false, true)  // end of marking
//
// A queue found in the wrong state is a fatal error.
//
// # Layout
//
// Layout exposes the byte offsets of the fields that generated fast-path
// appends manipulate. Reordering the Queue or recordbuf.Buffer fields
// changes this table.
package markqueue
