// Package workers runs the queue consumers behind the verification engine:
// provider-result processing and outbound webhook notification tasks. The
// runner acks successful handlers and requeues failures with a fixed delay
// until the attempt budget runs out.
package workers
