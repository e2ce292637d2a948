// Package core holds the verification workflow domain: the status state
// machine, the review coordinator, and the engine that applies provider
// results and reviewer decisions to persistent records while scheduling
// outbound webhook notifications on the task runner.
package core
