// Package batch runs one tool operation over several IDs.
//
// Tools that accept either a single ID or an array of IDs use IDs to read
// the argument, Process to run the operation with bounded concurrency, and
// Format to report per-item outcomes. A failure for one item never aborts
// the others.
package batch
