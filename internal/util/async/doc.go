// Package async provides utilities for parallel task execution with
// error collection.
//
// The [Run] function executes operations concurrently with an optional
// concurrency limit and reports the outcome of every task. The stack engine
// uses it to apply the independent resources of one dependency level at once.
package async
