// Package retry provides exponential backoff retry logic for transient failures.
//
// The [Do] function retries an operation with configurable max attempts,
// initial delay, maximum delay and an optional classifier deciding which
// errors are worth another attempt. It wraps IAM calls that race against
// eventual consistency, manifest downloads and API server round trips.
package retry
