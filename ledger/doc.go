// Package ledger maintains an ordered set of schema migrations and their
// applied/pending state.
//
// Features:
// - Records pair a forward Operation with its declared inverse
// - Pending records are applied in ascending ID order, halting on the first failure
// - Applied records are rolled back in descending order of application
// - Applied state is persisted through a Store after every step
// - Operations are executed by an injected Executor, so different backends
//   (direct DDL, an online schema change tool, an in-memory model) can be used
package ledger
