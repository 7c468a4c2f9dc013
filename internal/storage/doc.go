// Package storage provides the State Store of a working directory.
//
// The store is an embedded, ordered key-value engine (Badger) opened by a
// single process at a time. It offers:
//
//   - Point reads and writes
//   - Ordered prefix scans, restartable per call
//   - Atomic batches: all writes of a batch become visible together or not
//     at all, and are fsynced before the batch returns
//
// The store does no locking of its own beyond what Badger does on its
// directory; cross-process exclusion is the job of package lockfile.
package storage
