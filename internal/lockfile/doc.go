// Package lockfile provides the Lock Guard of a working directory.
//
// A Guard is an exclusive advisory lock (flock) on a file inside the
// working directory. Only one process may hold it; the lock file records
// the owner so that operators can see who holds it and so that stale locks
// left behind on filesystems without reliable flock semantics can be
// reclaimed after a staleness threshold.
//
// Release is idempotent and is wired both to deferred cleanup and to the
// signal handler, so the lock is dropped on every exit path that allows
// cleanup. Abrupt termination is covered by the kernel dropping the flock.
package lockfile
