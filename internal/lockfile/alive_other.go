//go:build !unix

package lockfile

// processAlive cannot probe processes here; assume the owner is alive so
// that only the staleness threshold and force-unlock can reclaim.
func processAlive(pid int) bool {
	return pid > 0
}
