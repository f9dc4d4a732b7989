package process

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/ksync"
)

// InitExitStatus is the sentinel an exit_status carries until the child
// actually reports one, consistent with the -1 a kernel-side kill reports.
const InitExitStatus = -1

// ChildLink is the two-party rendezvous between a parent and its child
// (spec.md §4.8's "ChildLink", grounded on process.c's struct
// child_info): one load semaphore the child ups once after attempting
// load(), one wait semaphore it ups once on exit, and an access count so
// either party can tell when the other is done with it. Go's GC makes
// the manual free() the original performs unnecessary; the count is kept
// anyway as the authoritative "has the other side released this" signal
// that Wait and Exit both need.
type ChildLink struct {
	ChildTID  int
	ParentTID int

	loadWait *ksync.Semaphore
	waitSema *ksync.Semaphore

	mu         sync.Mutex
	exitStatus int
	loadOK     bool
	waited     bool
	accesses   int
}

func newChildLink(parentTID, childTID int) *ChildLink {
	return &ChildLink{
		ChildTID:   childTID,
		ParentTID:  parentTID,
		loadWait:   ksync.NewSemaphore(0),
		waitSema:   ksync.NewSemaphore(0),
		exitStatus: InitExitStatus,
	}
}

// reportLoad is called once by the child after attempting load(),
// recording whether it succeeded and releasing the parent's load wait.
func (c *ChildLink) reportLoad(ok bool) {
	c.mu.Lock()
	c.loadOK = ok
	c.mu.Unlock()
	c.loadWait.Up()
}

// awaitLoad blocks the parent until the child has reported load status.
func (c *ChildLink) awaitLoad() bool {
	c.loadWait.Down()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadOK
}

// reportExit stores status and releases the parent's wait semaphore,
// called once by the child during process exit.
func (c *ChildLink) reportExit(status int) {
	c.mu.Lock()
	c.exitStatus = status
	c.mu.Unlock()
	c.waitSema.Up()
}

// release increments the shared access count and reports whether this
// caller was the second (and therefore final) releaser.
func (c *ChildLink) release() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accesses++
	return c.accesses >= 2
}

// markWaited flags that process_wait has already consumed this link;
// it is never valid to wait on the same child twice.
func (c *ChildLink) markWaited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waited {
		return false
	}
	c.waited = true
	return true
}

func (c *ChildLink) status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitStatus
}
