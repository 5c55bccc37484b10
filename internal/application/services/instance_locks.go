package services

import (
	"hash/fnv"
	"sync"
)

// instanceLockCount is the number of lock stripes. Locks are striped rather
// than per-id so the table never grows with instance count.
const instanceLockCount = 64

// InstanceLockManager serializes mutations per workflow instance. Every
// engine transition and approval decision for one instance runs under its
// lock, so concurrent decisions against the same instance apply one at a
// time. Two distinct instance ids may share a stripe; that only costs
// parallelism, never correctness.
type InstanceLockManager struct {
	locks [instanceLockCount]sync.Mutex
}

// NewInstanceLockManager creates a new InstanceLockManager
func NewInstanceLockManager() *InstanceLockManager {
	return &InstanceLockManager{}
}

// Lock acquires the stripe for instanceID and returns its unlock function.
func (m *InstanceLockManager) Lock(instanceID string) func() {
	mu := &m.locks[m.stripe(instanceID)]
	mu.Lock()
	return mu.Unlock
}

func (m *InstanceLockManager) stripe(instanceID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(instanceID))
	return h.Sum32() % instanceLockCount
}
