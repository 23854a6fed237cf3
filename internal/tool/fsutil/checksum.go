package fsutil

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
)

// ChecksumManager records, per host path, the BLAKE3 digest of the content the
// agent last read or wrote. Edits compare against it to detect files changed
// behind the agent's back.
type ChecksumManager struct {
	mu   sync.RWMutex
	seen map[string]string
}

func NewChecksumManager() *ChecksumManager {
	return &ChecksumManager{seen: map[string]string{}}
}

// Compute returns the hex digest of data.
func (m *ChecksumManager) Compute(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (m *ChecksumManager) Get(path string) (string, bool) {
	m.mu.RLock()
	sum, ok := m.seen[path]
	m.mu.RUnlock()
	return sum, ok
}

func (m *ChecksumManager) Update(path, checksum string) {
	m.mu.Lock()
	m.seen[path] = checksum
	m.mu.Unlock()
}
