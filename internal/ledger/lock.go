package ledger

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// AccountLocks serializes mutations per account. Cross-account operations
// proceed in parallel; the lock only covers the read-modify-write window of
// a single account's bucket set.
type AccountLocks struct {
	locks sync.Map // snowflake.ID -> *sync.Mutex
}

// NewAccountLocks constructs an empty lock table.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{}
}

// Lock acquires the exclusive section for accountID and returns the release
// function.
func (l *AccountLocks) Lock(accountID snowflake.ID) func() {
	entry, _ := l.locks.LoadOrStore(accountID, &sync.Mutex{})
	mu := entry.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
