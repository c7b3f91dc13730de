package app

import (
	"sync"

	"github.com/dkeye/Presence/internal/domain"
)

// FocusTracker remembers which players are in a focus interval.
type FocusTracker struct {
	mu      sync.RWMutex
	focused map[domain.UserID]struct{}
}

func NewFocusTracker() *FocusTracker {
	return &FocusTracker{focused: make(map[domain.UserID]struct{})}
}

func (f *FocusTracker) SetFocused(userID domain.UserID, focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if focused {
		f.focused[userID] = struct{}{}
		return
	}
	delete(f.focused, userID)
}

func (f *FocusTracker) IsFocused(userID domain.UserID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.focused[userID]
	return ok
}

// CountFocused returns how many of ids are focused.
func (f *FocusTracker) CountFocused(ids []domain.UserID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, id := range ids {
		if _, ok := f.focused[id]; ok {
			n++
		}
	}
	return n
}
