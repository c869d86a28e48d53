package service

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	adminID int32
	expires time.Time
}

// LocalInspectionLock is the in-process InspectionLock used when redis is disabled.
type LocalInspectionLock struct {
	mu     sync.Mutex
	leases map[int32]lease
	now    func() time.Time
}

func NewLocalInspectionLock() *LocalInspectionLock {
	return &LocalInspectionLock{leases: make(map[int32]lease), now: time.Now}
}

func (l *LocalInspectionLock) Acquire(ctx context.Context, requestID, adminID int32, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[requestID]; ok && cur.adminID != adminID && now.Before(cur.expires) {
		return false, nil
	}
	l.leases[requestID] = lease{adminID: adminID, expires: now.Add(ttl)}
	return true, nil
}

func (l *LocalInspectionLock) Release(ctx context.Context, requestID, adminID int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[requestID]; ok && cur.adminID == adminID {
		delete(l.leases, requestID)
	}
	return nil
}
