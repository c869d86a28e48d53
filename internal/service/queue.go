package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type QueueName string

const (
	QueueApproval QueueName = "approval"
	QueueReturns  QueueName = "returns"
	QueueHistory  QueueName = "history"
)

// EventQueueUpserted is the realtime event published when a queue changes.
const EventQueueUpserted = "queue.upserted"

type QueueEvent struct {
	Queue   QueueName               `json:"queue"`
	Request domain.BorrowingRequest `json:"request"`
}

// QueueForStatus returns the queue a request in the given status belongs to.
func QueueForStatus(status domain.BorrowingStatus) QueueName {
	switch status {
	case domain.BorrowingStatusPending:
		return QueueApproval
	case domain.BorrowingStatusApproved, domain.BorrowingStatusBorrowed:
		return QueueReturns
	default:
		return QueueHistory
	}
}

// RequestQueues holds the console's working sets keyed by request id. Every
// request lives in exactly one queue; the latest write for an id wins.
type RequestQueues struct {
	mu        sync.RWMutex
	queues    map[QueueName]map[int32]domain.BorrowingRequest
	publisher EventPublisher
}

func NewRequestQueues(publisher EventPublisher) *RequestQueues {
	return &RequestQueues{
		queues: map[QueueName]map[int32]domain.BorrowingRequest{
			QueueApproval: {},
			QueueReturns:  {},
			QueueHistory:  {},
		},
		publisher: publisher,
	}
}

// Load seeds the approval and return queues from the store.
func (q *RequestQueues) Load(ctx context.Context, repo repository.BorrowingRequestRepository) error {
	for _, status := range []domain.BorrowingStatus{domain.BorrowingStatusPending, domain.BorrowingStatusApproved, domain.BorrowingStatusBorrowed} {
		reqs, err := repo.ListByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to load %s requests: %w", status, err)
		}
		q.mu.Lock()
		for _, r := range reqs {
			q.placeLocked(r)
		}
		q.mu.Unlock()
	}
	logger.Info("Request queues loaded", "approval", q.Len(QueueApproval), "returns", q.Len(QueueReturns))
	return nil
}

// Upsert places req in the queue matching its status, removing any older copy.
func (q *RequestQueues) Upsert(req domain.BorrowingRequest) {
	q.mu.Lock()
	target := q.placeLocked(req)
	q.mu.Unlock()

	if q.publisher != nil {
		q.publisher.PublishToAdmins(EventQueueUpserted, QueueEvent{Queue: target, Request: req})
	}
}

func (q *RequestQueues) placeLocked(req domain.BorrowingRequest) QueueName {
	for _, m := range q.queues {
		delete(m, req.ID)
	}
	target := QueueForStatus(req.Status)
	q.queues[target][req.ID] = req
	return target
}

// List returns a snapshot of one queue, oldest request first.
func (q *RequestQueues) List(name QueueName) []domain.BorrowingRequest {
	q.mu.RLock()
	out := make([]domain.BorrowingRequest, 0, len(q.queues[name]))
	for _, r := range q.queues[name] {
		out = append(out, r)
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (q *RequestQueues) Get(requestID int32) (domain.BorrowingRequest, QueueName, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for name, m := range q.queues {
		if r, ok := m[requestID]; ok {
			return r, name, true
		}
	}
	return domain.BorrowingRequest{}, "", false
}

func (q *RequestQueues) Len(name QueueName) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queues[name])
}
