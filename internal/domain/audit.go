package domain

import "time"

type AuditAction string

const (
	AuditActionApprove AuditAction = "APPROVE_REQUEST"
	AuditActionReject  AuditAction = "REJECT_REQUEST"
	AuditActionReturn  AuditAction = "RETURN_REQUEST"
)

type AuditLog struct {
	ID        int32       `json:"id"`
	ActorID   int32       `json:"actor_id"`
	Action    AuditAction `json:"action"`
	EntityID  int32       `json:"entity_id"`
	Detail    string      `json:"detail"`
	CreatedAt time.Time   `json:"created_at"`
}
