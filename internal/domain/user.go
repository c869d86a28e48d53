package domain

type AccountRole string

const (
	AccountRoleAdmin    AccountRole = "ADMIN"
	AccountRoleLecturer AccountRole = "LECTURER"
	AccountRoleStudent  AccountRole = "STUDENT"
)

type Account struct {
	ID       int32       `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Phone    string      `json:"phone"`
	Role     AccountRole `json:"role"`
	IsActive bool        `json:"is_active"`
}

type GroupRole string

const (
	GroupRoleLeader GroupRole = "LEADER"
	GroupRoleMember GroupRole = "MEMBER"
)

// Group is a student team; fines for members are filed against the leader.
type Group struct {
	ID          int32   `json:"id"`
	Name        string  `json:"name"`
	LeaderID    int32   `json:"leader_id"`
	LeaderEmail string  `json:"leader_email"`
	MemberIDs   []int32 `json:"member_ids,omitempty"`
}
