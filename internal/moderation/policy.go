// Package moderation 帖子/评论的可见性与操作权限判定
//
// 所有判定均为纯函数：只依赖传入的身份与资源快照，不访问存储。
// 状态迁移的并发安全由存储层的条件更新保证，这里只负责前置条件。
package moderation

import "strings"

type Role string

const (
	RoleMember  Role = "member"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole 解析角色名，未知角色返回 false
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleMember, RoleTeacher, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// CanTransitionTo 只允许 pending -> approved / rejected
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// Identity 已认证的请求者；匿名请求用 nil 表示
type Identity struct {
	ID   uint64
	Name string
	Role Role
}

// Resource 判定所需的帖子或评论快照。评论只需要 AuthorID。
type Resource struct {
	AuthorID uint64
	Status   Status
	Locked   bool
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionDelete  Action = "delete"
	ActionComment Action = "comment"
	ActionLock    Action = "lock"
	ActionUnlock  Action = "unlock"
	ActionPin     Action = "pin"
	ActionUnpin   Action = "unpin"
)

// Policy 持有唯一的外部输入：按名字识别的超级管理员。
// TODO: 用显式的角色授予替换按用户名匹配的超级管理员
type Policy struct {
	superAdmin      string
	superAdminEmail string
}

func NewPolicy(superAdminName string) Policy {
	return Policy{superAdmin: normalizeName(superAdminName)}
}

// SuperAdminName 归一化后的超级管理员名字，未配置时为空
func (p Policy) SuperAdminName() string {
	return p.superAdmin
}

// WithSuperAdminEmail 指定可以注册超级管理员名字的邮箱
func (p Policy) WithSuperAdminEmail(email string) Policy {
	p.superAdminEmail = normalizeName(email)
	return p
}

// CanClaimName 超级管理员名字（忽略大小写）是保留的，只有配置的邮箱可以注册
func (p Policy) CanClaimName(name, email string) bool {
	if p.superAdmin == "" || normalizeName(name) != p.superAdmin {
		return true
	}
	return p.superAdminEmail != "" && normalizeName(email) == p.superAdminEmail
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsSuperAdmin 名字匹配（忽略大小写与首尾空白）即视为超级管理员，与角色无关
func (p Policy) IsSuperAdmin(id *Identity) bool {
	if id == nil || p.superAdmin == "" {
		return false
	}
	return normalizeName(id.Name) == p.superAdmin
}

// CanModerate admin、teacher 或超级管理员
func (p Policy) CanModerate(id *Identity) bool {
	if id == nil {
		return false
	}
	return id.Role == RoleAdmin || id.Role == RoleTeacher || p.IsSuperAdmin(id)
}

// CanView 单条读取：已通过、作者本人或版主
func (p Policy) CanView(id *Identity, post Resource) bool {
	if post.Status == StatusApproved {
		return true
	}
	if id != nil && id.ID == post.AuthorID {
		return true
	}
	return p.CanModerate(id)
}

// VisibleInList 列表读取：已通过，或者作者本人的 pending/rejected。
// 版主在普通列表里不享有额外可见性，待审队列走 ListScope 之外的专门查询。
func (p Policy) VisibleInList(id *Identity, post Resource) bool {
	if post.Status == StatusApproved {
		return true
	}
	if id == nil || id.ID != post.AuthorID {
		return false
	}
	return post.Status == StatusPending || post.Status == StatusRejected
}

// ListScope 供存储层构造列表查询条件
type ListScope struct {
	// OwnerID 非零时，额外包含该作者的 pending/rejected 帖子
	OwnerID uint64
}

func (p Policy) ListScope(id *Identity) ListScope {
	if id == nil {
		return ListScope{}
	}
	return ListScope{OwnerID: id.ID}
}

// CanMutate 写操作判定。post 为目标帖子；对评论执行 delete 时传评论快照。
func (p Policy) CanMutate(id *Identity, res Resource, action Action) bool {
	if id == nil {
		return false
	}
	switch action {
	case ActionApprove:
		return p.CanModerate(id) && res.Status.CanTransitionTo(StatusApproved)
	case ActionReject:
		return p.CanModerate(id) && res.Status.CanTransitionTo(StatusRejected)
	case ActionDelete:
		return id.ID == res.AuthorID || p.CanModerate(id)
	case ActionComment:
		// 锁定对所有身份一视同仁，版主也不能例外
		if res.Locked {
			return false
		}
		return p.CanView(id, res)
	case ActionLock, ActionUnlock, ActionPin, ActionUnpin:
		return p.CanModerate(id)
	default:
		return false
	}
}
