// Package policy 实现任务的访问控制：
// 列表查询的角色可见范围（Scoping predicate）与单任务的允许/拒绝判定。
package policy

import (
	"context"
	"strings"
	"time"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"

	"gorm.io/gorm"
)

// Identity 表示一次已认证请求的请求者身份。
//
// 由 JWT 中间件从令牌解出并显式传入各 Handler 与 Evaluator，
// 不依赖任何隐式的请求级共享状态。
type Identity struct {
	ID   uint   // 用户 ID（令牌 subject）
	Role string // 角色: user / manager / admin
}

// UserDirectory 是 Evaluator 对凭据存储的只读依赖。
//
// UserByID 在用户不存在时返回 (nil, nil)，仅在存储故障时返回 error。
type UserDirectory interface {
	UserByID(ctx context.Context, id uint) (*model.User, error)
	TeamMemberIDs(ctx context.Context, team string) ([]uint, error)
}

// TaskScope 是列表查询的可见范围谓词。
//
// 它是一个显式的、类型化的查询构件：角色固定子句 + 预先解析好的
// 团队成员 ID 集合，由持久层通过 Apply 参数化执行，
// 不做任何字符串拼接。
type TaskScope struct {
	All           bool   // admin：不加限制
	ActorID       uint   // 请求者 ID（创建人/被指派人子句）
	TeamMemberIDs []uint // manager：团队成员 ID 集合（查询任务前已解析）
}

// Apply 将可见范围谓词 AND 到查询上。
func (s TaskScope) Apply(db *gorm.DB) *gorm.DB {
	if s.All {
		return db
	}
	if len(s.TeamMemberIDs) > 0 {
		return db.Where("created_by = ? OR assigned_to = ? OR assigned_to IN ?",
			s.ActorID, s.ActorID, s.TeamMemberIDs)
	}
	return db.Where("created_by = ? OR assigned_to = ?", s.ActorID, s.ActorID)
}

// Evaluator 根据请求者身份计算任务的可见范围与操作权限。
type Evaluator struct {
	users UserDirectory
}

// NewEvaluator 创建 Evaluator。
func NewEvaluator(users UserDirectory) *Evaluator {
	return &Evaluator{users: users}
}

// ScopeFor 计算列表查询的可见范围。
//
// admin 不受限制；manager 可见自己创建/被指派的任务，若设置了团队，
// 还可见被指派给团队成员的任务（成员集合在任务查询执行前先从
// 凭据存储解析）；其余角色仅可见自己创建/被指派的任务。
func (e *Evaluator) ScopeFor(ctx context.Context, actor Identity) (TaskScope, error) {
	switch actor.Role {
	case model.RoleAdmin:
		return TaskScope{All: true}, nil
	case model.RoleManager:
		u, err := e.users.UserByID(ctx, actor.ID)
		if err != nil {
			return TaskScope{}, err
		}
		if u == nil || u.Team == "" {
			return TaskScope{ActorID: actor.ID}, nil
		}
		memberIDs, err := e.users.TeamMemberIDs(ctx, u.Team)
		if err != nil {
			return TaskScope{}, err
		}
		return TaskScope{ActorID: actor.ID, TeamMemberIDs: memberIDs}, nil
	default:
		return TaskScope{ActorID: actor.ID}, nil
	}
}

// CanView 判定单任务读取是否允许。
//
// user 角色必须是创建人或被指派人；manager/admin 直接放行。
// 注意：manager 在这里不应用团队子句——即团队成员的任务可以被列出，
// 但 manager 对单任务的读取只看直接归属（与列表范围相比更窄，保持兼容）。
func CanView(actor Identity, t *model.Task) bool {
	if actor.Role != model.RoleUser {
		return true
	}
	if t.CreatedBy == actor.ID {
		return true
	}
	return t.AssignedTo != nil && *t.AssignedTo == actor.ID
}

// CanMutate 判定更新/删除是否允许：user 角色必须是创建人，其余角色放行。
func CanMutate(actor Identity, t *model.Task) bool {
	if actor.Role != model.RoleUser {
		return true
	}
	return t.CreatedBy == actor.ID
}

// Filter 是用户附加的过滤条件，在角色范围之后 AND 上去。
type Filter struct {
	Search      string     // 标题或描述的子串匹配（不区分大小写）
	Status      string     // 状态精确匹配
	Priority    string     // 优先级精确匹配
	DueDateFrom *time.Time // 截止日期下界（含）
	DueDateTo   *time.Time // 截止日期上界（含）
}

// Apply 将过滤条件 AND 到查询上。搜索词先做 LIKE 转义再参数化。
func (f Filter) Apply(db *gorm.DB) *gorm.DB {
	if f.Search != "" {
		term := "%" + EscapeLike(strings.ToLower(f.Search)) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", term, term)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		db = db.Where("priority = ?", f.Priority)
	}
	if f.DueDateFrom != nil {
		db = db.Where("due_date >= ?", *f.DueDateFrom)
	}
	if f.DueDateTo != nil {
		db = db.Where("due_date <= ?", *f.DueDateTo)
	}
	return db
}

// EscapeLike 转义 LIKE 模式中的特殊字符，使搜索词只做字面匹配。
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
