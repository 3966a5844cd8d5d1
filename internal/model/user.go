package model

import "time"

// 角色常量。角色决定任务的可见与可改范围。
const (
	RoleUser    = "user"    // 普通用户：只能访问自己创建/被指派的任务
	RoleManager = "manager" // 经理：额外可见本团队成员被指派的任务
	RoleAdmin   = "admin"   // 管理员：不受限制
)

// ValidRole 判断角色取值是否合法。
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User 表示系统用户。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"username"` // 用户名（唯一）
	Email     string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`    // 邮箱（唯一，存储为小写）
	Password  string    `gorm:"not null" json:"-"`                                      // bcrypt 哈希，永不序列化
	Role      string    `gorm:"type:varchar(16);default:user" json:"role"`              // 角色: user / manager / admin
	Team      string    `gorm:"type:varchar(64)" json:"team,omitempty"`                 // 团队（可选，如 "marketing"）
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	CreatedTasks  []Task `gorm:"foreignKey:CreatedBy" json:"-"`
	AssignedTasks []Task `gorm:"foreignKey:AssignedTo" json:"-"`
}
