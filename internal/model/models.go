package model

import (
	"time"
)

// 任务优先级。
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// 任务状态。
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// ValidPriority 判断优先级取值是否合法。
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ValidStatus 判断状态取值是否合法。
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task 表示一条任务记录。
//
// CreatedBy 在创建时由服务端写入认证用户的 ID，此后不可变更。
// AssignedTo 可为空（未指派）。两者都只是对 User 的弱引用，
// 删除用户不会级联删除任务。
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Title       string     `gorm:"type:varchar(191);not null" json:"title"`                                         // 标题（必填）
	Description string     `gorm:"type:text" json:"description,omitempty"`                                          // 描述（可选）
	DueDate     *time.Time `gorm:"index:idx_tasks_status_due_assignee,priority:2" json:"dueDate,omitempty"`         // 截止日期（可选）
	Priority    string     `gorm:"type:varchar(16);default:medium" json:"priority"`                                 // 优先级: low / medium / high
	Status      string     `gorm:"type:varchar(16);default:todo;index:idx_tasks_status_due_assignee,priority:1;index:idx_tasks_creator_status,priority:2" json:"status"` // 状态: todo / in-progress / done
	AssignedTo  *uint      `gorm:"index:idx_tasks_status_due_assignee,priority:3" json:"assignedTo,omitempty"`      // 被指派人 ID（可空）
	CreatedBy   uint       `gorm:"not null;index:idx_tasks_creator_status,priority:1" json:"createdBy"`             // 创建人 ID（必填）

	Assignee *User `gorm:"foreignKey:AssignedTo" json:"-"`
	Creator  *User `gorm:"foreignKey:CreatedBy" json:"-"`
}
