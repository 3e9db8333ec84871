package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 任务状态常量。状态机只有三个状态：
// 叶子任务的状态由客户端直接设置；有子任务的父任务状态由汇总逻辑派生。
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// IsValidTaskStatus 校验入参状态是否在封闭枚举内，未知值按非法输入拒绝。
func IsValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// StringList 是以 JSON 数组存储的字符串列表（tags 等）。
type StringList []string

// Value 实现 driver.Valuer。
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner。
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported string list type %T", value)
	}
}

// UintList 是以 JSON 数组存储的 ID 列表（dependencies、watchers）。
type UintList []uint

// Value 实现 driver.Valuer。
func (l UintList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner。
func (l *UintList) Scan(value interface{}) error {
	if value == nil {
		*l = UintList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported uint list type %T", value)
	}
}

// JSONMap 是以 JSON 对象存储的自定义字段。
type JSONMap map[string]interface{}

// Value 实现 driver.Valuer。
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner。
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported json map type %T", value)
	}
}

// Task 对应数据库中 tasks 表。
// ParentTaskID 非空时该任务是子任务；父任务的 CompletionPercentage 和 Status
// 是派生字段：等于直接子任务完成度的算术平均（四舍五入）和状态汇总结果，
// 每次子任务变更后同步重算。汇总只做一层（父任务），不向祖父级传播。
// Dependencies 仅作参考信息，不做 DAG 约束。
type Task struct {
	ID                   uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title                string     `gorm:"type:varchar(255);not null" json:"title"`
	Description          string     `gorm:"type:text" json:"description"`
	Status               string     `gorm:"type:varchar(20);not null;default:'todo'" json:"status"`
	Priority             string     `gorm:"type:varchar(20);default:'medium'" json:"priority"`
	AssignedTo           *uint      `gorm:"index" json:"assignedTo"`
	ProjectID            uint       `gorm:"not null;index" json:"projectId"`
	ParentTaskID         *uint      `gorm:"index" json:"parentTaskId"`
	CompletionPercentage int        `gorm:"not null;default:0" json:"completionPercentage"`
	TimeTracked          int        `gorm:"not null;default:0" json:"timeTracked"`
	CommentCount         int        `gorm:"not null;default:0" json:"commentCount"`
	AttachmentCount      int        `gorm:"not null;default:0" json:"attachmentCount"`
	Dependencies         UintList   `gorm:"type:json" json:"dependencies"`
	Watchers             UintList   `gorm:"type:json" json:"watchers"`
	Tags                 StringList `gorm:"type:json" json:"tags"`
	CustomFields         JSONMap    `gorm:"type:json" json:"customFields"`
	CompletedAt          *time.Time `json:"completedAt"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (Task) TableName() string {
	return "tasks"
}
