package repository

import (
	"fmt"
	"time"

	"dealer_crm_go/internal/model"

	"gorm.io/gorm"
)

// TaskRepository 定义任务的持久化操作接口。
// 任务通过 ParentTaskID 构成父子层级；父任务的派生字段
// （completion_percentage / status / completed_at）由 service 层汇总后
// 经 UpdateDerived 写回。
type TaskRepository interface {
	Create(task *model.Task) error
	FindByID(taskID uint) (*model.Task, error)
	FindByProject(projectID uint) ([]model.Task, error)
	// FindChildren 返回 parentTaskID 的全部直接子任务（不递归孙级）。
	FindChildren(parentTaskID uint) ([]model.Task, error)
	// UpdateFields 按字段 map 做部分更新，零值字段也会被写入。
	UpdateFields(taskID uint, fields map[string]interface{}) error
	// UpdateDerived 写回父任务的派生字段。completedAt 仅在状态为 completed 时非空。
	UpdateDerived(taskID uint, completionPercentage int, status string, completedAt *time.Time) error

	// DeleteWithChildren 级联删除：先删 taskID 的直接子任务（不递归孙级），
	// 再删 taskID 本身。使用事务保证"删子 + 删己"的原子性。
	// taskID 不存在时返回 gorm.ErrRecordNotFound。
	DeleteWithChildren(taskID uint) error

	// BulkUpdateFields 把同一组字段一次性应用到多个任务，返回受影响行数。
	BulkUpdateFields(taskIDs []uint, fields map[string]interface{}) (int64, error)
}

// taskRepository 是 TaskRepository 接口的 GORM 实现。
type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(task *model.Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	return r.db.Create(task).Error
}

func (r *taskRepository) FindByID(taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) FindByProject(projectID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.Where("project_id = ?", projectID).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) FindChildren(parentTaskID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.Where("parent_task_id = ?", parentTaskID).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateFields 按 map 做部分更新。
// 使用 map 而不是结构体，保证 0、false、"" 这类零值也能写入。
// 如果 taskID 不存在，返回 gorm.ErrRecordNotFound。
func (r *taskRepository) UpdateFields(taskID uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}

	tx := r.db.Model(&model.Task{}).
		Where("id = ?", taskID).
		Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateDerived 写回派生字段。
// 不看 RowsAffected：重算结果与现值相同时 MySQL 报 0 行，这不是错误。
func (r *taskRepository) UpdateDerived(taskID uint, completionPercentage int, status string, completedAt *time.Time) error {
	updates := map[string]interface{}{
		"completion_percentage": completionPercentage,
		"status":                status,
		"completed_at":          completedAt,
	}
	return r.db.Model(&model.Task{}).
		Where("id = ?", taskID).
		Updates(updates).Error
}

// DeleteWithChildren 在事务中先确认记录存在，再删除直接子任务，最后删除任务本身。
// 只删一层：孙级任务（若存在）不受影响，与单层汇总设计一致。
func (r *taskRepository) DeleteWithChildren(taskID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 先确认记录存在
		var current model.Task
		if err := tx.First(&current, taskID).Error; err != nil {
			return err
		}

		// 删除直接子任务；没有子任务时影响 0 行，不算错误
		if err := tx.Where("parent_task_id = ?", taskID).Delete(&model.Task{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", taskID).Delete(&model.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *taskRepository) BulkUpdateFields(taskIDs []uint, fields map[string]interface{}) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, fmt.Errorf("task ids are required")
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("no fields to update")
	}

	tx := r.db.Model(&model.Task{}).
		Where("id IN ?", taskIDs).
		Updates(fields)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}
