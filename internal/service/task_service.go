package service

import (
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"dealer_crm_go/internal/model"
	"dealer_crm_go/internal/repository"
	"dealer_crm_go/pkg/log"

	"gorm.io/gorm"
)

// CreateTaskInput 是创建任务的入参。
type CreateTaskInput struct {
	Title                string
	Description          string
	Status               string
	Priority             string
	AssignedTo           *uint
	ProjectID            uint
	ParentTaskID         *uint
	CompletionPercentage *int
	Dependencies         model.UintList
	Watchers             model.UintList
	Tags                 model.StringList
	CustomFields         model.JSONMap
}

// UpdateTaskInput 是部分更新的入参，nil 字段表示"不改"。
type UpdateTaskInput struct {
	Title                *string
	Description          *string
	Status               *string
	Priority             *string
	AssignedTo           *uint
	CompletionPercentage *int
	TimeTracked          *int
	Dependencies         *model.UintList
	Watchers             *model.UintList
	Tags                 *model.StringList
	CustomFields         *model.JSONMap
}

// TaskService 是任务层级汇总器：
// 维护父/子任务树，在任何子任务变更后同步重算直接父任务的派生字段
// （completion_percentage 取子任务均值四舍五入，status 按子任务状态汇总）。
// 重算只做一层：父任务自身的父级（祖父）永远不被触达。
type TaskService interface {
	Create(input CreateTaskInput) (*model.Task, error)
	// Update 部分更新。status 置为 completed 时强制 completion_percentage=100
	// 并打完成时间戳，即使同一请求里给了别的百分比（完成状态优先）。
	Update(taskID uint, input UpdateTaskInput) (*model.Task, error)
	// Delete 先删直接子任务再删自身，随后重算原父任务。
	Delete(taskID uint) error
	// BulkUpdate 把同一组字段应用到多个任务，然后对每个受影响的父任务
	// 各重算一次（去重）。
	BulkUpdate(taskIDs []uint, input UpdateTaskInput) (int64, error)
	Get(taskID uint) (*model.Task, error)
	ListByProject(projectID uint) ([]model.Task, error)
}

type taskService struct {
	taskRepo repository.TaskRepository

	// 同一父任务的重算串行化，消除并发兄弟更新时
	// 读-改-写派生字段的丢失更新竞态
	mu          sync.Mutex
	parentLocks map[uint]*sync.Mutex
}

func NewTaskService(taskRepo repository.TaskRepository) TaskService {
	return &taskService{
		taskRepo:    taskRepo,
		parentLocks: make(map[uint]*sync.Mutex),
	}
}

// lockParent 返回 parentID 专属的互斥锁，懒创建。
func (s *taskService) lockParent(parentID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.parentLocks[parentID]
	if !ok {
		l = &sync.Mutex{}
		s.parentLocks[parentID] = l
	}
	return l
}

// Create 创建任务。
// 关键规则：
// 1. title/projectID 必填，status 缺省为 todo，未知状态拒绝。
// 2. 指定 parentTaskID 时父任务必须存在，避免悬挂引用。
// 3. 插入成功后立即重算父任务的派生字段。
func (s *taskService) Create(input CreateTaskInput) (*model.Task, error) {
	if s.taskRepo == nil {
		return nil, ErrInternal
	}

	title := strings.TrimSpace(input.Title)
	if title == "" || input.ProjectID == 0 {
		return nil, ErrInvalidInput
	}

	status := input.Status
	if status == "" {
		status = model.TaskStatusTodo
	}
	if !model.IsValidTaskStatus(status) {
		return nil, ErrInvalidInput
	}

	pct := 0
	if input.CompletionPercentage != nil {
		pct = *input.CompletionPercentage
	}
	if pct < 0 || pct > 100 {
		return nil, ErrInvalidInput
	}

	var completedAt *time.Time
	if status == model.TaskStatusCompleted {
		// 完成状态优先于入参百分比
		pct = 100
		now := time.Now()
		completedAt = &now
	}

	if input.ParentTaskID != nil {
		if _, err := s.taskRepo.FindByID(*input.ParentTaskID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentTaskNotFound
			}
			return nil, err
		}
	}

	priority := input.Priority
	if priority == "" {
		priority = "medium"
	}

	task := &model.Task{
		Title:                title,
		Description:          input.Description,
		Status:               status,
		Priority:             priority,
		AssignedTo:           input.AssignedTo,
		ProjectID:            input.ProjectID,
		ParentTaskID:         input.ParentTaskID,
		CompletionPercentage: pct,
		Dependencies:         input.Dependencies,
		Watchers:             input.Watchers,
		Tags:                 input.Tags,
		CustomFields:         input.CustomFields,
		CompletedAt:          completedAt,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, err
	}

	// 写入已提交，此时的重算读得到刚写的子任务
	if task.ParentTaskID != nil {
		s.recomputeParent(*task.ParentTaskID)
	}
	return task, nil
}

// Update 部分更新任务并重算父任务。
// 触发写已经提交后才重算；重算失败不回滚触发写，
// 父任务的派生字段允许短暂陈旧，由下一次成功的子任务变更修正。
func (s *taskService) Update(taskID uint, input UpdateTaskInput) (*model.Task, error) {
	if s.taskRepo == nil {
		return nil, ErrInternal
	}

	current, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	fields := make(map[string]interface{})
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrInvalidInput
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Priority != nil {
		fields["priority"] = *input.Priority
	}
	if input.AssignedTo != nil {
		fields["assigned_to"] = *input.AssignedTo
	}
	if input.CompletionPercentage != nil {
		if *input.CompletionPercentage < 0 || *input.CompletionPercentage > 100 {
			return nil, ErrInvalidInput
		}
		fields["completion_percentage"] = *input.CompletionPercentage
	}
	if input.TimeTracked != nil {
		fields["time_tracked"] = *input.TimeTracked
	}
	if input.Dependencies != nil {
		fields["dependencies"] = *input.Dependencies
	}
	if input.Watchers != nil {
		fields["watchers"] = *input.Watchers
	}
	if input.Tags != nil {
		fields["tags"] = *input.Tags
	}
	if input.CustomFields != nil {
		fields["custom_fields"] = *input.CustomFields
	}
	if input.Status != nil {
		if !model.IsValidTaskStatus(*input.Status) {
			return nil, ErrInvalidInput
		}
		fields["status"] = *input.Status
		if *input.Status == model.TaskStatusCompleted {
			// 完成状态总是赢过同请求里不一致的百分比
			fields["completion_percentage"] = 100
			fields["completed_at"] = time.Now()
		}
	}

	if len(fields) == 0 {
		return nil, ErrInvalidInput
	}

	if err := s.taskRepo.UpdateFields(taskID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if current.ParentTaskID != nil {
		s.recomputeParent(*current.ParentTaskID)
	}

	updated, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete 级联删除任务。
// 先查出记录以获知原父任务，删除（仓库内部先删直接子任务再删自身），
// 然后重算原父任务。任务不存在返回 ErrTaskNotFound，不产生副作用。
func (s *taskService) Delete(taskID uint) error {
	if s.taskRepo == nil {
		return ErrInternal
	}

	current, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	if err := s.taskRepo.DeleteWithChildren(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	if current.ParentTaskID != nil {
		s.recomputeParent(*current.ParentTaskID)
	}
	return nil
}

// BulkUpdate 批量更新。
// 单条 Update 会重算父任务，批量路径同样要重算——
// 否则同一份数据走不同入口会得到不同的派生结果。
// 做法：先收集受影响任务的去重父任务集合，更新提交后逐个重算。
func (s *taskService) BulkUpdate(taskIDs []uint, input UpdateTaskInput) (int64, error) {
	if s.taskRepo == nil {
		return 0, ErrInternal
	}
	if len(taskIDs) == 0 {
		return 0, ErrInvalidInput
	}

	fields := make(map[string]interface{})
	if input.Priority != nil {
		fields["priority"] = *input.Priority
	}
	if input.AssignedTo != nil {
		fields["assigned_to"] = *input.AssignedTo
	}
	if input.CompletionPercentage != nil {
		if *input.CompletionPercentage < 0 || *input.CompletionPercentage > 100 {
			return 0, ErrInvalidInput
		}
		fields["completion_percentage"] = *input.CompletionPercentage
	}
	if input.Tags != nil {
		fields["tags"] = *input.Tags
	}
	if input.Status != nil {
		if !model.IsValidTaskStatus(*input.Status) {
			return 0, ErrInvalidInput
		}
		fields["status"] = *input.Status
		if *input.Status == model.TaskStatusCompleted {
			// 完成状态赢过同请求里的百分比
			fields["completion_percentage"] = 100
			fields["completed_at"] = time.Now()
		}
	}
	if len(fields) == 0 {
		return 0, ErrInvalidInput
	}

	// 更新前收集去重后的受影响父任务
	parents := make(map[uint]struct{})
	for _, id := range taskIDs {
		task, err := s.taskRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return 0, err
		}
		if task.ParentTaskID != nil {
			parents[*task.ParentTaskID] = struct{}{}
		}
	}

	affected, err := s.taskRepo.BulkUpdateFields(taskIDs, fields)
	if err != nil {
		return 0, err
	}

	for parentID := range parents {
		s.recomputeParent(parentID)
	}
	return affected, nil
}

func (s *taskService) Get(taskID uint) (*model.Task, error) {
	if s.taskRepo == nil {
		return nil, ErrInternal
	}
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *taskService) ListByProject(projectID uint) ([]model.Task, error) {
	if s.taskRepo == nil {
		return nil, ErrInternal
	}
	if projectID == 0 {
		return nil, ErrInvalidInput
	}
	return s.taskRepo.FindByProject(projectID)
}

// recomputeParent 重算 parentID 的派生字段。
// 规则：
// 1. 没有子任务时不动现值（删空子任务后父任务保留最后一次派生结果）。
// 2. completion_percentage = 子任务均值四舍五入。
// 3. status：全部 completed -> completed；
//    任一 in_progress 或 completed -> in_progress；否则 todo。
// 4. 只写 parentID 本身，绝不向祖父级传播。
// 重算失败只记日志：触发写已提交，派生字段允许短暂陈旧。
func (s *taskService) recomputeParent(parentID uint) {
	l := s.lockParent(parentID)
	l.Lock()
	defer l.Unlock()

	children, err := s.taskRepo.FindChildren(parentID)
	if err != nil {
		log.Warnf("recomputeParent: failed to load children of task %d: %v", parentID, err)
		return
	}
	if len(children) == 0 {
		return
	}

	sum := 0
	allCompleted := true
	anyActive := false
	for _, c := range children {
		sum += c.CompletionPercentage
		switch c.Status {
		case model.TaskStatusCompleted:
			anyActive = true
		case model.TaskStatusInProgress:
			allCompleted = false
			anyActive = true
		default:
			allCompleted = false
		}
	}

	pct := int(math.Round(float64(sum) / float64(len(children))))

	status := model.TaskStatusTodo
	var completedAt *time.Time
	switch {
	case allCompleted:
		status = model.TaskStatusCompleted
		now := time.Now()
		completedAt = &now
	case anyActive:
		status = model.TaskStatusInProgress
	}

	if err := s.taskRepo.UpdateDerived(parentID, pct, status, completedAt); err != nil {
		log.Warnf("recomputeParent: failed to persist derived fields of task %d: %v", parentID, err)
	}
}
