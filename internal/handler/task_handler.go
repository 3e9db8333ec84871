package handler

import (
	"net/http"
	"strconv"

	"dealer_crm_go/internal/model"
	"dealer_crm_go/internal/service"
	"dealer_crm_go/pkg/log"

	"github.com/gin-gonic/gin"
)

// TaskHandler 负责任务层级相关接口。
// 父任务的 completionPercentage / status 是派生字段，
// 客户端写入子任务后由 service 层同步重算，这里不做任何汇总逻辑。
type TaskHandler struct {
	taskService service.TaskService
}

func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// CreateTaskRequest 是创建任务的请求体。
type CreateTaskRequest struct {
	Title                string           `json:"title" binding:"required"`
	Description          string           `json:"description"`
	Status               string           `json:"status"`
	Priority             string           `json:"priority"`
	AssignedTo           *uint            `json:"assignedTo"`
	ProjectID            uint             `json:"projectId" binding:"required"`
	ParentTaskID         *uint            `json:"parentTaskId"`
	CompletionPercentage *int             `json:"completionPercentage"`
	Dependencies         model.UintList   `json:"dependencies"`
	Watchers             model.UintList   `json:"watchers"`
	Tags                 model.StringList `json:"tags"`
	CustomFields         model.JSONMap    `json:"customFields"`
}

// UpdateTaskRequest 是部分更新的请求体，所有字段均可选。
type UpdateTaskRequest struct {
	Title                *string           `json:"title"`
	Description          *string           `json:"description"`
	Status               *string           `json:"status"`
	Priority             *string           `json:"priority"`
	AssignedTo           *uint             `json:"assignedTo"`
	CompletionPercentage *int              `json:"completionPercentage"`
	TimeTracked          *int              `json:"timeTracked"`
	Dependencies         *model.UintList   `json:"dependencies"`
	Watchers             *model.UintList   `json:"watchers"`
	Tags                 *model.StringList `json:"tags"`
	CustomFields         *model.JSONMap    `json:"customFields"`
}

// BulkUpdateRequest 是批量更新的请求体。
type BulkUpdateRequest struct {
	TaskIDs              []uint            `json:"taskIds" binding:"required"`
	Status               *string           `json:"status"`
	Priority             *string           `json:"priority"`
	AssignedTo           *uint             `json:"assignedTo"`
	CompletionPercentage *int              `json:"completionPercentage"`
	Tags                 *model.StringList `json:"tags"`
}

// Create 创建任务；带 parentTaskId 时创建为子任务并触发父任务重算。
func (h *TaskHandler) Create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	task, err := h.taskService.Create(service.CreateTaskInput{
		Title:                req.Title,
		Description:          req.Description,
		Status:               req.Status,
		Priority:             req.Priority,
		AssignedTo:           req.AssignedTo,
		ProjectID:            req.ProjectID,
		ParentTaskID:         req.ParentTaskID,
		CompletionPercentage: req.CompletionPercentage,
		Dependencies:         req.Dependencies,
		Watchers:             req.Watchers,
		Tags:                 req.Tags,
		CustomFields:         req.CustomFields,
	})
	if err != nil {
		log.Warnf("TaskHandler.Create: failed to create task: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Task created successfully",
		"data":    task,
	})
}

// Get 返回单个任务。
func (h *TaskHandler) Get(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(taskID)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Task retrieved successfully",
		"data":    task,
	})
}

// List 按项目查询任务列表（query 参数 projectId 必填）。
func (h *TaskHandler) List(c *gin.Context) {
	projectID64, err := strconv.ParseUint(c.Query("projectId"), 10, 32)
	if err != nil || projectID64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid projectId parameter",
		})
		return
	}

	tasks, err := h.taskService.ListByProject(uint(projectID64))
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tasks retrieved successfully",
		"data":    tasks,
	})
}

// Update 部分更新任务并返回更新后的记录。
func (h *TaskHandler) Update(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	task, err := h.taskService.Update(taskID, service.UpdateTaskInput{
		Title:                req.Title,
		Description:          req.Description,
		Status:               req.Status,
		Priority:             req.Priority,
		AssignedTo:           req.AssignedTo,
		CompletionPercentage: req.CompletionPercentage,
		TimeTracked:          req.TimeTracked,
		Dependencies:         req.Dependencies,
		Watchers:             req.Watchers,
		Tags:                 req.Tags,
		CustomFields:         req.CustomFields,
	})
	if err != nil {
		log.Warnf("TaskHandler.Update: failed to update task %d: %v", taskID, err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Task updated successfully",
		"data":    task,
	})
}

// Delete 级联删除任务（直接子任务一并删除）。
func (h *TaskHandler) Delete(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(taskID); err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Task deleted successfully",
	})
}

// BulkUpdate 批量更新任务。
func (h *TaskHandler) BulkUpdate(c *gin.Context) {
	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	affected, err := h.taskService.BulkUpdate(req.TaskIDs, service.UpdateTaskInput{
		Status:               req.Status,
		Priority:             req.Priority,
		AssignedTo:           req.AssignedTo,
		CompletionPercentage: req.CompletionPercentage,
		Tags:                 req.Tags,
	})
	if err != nil {
		log.Warnf("TaskHandler.BulkUpdate: failed to bulk update tasks: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tasks updated successfully",
		"data": gin.H{
			"affected": affected,
		},
	})
}

// parseTaskID 解析路径参数 :id，非法时直接写 400 响应并返回 false。
func parseTaskID(c *gin.Context) (uint, bool) {
	taskID64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || taskID64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid task ID",
		})
		return 0, false
	}
	return uint(taskID64), true
}
