package service

import (
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"dealer_crm_go/internal/model"
	applog "dealer_crm_go/pkg/log"

	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	// service 里有 log.Warnf/Infof，初始化一下避免 nil panic
	applog.Init("error", "console", "")
	code := m.Run()
	os.Exit(code)
}

func intPtr(v int) *int       { return &v }
func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }

// fakeTaskRepo 是 TaskRepository 的内存实现，模拟父子层级和部分更新语义，
// 让汇总逻辑可以端到端跑在纯内存数据上。
type fakeTaskRepo struct {
	nextID uint
	tasks  map[uint]*model.Task

	// 可选故障注入
	findChildrenErr  error
	updateDerivedErr error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{nextID: 1, tasks: make(map[uint]*model.Task)}
}

func (f *fakeTaskRepo) Create(task *model.Task) error {
	task.ID = f.nextID
	f.nextID++
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTaskRepo) FindByID(taskID uint) (*model.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskRepo) FindByProject(projectID uint) ([]model.Task, error) {
	var out []model.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskRepo) FindChildren(parentTaskID uint) ([]model.Task, error) {
	if f.findChildrenErr != nil {
		return nil, f.findChildrenErr
	}
	var out []model.Task
	for _, t := range f.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentTaskID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskRepo) applyFields(t *model.Task, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "title":
			t.Title = v.(string)
		case "description":
			t.Description = v.(string)
		case "status":
			t.Status = v.(string)
		case "priority":
			t.Priority = v.(string)
		case "assigned_to":
			id := v.(uint)
			t.AssignedTo = &id
		case "completion_percentage":
			t.CompletionPercentage = v.(int)
		case "time_tracked":
			t.TimeTracked = v.(int)
		case "completed_at":
			at := v.(time.Time)
			t.CompletedAt = &at
		case "dependencies":
			t.Dependencies = v.(model.UintList)
		case "watchers":
			t.Watchers = v.(model.UintList)
		case "tags":
			t.Tags = v.(model.StringList)
		case "custom_fields":
			t.CustomFields = v.(model.JSONMap)
		}
	}
}

func (f *fakeTaskRepo) UpdateFields(taskID uint, fields map[string]interface{}) error {
	t, ok := f.tasks[taskID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	f.applyFields(t, fields)
	return nil
}

func (f *fakeTaskRepo) UpdateDerived(taskID uint, completionPercentage int, status string, completedAt *time.Time) error {
	if f.updateDerivedErr != nil {
		return f.updateDerivedErr
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.CompletionPercentage = completionPercentage
	t.Status = status
	t.CompletedAt = completedAt
	return nil
}

func (f *fakeTaskRepo) DeleteWithChildren(taskID uint) error {
	if _, ok := f.tasks[taskID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for id, t := range f.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == taskID {
			delete(f.tasks, id)
		}
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeTaskRepo) BulkUpdateFields(taskIDs []uint, fields map[string]interface{}) (int64, error) {
	var affected int64
	for _, id := range taskIDs {
		if t, ok := f.tasks[id]; ok {
			f.applyFields(t, fields)
			affected++
		}
	}
	return affected, nil
}

// mustCreate 创建任务，失败直接终止测试。
func mustCreate(t *testing.T, svc TaskService, input CreateTaskInput) *model.Task {
	t.Helper()
	task, err := svc.Create(input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return task
}

// 父任务完成度 = 子任务均值四舍五入：[20,60,100] -> 60。
func TestTaskService_Recompute_MeanPercentage(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	for _, pct := range []int{20, 60, 100} {
		in := CreateTaskInput{Title: "child", ProjectID: 1, ParentTaskID: &parent.ID, CompletionPercentage: intPtr(pct)}
		if pct == 100 {
			in.Status = model.TaskStatusCompleted
		} else {
			in.Status = model.TaskStatusInProgress
		}
		mustCreate(t, svc, in)
	}

	got, _ := repo.FindByID(parent.ID)
	if got.CompletionPercentage != 60 {
		t.Fatalf("expect parent percentage 60, got %d", got.CompletionPercentage)
	}
}

// 子任务全部 completed -> 父任务 completed，且打完成时间戳。
func TestTaskService_Recompute_AllCompleted(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	for i := 0; i < 2; i++ {
		mustCreate(t, svc, CreateTaskInput{
			Title: "child", ProjectID: 1, ParentTaskID: &parent.ID,
			Status: model.TaskStatusCompleted,
		})
	}

	got, _ := repo.FindByID(parent.ID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatalf("expect parent status completed, got %q", got.Status)
	}
	if got.CompletionPercentage != 100 {
		t.Fatalf("expect parent percentage 100, got %d", got.CompletionPercentage)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expect parent completed_at to be set")
	}
}

// 子任务状态混合 [todo, in_progress] -> 父任务 in_progress。
func TestTaskService_Recompute_MixedStatuses(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	mustCreate(t, svc, CreateTaskInput{Title: "c1", ProjectID: 1, ParentTaskID: &parent.ID, Status: model.TaskStatusTodo})
	mustCreate(t, svc, CreateTaskInput{Title: "c2", ProjectID: 1, ParentTaskID: &parent.ID, Status: model.TaskStatusInProgress})

	got, _ := repo.FindByID(parent.ID)
	if got.Status != model.TaskStatusInProgress {
		t.Fatalf("expect parent status in_progress, got %q", got.Status)
	}
}

// 子任务全部 todo -> 父任务 todo。
func TestTaskService_Recompute_AllTodo(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	mustCreate(t, svc, CreateTaskInput{Title: "c1", ProjectID: 1, ParentTaskID: &parent.ID})
	mustCreate(t, svc, CreateTaskInput{Title: "c2", ProjectID: 1, ParentTaskID: &parent.ID})

	got, _ := repo.FindByID(parent.ID)
	if got.Status != model.TaskStatusTodo {
		t.Fatalf("expect parent status todo, got %q", got.Status)
	}
}

// 显式置 completed 时强制百分比 100，即使同一请求给了别的百分比。
func TestTaskService_Update_CompletionOverridesPercentage(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	task := mustCreate(t, svc, CreateTaskInput{Title: "t", ProjectID: 1})

	updated, err := svc.Update(task.ID, UpdateTaskInput{
		Status:               strPtr(model.TaskStatusCompleted),
		CompletionPercentage: intPtr(40),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.CompletionPercentage != 100 {
		t.Fatalf("expect percentage forced to 100, got %d", updated.CompletionPercentage)
	}
	if updated.CompletedAt == nil {
		t.Fatalf("expect completed_at to be stamped")
	}
}

// 级联删除：先删直接子任务再删自身，删除后子任务查不到。
func TestTaskService_Delete_CascadesToChildren(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	child := mustCreate(t, svc, CreateTaskInput{Title: "child", ProjectID: 1, ParentTaskID: &parent.ID})

	if err := svc.Delete(parent.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := svc.Get(child.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expect child gone (ErrTaskNotFound), got %v", err)
	}
	if _, err := svc.Get(parent.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expect parent gone (ErrTaskNotFound), got %v", err)
	}
}

func TestTaskService_Delete_NotFound(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	if err := svc.Delete(999); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expect ErrTaskNotFound, got %v", err)
	}
}

// 汇总只做一层：重算父任务时祖父的派生字段不被触达。
func TestTaskService_Recompute_NoGrandparentPropagation(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	grandparent := mustCreate(t, svc, CreateTaskInput{Title: "gp", ProjectID: 1})
	parent := mustCreate(t, svc, CreateTaskInput{Title: "p", ProjectID: 1, ParentTaskID: &grandparent.ID})

	gpBefore, _ := repo.FindByID(grandparent.ID)

	// 叶子变更会重算 parent；grandparent 必须保持原样
	mustCreate(t, svc, CreateTaskInput{
		Title: "leaf", ProjectID: 1, ParentTaskID: &parent.ID,
		Status: model.TaskStatusCompleted,
	})

	pAfter, _ := repo.FindByID(parent.ID)
	if pAfter.Status != model.TaskStatusCompleted || pAfter.CompletionPercentage != 100 {
		t.Fatalf("expect parent derived completed/100, got %q/%d", pAfter.Status, pAfter.CompletionPercentage)
	}

	gpAfter, _ := repo.FindByID(grandparent.ID)
	if gpAfter.Status != gpBefore.Status || gpAfter.CompletionPercentage != gpBefore.CompletionPercentage {
		t.Fatalf("grandparent derived fields changed: before %q/%d, after %q/%d",
			gpBefore.Status, gpBefore.CompletionPercentage, gpAfter.Status, gpAfter.CompletionPercentage)
	}
}

// 删空全部子任务后父任务保留最后一次派生结果，不归零。
func TestTaskService_Recompute_ZeroChildrenKeepsDerived(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	child := mustCreate(t, svc, CreateTaskInput{
		Title: "child", ProjectID: 1, ParentTaskID: &parent.ID,
		Status: model.TaskStatusCompleted,
	})

	before, _ := repo.FindByID(parent.ID)
	if before.Status != model.TaskStatusCompleted || before.CompletionPercentage != 100 {
		t.Fatalf("precondition failed: parent %q/%d", before.Status, before.CompletionPercentage)
	}

	if err := svc.Delete(child.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	after, _ := repo.FindByID(parent.ID)
	if after.Status != model.TaskStatusCompleted || after.CompletionPercentage != 100 {
		t.Fatalf("expect derived fields kept after last child removed, got %q/%d", after.Status, after.CompletionPercentage)
	}
}

// 批量更新与单条更新走同一重算口径：受影响父任务各重算一次。
func TestTaskService_BulkUpdate_RecomputesParents(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	c1 := mustCreate(t, svc, CreateTaskInput{Title: "c1", ProjectID: 1, ParentTaskID: &parent.ID})
	c2 := mustCreate(t, svc, CreateTaskInput{Title: "c2", ProjectID: 1, ParentTaskID: &parent.ID})

	affected, err := svc.BulkUpdate([]uint{c1.ID, c2.ID}, UpdateTaskInput{
		Status: strPtr(model.TaskStatusCompleted),
	})
	if err != nil {
		t.Fatalf("BulkUpdate() error = %v", err)
	}
	if affected != 2 {
		t.Fatalf("expect 2 affected rows, got %d", affected)
	}

	got, _ := repo.FindByID(parent.ID)
	if got.Status != model.TaskStatusCompleted || got.CompletionPercentage != 100 {
		t.Fatalf("expect parent recomputed to completed/100, got %q/%d", got.Status, got.CompletionPercentage)
	}
}

// 创建时指定不存在的父任务应报 ErrParentTaskNotFound。
func TestTaskService_Create_MissingParent(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	_, err := svc.Create(CreateTaskInput{Title: "t", ProjectID: 1, ParentTaskID: uintPtr(42)})
	if !errors.Is(err, ErrParentTaskNotFound) {
		t.Fatalf("expect ErrParentTaskNotFound, got %v", err)
	}
}

func TestTaskService_Create_InvalidStatus(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	_, err := svc.Create(CreateTaskInput{Title: "t", ProjectID: 1, Status: "blocked"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expect ErrInvalidInput, got %v", err)
	}
}

// 重算失败不回滚触发写：子任务更新仍然成功，父任务允许短暂陈旧。
func TestTaskService_Update_RecomputeFailureDoesNotRollBack(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	parent := mustCreate(t, svc, CreateTaskInput{Title: "parent", ProjectID: 1})
	child := mustCreate(t, svc, CreateTaskInput{Title: "child", ProjectID: 1, ParentTaskID: &parent.ID})

	repo.updateDerivedErr = errors.New("store down")

	updated, err := svc.Update(child.ID, UpdateTaskInput{Status: strPtr(model.TaskStatusCompleted)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Status != model.TaskStatusCompleted {
		t.Fatalf("expect child write committed, got status %q", updated.Status)
	}
}

// 端到端场景：逐步加子任务、改状态，父任务派生字段按每一步的期望演进。
func TestTaskService_EndToEndRollup(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo)

	t1 := mustCreate(t, svc, CreateTaskInput{Title: "T1", ProjectID: 1})

	// T2: 50% in_progress -> T1 50% in_progress
	t2 := mustCreate(t, svc, CreateTaskInput{
		Title: "T2", ProjectID: 1, ParentTaskID: &t1.ID,
		Status: model.TaskStatusInProgress, CompletionPercentage: intPtr(50),
	})
	got, _ := repo.FindByID(t1.ID)
	if got.CompletionPercentage != 50 || got.Status != model.TaskStatusInProgress {
		t.Fatalf("after T2: expect 50/in_progress, got %d/%q", got.CompletionPercentage, got.Status)
	}

	// T3: 100% completed -> T1 75% in_progress
	mustCreate(t, svc, CreateTaskInput{
		Title: "T3", ProjectID: 1, ParentTaskID: &t1.ID,
		Status: model.TaskStatusCompleted,
	})
	got, _ = repo.FindByID(t1.ID)
	if got.CompletionPercentage != 75 || got.Status != model.TaskStatusInProgress {
		t.Fatalf("after T3: expect 75/in_progress, got %d/%q", got.CompletionPercentage, got.Status)
	}

	// T2 完成 -> T1 100% completed
	if _, err := svc.Update(t2.ID, UpdateTaskInput{Status: strPtr(model.TaskStatusCompleted)}); err != nil {
		t.Fatalf("Update(T2) error = %v", err)
	}
	got, _ = repo.FindByID(t1.ID)
	if got.CompletionPercentage != 100 || got.Status != model.TaskStatusCompleted {
		t.Fatalf("after completing T2: expect 100/completed, got %d/%q", got.CompletionPercentage, got.Status)
	}
}
