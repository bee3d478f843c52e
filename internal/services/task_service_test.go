package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/grouptask/taskflow/internal/clock"
	"github.com/grouptask/taskflow/internal/constants"
	"github.com/grouptask/taskflow/internal/dedup"
	apperrors "github.com/grouptask/taskflow/internal/errors"
	model "github.com/grouptask/taskflow/internal/models"
	repository "github.com/grouptask/taskflow/internal/repositories"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	err = db.AutoMigrate(
		&model.Task{},
		&model.TaskSubmission{},
		&model.TaskHistory{},
		&model.RecurringTemplate{},
		&model.KPIRecord{},
		&model.GroupMember{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

type fixture struct {
	db      *gorm.DB
	clk     *clock.Fixed
	tasks   *repository.TaskRepository
	tpls    *repository.TemplateRepository
	kpis    *repository.KPIRepository
	members *repository.MemberRepository
	scorer  *KPIService
	taskSvc *TaskService
	tplSvc  *TemplateService
	sched   *SchedulerService
	board   *LeaderboardService
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	clk := &clock.Fixed{Current: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}

	tasks := repository.NewTaskRepository(db)
	tpls := repository.NewTemplateRepository(db)
	kpis := repository.NewKPIRepository(db)
	members := repository.NewMemberRepository(db)
	scorer := NewKPIService(DefaultKPIConfig())
	taskSvc := NewTaskService(db, tasks, kpis, scorer, clk)

	return &fixture{
		db:      db,
		clk:     clk,
		tasks:   tasks,
		tpls:    tpls,
		kpis:    kpis,
		members: members,
		scorer:  scorer,
		taskSvc: taskSvc,
		tplSvc:  NewTemplateService(tpls, clk),
		sched: NewSchedulerService(
			db, tpls, tasks, kpis, members, taskSvc, scorer,
			dedup.NewMemoryGuard(), clk, time.Minute, 3,
		),
		board: NewLeaderboardService(kpis, members, clk, nil, 0),
	}
}

func strPtr(s string) *string { return &s }

func (f *fixture) createTask(t *testing.T, spec CreateTaskSpec) *model.Task {
	t.Helper()
	if spec.GroupID == "" {
		spec.GroupID = "group-1"
	}
	if spec.Title == "" {
		spec.Title = "Weekly report"
	}
	if len(spec.AssigneeIDs) == 0 {
		spec.AssigneeIDs = []string{"user-1"}
	}
	if spec.CreatorID == "" {
		spec.CreatorID = "creator-1"
	}
	if spec.DueAt.IsZero() {
		spec.DueAt = f.clk.Now().Add(72 * time.Hour)
	}
	task, err := f.taskSvc.CreateTask(context.Background(), spec)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func TestCreateTask_StartsPendingWithAuditRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{})

	if task.Status != constants.StatusPending {
		t.Errorf("expected status %s, got %s", constants.StatusPending, task.Status)
	}

	history, err := f.taskSvc.ListHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(history) != 1 || history[0].Action != constants.ActionCreate {
		t.Errorf("expected single create history entry, got %+v", history)
	}
}

func TestSubmit_AttachmentRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{RequireAttachment: true})

	_, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{Comment: "done"})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	subs, _ := f.taskSvc.ListSubmissions(ctx, task.ID)
	if len(subs) != 0 {
		t.Errorf("submissions must be untouched after rejected submit, got %d", len(subs))
	}

	got, _ := f.taskSvc.GetTask(ctx, task.ID)
	if got.Status != constants.StatusPending {
		t.Errorf("status must be unchanged, got %s", got.Status)
	}

	// With a file ref the same event goes through.
	updated, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{FileRefs: []string{"file-1"}})
	if err != nil {
		t.Fatalf("submit with attachment failed: %v", err)
	}
	if updated.Status != constants.StatusSubmitted {
		t.Errorf("expected submitted, got %s", updated.Status)
	}
}

func TestFullReviewWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{
		ReviewerID:  strPtr("reviewer-1"),
		AssigneeIDs: []string{"user-1", "user-2"},
	})

	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{Comment: "v1"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := f.taskSvc.RequestReview(ctx, task.ID, "user-1"); err != nil {
		t.Fatalf("request review failed: %v", err)
	}
	if _, err := f.taskSvc.ApproveReview(ctx, task.ID, "reviewer-1"); err != nil {
		t.Fatalf("approve review failed: %v", err)
	}
	done, err := f.taskSvc.ApproveCompletion(ctx, task.ID, "creator-1")
	if err != nil {
		t.Fatalf("approve completion failed: %v", err)
	}

	if done.Status != constants.StatusCompleted {
		t.Errorf("expected completed, got %s", done.Status)
	}
	if done.ApprovalStatus != constants.ApprovalApproved {
		t.Errorf("completed task must be approved, got %s", done.ApprovalStatus)
	}
	if done.CompletedAt == nil || done.SubmittedAt == nil || done.CompletedAt.Before(*done.SubmittedAt) {
		t.Errorf("completedAt must be set and not precede submittedAt")
	}

	history, _ := f.taskSvc.ListHistory(ctx, task.ID)
	if len(history) != 5 {
		t.Errorf("expected 5 history entries, got %d", len(history))
	}
	for i, entry := range history {
		if entry.Seq != i+1 {
			t.Errorf("history out of order at index %d: seq %d", i, entry.Seq)
		}
	}

	// One KPI record per assignee, same classification.
	var recs []model.KPIRecord
	f.db.Where("task_id = ?", task.ID).Find(&recs)
	if len(recs) != 2 {
		t.Fatalf("expected 2 KPI records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Kind != constants.KPIEarly {
			t.Errorf("expected early outcome, got %s", rec.Kind)
		}
	}
}

func TestTransitionTable_RejectsIllegalEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{ReviewerID: strPtr("reviewer-1")})

	// None of these are legal from pending.
	if _, err := f.taskSvc.RequestReview(ctx, task.ID, "user-1"); !apperrors.IsInvalidTransition(err) {
		t.Errorf("requestReview from pending: expected invalid transition, got %v", err)
	}
	if _, err := f.taskSvc.ApproveReview(ctx, task.ID, "reviewer-1"); !apperrors.IsInvalidTransition(err) {
		t.Errorf("approveReview from pending: expected invalid transition, got %v", err)
	}
	if _, err := f.taskSvc.ApproveCompletion(ctx, task.ID, "creator-1"); !apperrors.IsInvalidTransition(err) {
		t.Errorf("approveCompletion from pending: expected invalid transition, got %v", err)
	}

	// Review approval needs a pending review, not just a submission.
	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := f.taskSvc.ApproveReview(ctx, task.ID, "reviewer-1"); !apperrors.IsInvalidTransition(err) {
		t.Errorf("approveReview without pending review: expected invalid transition, got %v", err)
	}

	// A reviewer is configured, so completion cannot skip review.
	if _, err := f.taskSvc.ApproveCompletion(ctx, task.ID, "creator-1"); !apperrors.IsInvalidTransition(err) {
		t.Errorf("approveCompletion bypassing review: expected invalid transition, got %v", err)
	}

	// Submitting a submitted task is not legal either.
	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{}); !apperrors.IsInvalidTransition(err) {
		t.Errorf("submit from submitted: expected invalid transition, got %v", err)
	}
}

func TestRejectReview_Resubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{ReviewerID: strPtr("reviewer-1")})

	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{Comment: "v1"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := f.taskSvc.RequestReview(ctx, task.ID, "user-1"); err != nil {
		t.Fatalf("request review failed: %v", err)
	}

	newDue := f.clk.Now().Add(96 * time.Hour)
	revised, err := f.taskSvc.RejectReview(ctx, task.ID, "reviewer-1", newDue, "missing numbers")
	if err != nil {
		t.Fatalf("reject review failed: %v", err)
	}
	if revised.Status != constants.StatusInProgress {
		t.Errorf("expected in_progress after rejection, got %s", revised.Status)
	}
	if !revised.DueAt.Equal(newDue) {
		t.Errorf("due time must be replaced by the reviewer's, got %s", revised.DueAt)
	}

	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{Comment: "v2"}); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}

	subs, _ := f.taskSvc.ListSubmissions(ctx, task.ID)
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].Comment != "v1" || subs[1].Comment != "v2" {
		t.Errorf("submission log must be append-only and ordered: %+v", subs)
	}
}

func TestApproveCompletion_NoReviewRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{})

	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	done, err := f.taskSvc.ApproveCompletion(ctx, task.ID, "creator-1")
	if err != nil {
		t.Fatalf("approve completion without review failed: %v", err)
	}
	if done.Status != constants.StatusCompleted {
		t.Errorf("expected completed, got %s", done.Status)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{})

	if _, err := f.taskSvc.Cancel(ctx, task.ID, "creator-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	before, _ := f.tasks.CountHistory(ctx, task.ID)
	again, err := f.taskSvc.Cancel(ctx, task.ID, "creator-1")
	if err != nil {
		t.Fatalf("second cancel must be a no-op, got %v", err)
	}
	if again.Status != constants.StatusCancelled {
		t.Errorf("expected cancelled, got %s", again.Status)
	}
	after, _ := f.tasks.CountHistory(ctx, task.ID)
	if before != after {
		t.Errorf("no-op cancel must not append history: %d -> %d", before, after)
	}
}

func TestCancel_CompletedTaskRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{})
	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := f.taskSvc.ApproveCompletion(ctx, task.ID, "creator-1"); err != nil {
		t.Fatalf("approve completion failed: %v", err)
	}

	if _, err := f.taskSvc.Cancel(ctx, task.ID, "creator-1"); !apperrors.IsInvalidTransition(err) {
		t.Errorf("cancel from completed: expected invalid transition, got %v", err)
	}
}

func TestOptimisticLock_StaleWriterConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{})

	stale, err := f.tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to load task: %v", err)
	}
	fresh, err := f.tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to load task: %v", err)
	}

	fresh.Status = constants.StatusInProgress
	if err := f.tasks.Update(ctx, fresh); err != nil {
		t.Fatalf("first writer must win: %v", err)
	}

	stale.Status = constants.StatusCancelled
	err = f.tasks.Update(ctx, stale)
	if !apperrors.IsConflict(err) {
		t.Fatalf("second writer must observe a conflict, got %v", err)
	}
}

func TestDeleteTask_CascadesKPIRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, CreateTaskSpec{})
	if _, err := f.taskSvc.Submit(ctx, task.ID, "user-1", SubmitPayload{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := f.taskSvc.ApproveCompletion(ctx, task.ID, "creator-1"); err != nil {
		t.Fatalf("approve completion failed: %v", err)
	}

	if err := f.taskSvc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var count int64
	f.db.Model(&model.KPIRecord{}).Where("task_id = ?", task.ID).Count(&count)
	if count != 0 {
		t.Errorf("KPI records must cascade with the task, %d left", count)
	}
}
