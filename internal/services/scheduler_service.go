package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grouptask/taskflow/internal/clock"
	"github.com/grouptask/taskflow/internal/constants"
	"github.com/grouptask/taskflow/internal/dedup"
	apperrors "github.com/grouptask/taskflow/internal/errors"
	model "github.com/grouptask/taskflow/internal/models"
	"github.com/grouptask/taskflow/internal/recurrence"
	repository "github.com/grouptask/taskflow/internal/repositories"
)

// SchedulerService drives everything time-triggered: materializing due
// recurring templates, sweeping tasks past due into overdue, and recording
// terminal overdue outcomes once the grace window runs out.
type SchedulerService struct {
	db          *gorm.DB
	templates   *repository.TemplateRepository
	tasks       *repository.TaskRepository
	kpis        *repository.KPIRepository
	members     *repository.MemberRepository
	taskSvc     *TaskService
	scorer      *KPIService
	guard       dedup.OccurrenceGuard
	clk         clock.Clock
	interval    time.Duration
	maxFailures int
	stop        chan struct{}
	wg          sync.WaitGroup
}

func NewSchedulerService(
	db *gorm.DB,
	templates *repository.TemplateRepository,
	tasks *repository.TaskRepository,
	kpis *repository.KPIRepository,
	members *repository.MemberRepository,
	taskSvc *TaskService,
	scorer *KPIService,
	guard dedup.OccurrenceGuard,
	clk clock.Clock,
	interval time.Duration,
	maxFailures int,
) *SchedulerService {
	return &SchedulerService{
		db:          db,
		templates:   templates,
		tasks:       tasks,
		kpis:        kpis,
		members:     members,
		taskSvc:     taskSvc,
		scorer:      scorer,
		guard:       guard,
		clk:         clk,
		interval:    interval,
		maxFailures: maxFailures,
		stop:        make(chan struct{}),
	}
}

// Run starts the ticker loop. Call Shutdown to stop it.
func (s *SchedulerService) Run() {
	s.wg.Add(1)
	go s.loop()
}

func (s *SchedulerService) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("scheduler started, interval %s", s.interval)

	for {
		select {
		case <-ticker.C:
			if _, err := s.Tick(context.Background(), s.clk.Now()); err != nil {
				log.Printf("scheduler tick failed: %v", err)
			}
		case <-s.stop:
			log.Println("scheduler stopped")
			return
		}
	}
}

func (s *SchedulerService) Shutdown(ctx context.Context) {
	close(s.stop)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Println("scheduler shutdown timed out")
	}
}

// Tick processes everything due at now and returns the ids of tasks it
// materialized. Safe to call repeatedly with the same now: each template
// occurrence fires at most once, guarded by the occurrence key and the
// template's optimistic version.
func (s *SchedulerService) Tick(ctx context.Context, now time.Time) ([]string, error) {
	due, err := s.templates.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	var created []string
	for i := range due {
		tpl := &due[i]
		taskID, err := s.fire(ctx, tpl)
		if err != nil {
			// One template's failure never aborts the batch.
			log.Printf("warning: template %s firing failed: %v", tpl.ID, err)
			s.recordFailure(ctx, tpl)
			continue
		}
		if taskID != "" {
			created = append(created, taskID)
		}
	}

	if err := s.sweepOverdue(ctx, now); err != nil {
		log.Printf("warning: overdue sweep failed: %v", err)
	}
	if err := s.recordOverdueOutcomes(ctx, now); err != nil {
		log.Printf("warning: overdue KPI sweep failed: %v", err)
	}

	return created, nil
}

// fire materializes one occurrence. The task creation and the template
// advance commit in a single transaction so a crash cannot leave the
// occurrence half-fired, and the version guard makes concurrent ticks pick
// one winner.
func (s *SchedulerService) fire(ctx context.Context, tpl *model.RecurringTemplate) (string, error) {
	occurrence := tpl.NextRunAt

	// Already fired for this occurrence; nothing to do.
	if tpl.LastRunAt != nil && !tpl.LastRunAt.Before(occurrence) {
		return "", nil
	}

	rule := recurrence.Rule{
		Kind:       tpl.Kind,
		Weekday:    tpl.Weekday,
		DayOfMonth: tpl.DayOfMonth,
		TimeOfDay:  tpl.TimeOfDay,
		Timezone:   tpl.Timezone,
	}

	// Advance from the fired occurrence, never from now: scheduler delay
	// must not accumulate into the series.
	next, err := recurrence.NextOccurrence(rule, occurrence)
	if err != nil {
		s.deactivate(ctx, tpl, err)
		return "", err
	}

	assignees, err := s.resolveAssignees(ctx, tpl)
	if err != nil {
		return "", err
	}

	// Claim only after all fallible preparation so a failed firing does not
	// leave the occurrence locked for the next tick.
	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, tpl.ID, occurrence)
		if err != nil {
			return "", err
		}
		if !claimed {
			return "", nil
		}
	}

	task := &model.Task{
		ID:             uuid.NewString(),
		GroupID:        tpl.GroupID,
		Title:          tpl.Title,
		Description:    tpl.Description,
		Priority:       tpl.Priority,
		AssigneeIDs:    model.JoinIDs(assignees),
		CreatorID:      tpl.CreatorID,
		TemplateID:     &tpl.ID,
		Status:         constants.StatusPending,
		ReviewerID:     tpl.ReviewerID,
		ReviewStatus:   constants.ReviewNotRequested,
		ApprovalStatus: constants.ApprovalNotRequested,
		StartAt:        &occurrence,
		DueAt:          occurrence.AddDate(0, 0, tpl.DurationDays),
		Version:        1,
		CreatedAt:      s.clk.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskRepo := s.tasks.WithTx(tx)
		tplRepo := s.templates.WithTx(tx)

		if err := taskRepo.Create(ctx, task); err != nil {
			return err
		}
		if err := taskRepo.AppendHistory(ctx, &model.TaskHistory{
			TaskID:  task.ID,
			Seq:     1,
			Action:  constants.ActionCreate,
			ActorID: constants.SystemActor,
			Note:    "materialized from recurring template",
			At:      task.CreatedAt,
		}); err != nil {
			return err
		}

		tpl.LastRunAt = &occurrence
		tpl.NextRunAt = next
		tpl.TotalInstances++
		tpl.FailCount = 0
		return tplRepo.Update(ctx, tpl)
	})
	if err != nil {
		if s.guard != nil {
			if relErr := s.guard.Release(ctx, tpl.ID, occurrence); relErr != nil {
				log.Printf("warning: occurrence claim release failed for template %s: %v", tpl.ID, relErr)
			}
		}
		if apperrors.IsConflict(err) {
			// Another tick advanced the template first; its task stands.
			log.Printf("template %s occurrence %s claimed elsewhere", tpl.ID, occurrence)
			return "", nil
		}
		return "", err
	}

	return task.ID, nil
}

func (s *SchedulerService) resolveAssignees(ctx context.Context, tpl *model.RecurringTemplate) ([]string, error) {
	assignees := tpl.Assignees()
	for _, id := range assignees {
		if id != constants.AssigneeTeam {
			continue
		}
		// Expand at materialization time so membership changes are picked up.
		members, err := s.members.ListUserIDs(ctx, tpl.GroupID)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, apperrors.NewValidation("group has no members to expand the team sentinel to")
		}
		return members, nil
	}
	return assignees, nil
}

// recordFailure bumps the consecutive-failure streak and deactivates the
// template once it hits the limit, flagging it for operator attention.
func (s *SchedulerService) recordFailure(ctx context.Context, tpl *model.RecurringTemplate) {
	if !tpl.Active {
		// Already deactivated inside fire, e.g. by an uncomputable rule.
		return
	}
	tpl.FailCount++
	if tpl.FailCount >= s.maxFailures {
		tpl.Active = false
		log.Printf("warning: template %s deactivated after %d consecutive failures", tpl.ID, tpl.FailCount)
	}
	if err := s.templates.Update(ctx, tpl); err != nil {
		log.Printf("warning: template %s failure bookkeeping failed: %v", tpl.ID, err)
	}
}

func (s *SchedulerService) deactivate(ctx context.Context, tpl *model.RecurringTemplate, cause error) {
	tpl.Active = false
	tpl.FailCount++
	if err := s.templates.Update(ctx, tpl); err != nil {
		log.Printf("warning: template %s deactivation failed: %v", tpl.ID, err)
		return
	}
	log.Printf("warning: template %s deactivated, next occurrence not computable: %v", tpl.ID, cause)
}

// sweepOverdue flips pending and in-progress tasks past their due time into
// overdue.
func (s *SchedulerService) sweepOverdue(ctx context.Context, now time.Time) error {
	tasks, err := s.tasks.ListDueUnfinished(ctx, now)
	if err != nil {
		return err
	}
	for i := range tasks {
		if _, err := s.taskSvc.MarkOverdue(ctx, tasks[i].ID); err != nil {
			log.Printf("warning: task %s overdue mark failed: %v", tasks[i].ID, err)
		}
	}
	return nil
}

// recordOverdueOutcomes writes the terminal overdue KPI for tasks that sat
// in overdue through the whole grace window. The unique (task, user) index
// plus the existence check keep this idempotent across ticks.
func (s *SchedulerService) recordOverdueOutcomes(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-s.scorer.cfg.Grace)
	tasks, err := s.tasks.ListOverdueBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	for i := range tasks {
		task := &tasks[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			kpiRepo := s.kpis.WithTx(tx)
			for _, rec := range s.scorer.RecordsForOverdue(task, now) {
				exists, err := kpiRepo.Exists(ctx, rec.TaskID, rec.UserID)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if err := kpiRepo.Create(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Printf("warning: task %s overdue KPI recording failed: %v", task.ID, err)
		}
	}
	return nil
}
