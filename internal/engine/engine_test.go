package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coopline/internal/config"
	"coopline/internal/db"
	"coopline/internal/domain"
	"coopline/internal/engine"
	"coopline/internal/migrate"
	"coopline/internal/notify"
	"coopline/internal/repo"
)

type testEnv struct {
	Engine   engine.Engine
	Recorder *notify.Recorder
	Ctx      context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("default")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }
	rec := &notify.Recorder{}
	eng.Notifier = rec
	ctx := context.Background()
	if err := eng.Repo.UpsertPolicyConfig(ctx, "default", cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return testEnv{Engine: eng, Recorder: rec, Ctx: ctx}
}

func registerStudent(t *testing.T, env testEnv, id, dept string, gpa float64, transfer bool, semesters int) domain.Student {
	t.Helper()
	s, err := env.Engine.RegisterStudent(env.Ctx, engine.StudentRegisterOptions{
		ID:                 id,
		FullName:           "Student " + id,
		Email:              id + "@campus.test",
		Department:         dept,
		GPA:                gpa,
		IsTransfer:         transfer,
		CompletedSemesters: semesters,
		ActorID:            "tester",
	})
	if err != nil {
		t.Fatalf("register student %s: %v", id, err)
	}
	return s
}

func openPosition(t *testing.T, env testEnv, id string, weeks, hoursPerWeek int) domain.Position {
	t.Helper()
	p, err := env.Engine.OpenPosition(env.Ctx, engine.PositionOpenOptions{
		ID:           id,
		EmployerID:   "acme",
		Title:        "Intern",
		Description:  "Summer internship",
		Weeks:        weeks,
		HoursPerWeek: hoursPerWeek,
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatalf("open position %s: %v", id, err)
	}
	return p
}

func apply(t *testing.T, env testEnv, positionID, studentID string) domain.Application {
	t.Helper()
	a, err := env.Engine.Apply(env.Ctx, positionID, studentID, "tester")
	if err != nil {
		t.Fatalf("apply %s -> %s: %v", studentID, positionID, err)
	}
	return a
}

func TestOpenPositionValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.OpenPosition(env.Ctx, engine.PositionOpenOptions{
		EmployerID: "acme",
		Weeks:      -1,
		ActorID:    "tester",
	})
	var ve *engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"title", "description", "weeks", "hours_per_week"} {
		if _, ok := ve.Fields[field]; !ok {
			t.Fatalf("expected field %s in %v", field, ve.Fields)
		}
	}
}

func TestApplyRules(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 3.0, false, 3)
	openPosition(t, env, "p1", 10, 20)
	apply(t, env, "p1", "s1")

	// duplicate application rejected
	_, err := env.Engine.Apply(env.Ctx, "p1", "s1", "tester")
	var ve *engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error on duplicate apply, got %v", err)
	}

	// applying to a closed position rejected
	if _, err := env.Engine.ClosePosition(env.Ctx, "p1", "tester"); err != nil {
		t.Fatalf("close: %v", err)
	}
	registerStudent(t, env, "s2", "CS", 3.0, false, 3)
	_, err = env.Engine.Apply(env.Ctx, "p1", "s2", "tester")
	var te *engine.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	// unknown position or student -> not found
	_, err = env.Engine.Apply(env.Ctx, "nope", "s2", "tester")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPositionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 3.0, false, 3)
	openPosition(t, env, "p1", 10, 20)
	apply(t, env, "p1", "s1")

	if _, err := env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
		PositionID:        "p1",
		SelectedStudentID: "s1",
		ActorID:           "employer",
	}); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	p, err := env.Engine.Repo.GetPosition(env.Ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PositionPending {
		t.Fatalf("expected pending, got %s", p.Status)
	}
	if p.SelectedStudentID == nil || *p.SelectedStudentID != "s1" {
		t.Fatalf("expected selected student recorded")
	}

	// pending -> closed allowed, closed is terminal and close is idempotent
	if _, err := env.Engine.ClosePosition(env.Ctx, "p1", "tester"); err != nil {
		t.Fatalf("close pending: %v", err)
	}
	if _, err := env.Engine.ClosePosition(env.Ctx, "p1", "tester"); err != nil {
		t.Fatalf("close closed should be a no-op: %v", err)
	}

	// selecting on a closed position fails
	_, err = env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
		PositionID:        "p1",
		SelectedStudentID: "s1",
		ActorID:           "employer",
	})
	var te *engine.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if te.Current != domain.PositionClosed {
		t.Fatalf("expected current closed, got %s", te.Current)
	}
}

func TestMarkPendingCascadeAndNotification(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 3.2, false, 3)
	registerStudent(t, env, "s2", "CS", 3.0, false, 3)
	registerStudent(t, env, "s3", "CS", 3.0, false, 3)
	openPosition(t, env, "p1", 10, 20)
	apply(t, env, "p1", "s1")
	apply(t, env, "p1", "s2")
	apply(t, env, "p1", "s3")

	a, err := env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
		PositionID:        "p1",
		SelectedStudentID: "s1",
		OfferLetter:       "letters/p1-s1.pdf",
		ActorID:           "employer",
	})
	if err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	if a.Status != domain.AppAwaitingDecision {
		t.Fatalf("expected awaiting_student_decision, got %s", a.Status)
	}
	if a.Verdict == nil || *a.Verdict != domain.VerdictEligible {
		t.Fatalf("expected eligible verdict")
	}
	if len(a.EligibilityReasons) != 0 {
		t.Fatalf("expected no failure reasons, got %v", a.EligibilityReasons)
	}

	// siblings all became not_selected
	apps, err := env.Engine.Repo.ListApplications(env.Ctx, repo.ApplicationFilters{PositionID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, other := range apps {
		if other.ID == a.ID {
			continue
		}
		if other.Status != domain.AppNotSelected {
			t.Fatalf("sibling %s expected not_selected, got %s", other.ID, other.Status)
		}
	}

	// exactly one notification, to the selected student
	sent := env.Recorder.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sent))
	}
	if sent[0].StudentID != "s1" || sent[0].Kind != notify.KindOfferReady {
		t.Fatalf("unexpected notification %+v", sent[0])
	}
}

func TestMarkPendingIneligibleIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 1.9, false, 3)
	openPosition(t, env, "p1", 10, 20)
	apply(t, env, "p1", "s1")

	a, err := env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
		PositionID:        "p1",
		SelectedStudentID: "s1",
		ActorID:           "employer",
	})
	if err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	if a.Status != domain.AppEligibilityEvaluated {
		t.Fatalf("expected eligibility_evaluated, got %s", a.Status)
	}
	if a.Verdict == nil || *a.Verdict != domain.VerdictIneligible {
		t.Fatalf("expected ineligible verdict")
	}
	if len(a.EligibilityReasons) != 1 || a.EligibilityReasons[0] != "rule1" {
		t.Fatalf("expected [rule1], got %v", a.EligibilityReasons)
	}
	if got := env.Recorder.Sent(); len(got) != 0 {
		t.Fatalf("expected no notification for ineligible, got %d", len(got))
	}

	// the application cannot move forward
	_, err = env.Engine.AcceptCoop(env.Ctx, a.ID, "s1")
	var te *engine.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	// position stays pending; the flow does not reopen it
	p, err := env.Engine.Repo.GetPosition(env.Ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PositionPending {
		t.Fatalf("expected position pending, got %s", p.Status)
	}
}

func TestConcurrentMarkPendingSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 3.0, false, 3)
	registerStudent(t, env, "s2", "CS", 3.0, false, 3)
	openPosition(t, env, "p1", 10, 20)
	apply(t, env, "p1", "s1")
	apply(t, env, "p1", "s2")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, student := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(i int, student string) {
			defer wg.Done()
			_, errs[i] = env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
				PositionID:        "p1",
				SelectedStudentID: student,
				ActorID:           "employer-" + student,
			})
		}(i, student)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var te *engine.InvalidTransitionError
		if !errors.As(err, &te) {
			t.Fatalf("loser should fail with invalid transition, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d (errs=%v)", wins, errs)
	}

	apps, err := env.Engine.Repo.ListApplications(env.Ctx, repo.ApplicationFilters{PositionID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	selected, rejected := 0, 0
	for _, a := range apps {
		switch a.Status {
		case domain.AppNotSelected:
			rejected++
		case domain.AppSubmitted:
			t.Fatalf("application %s left in submitted", a.ID)
		default:
			selected++
		}
	}
	if selected != 1 || rejected != 1 {
		t.Fatalf("expected 1 selected-or-later and 1 not_selected, got %d/%d", selected, rejected)
	}
}

func TestCoopFlow(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 3.0, false, 3)
	openPosition(t, env, "p1", 10, 20)
	apply(t, env, "p1", "s1")
	if _, err := env.Engine.RegisterFaculty(env.Ctx, engine.FacultyRegisterOptions{
		ID: "f-cs", FullName: "Dr. Cho", Email: "cho@campus.test", Department: "CS", ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RegisterFaculty(env.Ctx, engine.FacultyRegisterOptions{
		ID: "f-ee", FullName: "Dr. Patel", Email: "patel@campus.test", Department: "EE", ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}

	a, err := env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
		PositionID: "p1", SelectedStudentID: "s1", ActorID: "employer",
	})
	if err != nil {
		t.Fatal(err)
	}

	// summary before acceptance fails
	_, err = env.Engine.SubmitSummary(env.Ctx, a.ID, "early bird", "s1")
	var te *engine.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	a, err = env.Engine.AcceptCoop(env.Ctx, a.ID, "s1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if a.Status != domain.AppCoopAccepted {
		t.Fatalf("expected coop_accepted, got %s", a.Status)
	}

	// grading before summary fails the precondition
	_, err = env.Engine.Grade(env.Ctx, engine.GradeOptions{
		ApplicationID: a.ID, Grade: "A", CoordinatorID: "f-cs", ActorID: "f-cs",
	})
	if !errors.As(err, &te) {
		t.Fatalf("expected invalid transition before summary, got %v", err)
	}

	a, err = env.Engine.SubmitSummary(env.Ctx, a.ID, "Built the reporting pipeline.", "s1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	// wrong-department coordinator is rejected
	_, err = env.Engine.Grade(env.Ctx, engine.GradeOptions{
		ApplicationID: a.ID, Grade: "A", CoordinatorID: "f-ee", ActorID: "f-ee",
	})
	var ae *engine.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	a, err = env.Engine.Grade(env.Ctx, engine.GradeOptions{
		ApplicationID: a.ID, Grade: "A", CoordinatorID: "f-cs", ActorID: "f-cs",
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if a.Status != domain.AppGraded {
		t.Fatalf("expected graded, got %s", a.Status)
	}
	rec, err := env.Engine.Repo.GetCoopRecord(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Grade == nil || *rec.Grade != "A" || rec.CoordinatorID == nil || *rec.CoordinatorID != "f-cs" {
		t.Fatalf("coop record not updated: %+v", rec)
	}

	// review surface includes the graded application
	items, err := env.Engine.ListCoopApplications(env.Ctx, "CS", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Application.ID != a.ID {
		t.Fatalf("expected one review item for CS, got %+v", items)
	}
	if items[0].Department != "CS" {
		t.Fatalf("unexpected department %s", items[0].Department)
	}
	items, err = env.Engine.ListCoopApplications(env.Ctx, "EE", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no EE items, got %d", len(items))
	}
}

func TestDeclineIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 3.0, true, 1)
	openPosition(t, env, "p1", 8, 20)
	apply(t, env, "p1", "s1")
	a, err := env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
		PositionID: "p1", SelectedStudentID: "s1", ActorID: "employer",
	})
	if err != nil {
		t.Fatal(err)
	}
	a, err = env.Engine.DeclineCoop(env.Ctx, a.ID, "s1")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if a.Status != domain.AppCoopDeclined {
		t.Fatalf("expected coop_declined, got %s", a.Status)
	}
	if _, err := env.Engine.AcceptCoop(env.Ctx, a.ID, "s1"); err == nil {
		t.Fatalf("expected terminal state to reject accept")
	}
}

func TestEventLogOnTransitions(t *testing.T) {
	env := newTestEnv(t)
	registerStudent(t, env, "s1", "CS", 3.0, false, 3)
	openPosition(t, env, "p1", 10, 20)
	a := apply(t, env, "p1", "s1")
	if _, err := env.Engine.MarkPending(env.Ctx, engine.MarkPendingOptions{
		PositionID: "p1", SelectedStudentID: "s1", ActorID: "employer",
	}); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 50, "", "application", a.ID)
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]bool{}
	for _, evt := range events {
		types[evt.Type] = true
	}
	for _, want := range []string{"application.submitted", "application.selected", "application.eligibility_evaluated", "notification.requested"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
}
