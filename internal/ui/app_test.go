package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/shiush/internal/db"
	"github.com/tgienger/shiush/internal/models"
	"github.com/tgienger/shiush/internal/schedule"
	"github.com/tgienger/shiush/internal/tasks"
	"github.com/tgienger/shiush/internal/ui/views"
)

type countingEvaluator struct {
	calls int
	err   error
}

func (e *countingEvaluator) Evaluate(ctx context.Context) (schedule.Report, error) {
	e.calls++
	return schedule.Report{}, e.err
}

func newTestApp(t *testing.T) (*App, *tasks.Engine, *countingEvaluator) {
	t.Helper()
	engine := tasks.New(db.NewRecords(db.NewMemory()))
	if err := engine.Load(); err != nil {
		t.Fatal(err)
	}
	ev := &countingEvaluator{}
	return NewApp(engine, ev, time.Millisecond, nil), engine, ev
}

func TestStoreChangesReachTheProgram(t *testing.T) {
	app, engine, _ := newTestApp(t)

	if err := engine.AddTask(models.BucketWeek, "plan", models.PriorityMain); err != nil {
		t.Fatal(err)
	}

	msg, ok := app.waitForRender().(views.StoreChanged)
	if !ok || msg.Bucket != models.BucketWeek {
		t.Fatalf("render message = %#v, want week", msg)
	}
}

func TestNotifyNeverBlocks(t *testing.T) {
	app, engine, _ := newTestApp(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < renderBuffer*2; i++ {
			engine.AddTask(models.BucketToday, "task", models.PriorityMinor)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer blocked with nobody listening")
	}
	if len(app.renders) != renderBuffer {
		t.Errorf("buffered %d renders, want %d", len(app.renders), renderBuffer)
	}
}

func TestTickEvaluates(t *testing.T) {
	app, _, ev := newTestApp(t)
	ev.err = errors.New("disk gone")

	_, cmd := app.Update(evaluateMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick produced no command")
	}

	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("expected a batch, got %T", cmd())
	}

	var sawEvaluation, sawTick bool
	for _, c := range batch {
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case evaluatedMsg:
			sawEvaluation = true
			if msg.err == nil {
				t.Error("evaluation error was dropped")
			}
			app.Update(msg)
		case evaluateMsg:
			sawTick = true
		}
	}

	if !sawEvaluation || ev.calls != 1 {
		t.Errorf("evaluator calls = %d, want 1", ev.calls)
	}
	if !sawTick {
		t.Error("tick was not re-armed")
	}
}
