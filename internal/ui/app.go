package ui

import (
	"context"
	"io"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/shiush/internal/models"
	"github.com/tgienger/shiush/internal/schedule"
	"github.com/tgienger/shiush/internal/tasks"
	"github.com/tgienger/shiush/internal/ui/views"
)

const renderBuffer = 16

// Evaluator runs one bucket migration pass
type Evaluator interface {
	Evaluate(ctx context.Context) (schedule.Report, error)
}

type App struct {
	engine    *tasks.Engine
	evaluator Evaluator
	interval  time.Duration
	renders   chan models.Bucket
	board     *views.TaskListView
	log       *log.Logger
	width     int
	height    int
}

// Creates a new application. The engine's renderer is replaced so store
// changes reach the running program.
func NewApp(engine *tasks.Engine, evaluator Evaluator, interval time.Duration, logger *log.Logger) *App {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	a := &App{
		engine:    engine,
		evaluator: evaluator,
		interval:  interval,
		renders:   make(chan models.Bucket, renderBuffer),
		board:     views.NewTaskListView(engine, models.BucketToday),
		log:       logger,
	}
	engine.SetRenderer(tasks.RenderFunc(a.notify))
	return a
}

// notify never blocks: it runs inside Update when the view mutates the
// store. A full buffer already guarantees a reload.
func (a *App) notify(bucket models.Bucket) {
	select {
	case a.renders <- bucket:
	default:
	}
}

func (a *App) waitForRender() tea.Msg {
	return views.StoreChanged{Bucket: <-a.renders}
}

type evaluateMsg time.Time

type evaluatedMsg struct {
	report schedule.Report
	err    error
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.interval, func(t time.Time) tea.Msg {
		return evaluateMsg(t)
	})
}

func (a *App) evaluate() tea.Msg {
	report, err := a.evaluator.Evaluate(context.Background())
	return evaluatedMsg{report: report, err: err}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.board.Init(), a.waitForRender, a.tick())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case views.StoreChanged:
		_, cmd := a.board.Update(msg)
		return a, tea.Batch(cmd, a.waitForRender)

	case evaluateMsg:
		return a, tea.Batch(a.evaluate, a.tick())

	case evaluatedMsg:
		if msg.err != nil {
			a.log.Printf("ui: evaluation failed: %v", msg.err)
		}
		return a, nil
	}

	_, cmd := a.board.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	return a.board.View()
}
