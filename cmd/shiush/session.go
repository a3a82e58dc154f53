package main

import (
	"context"
	"fmt"
	"log"

	"github.com/tgienger/shiush/internal/config"
	"github.com/tgienger/shiush/internal/db"
	"github.com/tgienger/shiush/internal/schedule"
	"github.com/tgienger/shiush/internal/tasks"
)

// session is one opened store: the engine over it and the evaluator that
// migrates it
type session struct {
	db        *db.DB
	engine    *tasks.Engine
	evaluator *schedule.Evaluator
}

// openSession opens the database, loads the store and runs the startup
// evaluation
func openSession(ctx context.Context, cfg *config.Config, logger *log.Logger) (*session, func(), error) {
	database, err := db.New(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	cleanup := func() {
		_ = database.Close()
	}

	engine, evaluator, err := newEngine(db.NewRecords(database), cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if _, err := evaluator.Evaluate(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("startup evaluation failed: %w", err)
	}

	return &session{db: database, engine: engine, evaluator: evaluator}, cleanup, nil
}

func newEngine(repo tasks.Repository, cfg *config.Config, logger *log.Logger) (*tasks.Engine, *schedule.Evaluator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	engine := tasks.New(repo, tasks.WithLogger(logger))
	if err := engine.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	evaluator := schedule.NewEvaluator(engine,
		schedule.WithLocation(loc),
		schedule.WithLogger(logger),
	)
	return engine, evaluator, nil
}
