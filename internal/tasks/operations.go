package tasks

import (
	"github.com/tgienger/shiush/internal/models"
)

// AddTask appends a new task to bucket. Blank text is a no-op.
func (e *Engine) AddTask(bucket models.Bucket, text string, priority models.Priority) error {
	if !bucket.Valid() {
		return ErrUnknownBucket
	}
	text, ok := normalizeText(text)
	if !ok {
		return nil
	}
	if !priority.Valid() {
		priority = models.PriorityMinor
	}

	return e.mutate(bucket, func() (models.Bucket, bool) {
		tasks := e.state.Bucket(bucket)
		*tasks = append(*tasks, models.Task{
			ID:        e.newID(),
			Text:      text,
			Priority:  priority,
			CreatedAt: e.stamp(),
			Subtasks:  []models.Subtask{},
		})
		return "", true
	})
}

// ToggleTaskCompletion flips a task's completion. The flip cascades to every
// subtask in both directions, so the task stays the AND of its subtasks.
func (e *Engine) ToggleTaskCompletion(bucket models.Bucket, taskID string) error {
	return e.mutate(bucket, func() (models.Bucket, bool) {
		t := e.findIn(bucket, taskID)
		if t == nil {
			return "", false
		}
		t.Completed = !t.Completed
		for i := range t.Subtasks {
			t.Subtasks[i].Completed = t.Completed
		}
		if t.Completed {
			t.CompletedAt = e.stamp().Ptr()
		} else {
			t.CompletedAt = nil
		}
		return "", true
	})
}

// DeleteTask removes a task from bucket
func (e *Engine) DeleteTask(bucket models.Bucket, taskID string) error {
	return e.mutate(bucket, func() (models.Bucket, bool) {
		tasks := e.state.Bucket(bucket)
		if tasks == nil {
			return "", false
		}
		kept := make([]models.Task, 0, len(*tasks))
		for _, t := range *tasks {
			if t.ID != taskID {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(*tasks) {
			return "", false
		}
		*tasks = kept
		return "", true
	})
}

// AddSubtask appends a subtask to the task with taskID in any bucket
func (e *Engine) AddSubtask(taskID, text string) error {
	text, ok := normalizeText(text)
	if !ok {
		return nil
	}
	return e.mutate("", func() (models.Bucket, bool) {
		t, b := e.find(taskID)
		if t == nil {
			return "", false
		}
		t.Subtasks = append(t.Subtasks, models.Subtask{ID: e.newID(), Text: text})
		e.deriveCompletion(t)
		return b, true
	})
}

// ToggleSubtaskCompletion flips one subtask and re-derives its parent
func (e *Engine) ToggleSubtaskCompletion(taskID, subtaskID string) error {
	return e.mutate("", func() (models.Bucket, bool) {
		t, b := e.find(taskID)
		if t == nil {
			return "", false
		}
		for i := range t.Subtasks {
			if t.Subtasks[i].ID == subtaskID {
				t.Subtasks[i].Completed = !t.Subtasks[i].Completed
				e.deriveCompletion(t)
				return b, true
			}
		}
		return "", false
	})
}

// DeleteSubtask removes one subtask and re-derives its parent
func (e *Engine) DeleteSubtask(taskID, subtaskID string) error {
	return e.mutate("", func() (models.Bucket, bool) {
		t, b := e.find(taskID)
		if t == nil {
			return "", false
		}
		kept := make([]models.Subtask, 0, len(t.Subtasks))
		for _, st := range t.Subtasks {
			if st.ID != subtaskID {
				kept = append(kept, st)
			}
		}
		if len(kept) == len(t.Subtasks) {
			return "", false
		}
		t.Subtasks = kept
		e.deriveCompletion(t)
		return b, true
	})
}

// deriveCompletion sets the parent's flag to the AND of its subtasks.
// A task without subtasks keeps its user-controlled flag.
func (e *Engine) deriveCompletion(t *models.Task) {
	if len(t.Subtasks) == 0 {
		return
	}
	all := true
	for _, st := range t.Subtasks {
		if !st.Completed {
			all = false
			break
		}
	}
	switch {
	case all && !t.Completed:
		t.Completed = true
		t.CompletedAt = e.stamp().Ptr()
	case !all && t.Completed:
		t.Completed = false
		t.CompletedAt = nil
	}
}
