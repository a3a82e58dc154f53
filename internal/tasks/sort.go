package tasks

import (
	"sort"

	"github.com/tgienger/shiush/internal/models"
)

// Sort orders tasks incomplete first, then by priority rank. Ties keep
// their relative order.
func Sort(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		return a.Priority.Rank() < b.Priority.Rank()
	})
}
