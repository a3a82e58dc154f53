package views

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/shiush/internal/models"
	"github.com/tgienger/shiush/internal/ui/styles"
)

// bucketIndex returns the position of b in models.Buckets
func bucketIndex(b models.Bucket) int {
	for i, bucket := range models.Buckets {
		if bucket == b {
			return i
		}
	}
	return 0
}

// shiftBucket moves dir tabs from b, wrapping around
func shiftBucket(b models.Bucket, dir int) models.Bucket {
	n := len(models.Buckets)
	return models.Buckets[(bucketIndex(b)+dir+n)%n]
}

// renderTabs draws the bucket tab bar. Narrow terminals get numbers only.
func renderTabs(s *styles.Styles, active models.Bucket, open map[models.Bucket]int, width int) string {
	narrow := width < 70

	tabs := make([]string, 0, len(models.Buckets))
	for i, b := range models.Buckets {
		label := fmt.Sprintf("%d %s", i+1, b.Title())
		if narrow {
			label = fmt.Sprintf("%d", i+1)
			if b == active {
				label = fmt.Sprintf("%d %s", i+1, b.Title())
			}
		}
		if n := open[b]; n > 0 {
			label += " " + s.TabCount.Render(fmt.Sprintf("%d", n))
		}

		style := s.Tab
		if b == active {
			style = s.TabActive
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
}
