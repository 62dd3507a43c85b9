package dashboard

import (
	"time"

	"github.com/geocoder89/sitehub/internal/domain/budget"
	"github.com/geocoder89/sitehub/internal/domain/project"
)

// Dashboard is the aggregate view of one project.
type Dashboard struct {
	Project     ProjectSummary  `json:"project"`
	Tasks       TaskCounts      `json:"tasks"`
	TeamSize    int             `json:"teamSize"`
	Budget      budget.Summary  `json:"budget"`
	Materials   MaterialSummary `json:"materials"`
	Documents   int             `json:"documents"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

type ProjectSummary struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Status         project.Status `json:"status"`
	Progress       float64        `json:"progress"`
	PlannedEndDate *time.Time     `json:"plannedEndDate,omitempty"`
}

type TaskCounts struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
	Overdue    int `json:"overdue"`
}

type MaterialSummary struct {
	Items      int     `json:"items"`
	StockValue float64 `json:"stockValue"`
}

func SummarizeProject(p project.Project) ProjectSummary {
	return ProjectSummary{
		ID:             p.ID,
		Name:           p.Name,
		Status:         p.Status,
		Progress:       p.Progress,
		PlannedEndDate: p.PlannedEndDate,
	}
}
