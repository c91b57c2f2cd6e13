package store

import "time"

type User struct {
	ID              string
	DisplayName     string
	Email           string
	Provider        string
	ProviderSubject string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Board is a top-level project container owned by a user. Annual and
// EndingDate are derived from the product set and rewritten on every product
// replacement; they are carried here so list responses do not recompute them.
type Board struct {
	ID            string
	UserID        string
	Title         string
	Color         string
	SortOrder     int
	TotalValue    float64
	UpcomingValue float64
	ReceivedValue float64
	Annual        float64
	StartedDate   *time.Time
	EndingDate    *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Joined fields for API responses
	Labels     []Label
	Products   []Product
	TotalTasks int
}

type Column struct {
	ID        string
	BoardID   string
	Title     string
	SortOrder int
	CreatedAt time.Time
}

// ColumnWithTasks is a column plus its tasks in sort order.
type ColumnWithTasks struct {
	Column
	Tasks []Task
}

type Task struct {
	ID          string
	ColumnID    string
	Title       string
	Description string
	Assignee    string
	DueDate     *time.Time
	Priority    string
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Label struct {
	ID        string
	UserID    string
	Text      string
	Color     string
	CreatedAt time.Time
}

// Product is a recurring line item wholly owned by a board. Period is in
// years: 0.5, 1, 2, or 3.
type Product struct {
	ID          string
	BoardID     string
	Name        string
	StartedDate time.Time
	Period      float64
	Price       float64
	Cost        float64
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SavedProduct is a user-scoped autocomplete entry, append-only and not
// referenced by products.
type SavedProduct struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// SortUpdate assigns one entity its new sort order.
type SortUpdate struct {
	ID        string
	SortOrder int
}

// BoardFieldUpdates carries a partial update of a board's editable fields.
// Nil pointers leave the column untouched.
type BoardFieldUpdates struct {
	Title         *string
	Color         *string
	Notes         *string
	StartedDate   *time.Time
	ClearStarted  bool
	TotalValue    *float64
	UpcomingValue *float64
	ReceivedValue *float64
	Annual        *float64
}

// TaskUpdates carries a partial update of a task.
type TaskUpdates struct {
	Title       *string
	Description *string
	Assignee    *string
	DueDate     *time.Time
	ClearDue    bool
	Priority    *string
}

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is one of the three task priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ValidPeriod reports whether a product period is one of the allowed year
// spans.
func ValidPeriod(period float64) bool {
	switch period {
	case 0.5, 1, 2, 3:
		return true
	}
	return false
}
