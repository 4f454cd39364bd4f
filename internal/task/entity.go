package task

import (
	"strings"
	"time"
)

// Status is the completion state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Toggle flips pending to completed and anything else to pending.
func (s Status) Toggle() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// TempIDPrefix marks ids generated client-side for records the server
// has not confirmed yet. Servers never hand out ids with this prefix.
const TempIDPrefix = "temp-"

type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Status      Status    `json:"status" yaml:"status"`
	CreatedAt   time.Time `json:"created_at,omitzero" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitzero" yaml:"updated_at"`

	// Optimistic is set on records whose last mutation has not been
	// confirmed by the server. It never leaves the client.
	Optimistic bool `json:"-" yaml:"-"`
}

// IsTemporary reports whether the task carries a client-generated id.
func (t Task) IsTemporary() bool {
	return strings.HasPrefix(t.ID, TempIDPrefix)
}

// Completed reports whether the task is done.
func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// Draft is the payload used to create a task.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status,omitempty"`
}

// Normalize trims the text fields and defaults the status to pending.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Status == "" {
		d.Status = StatusPending
	}
	return d
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}

// Apply returns a copy of t with the patch fields applied.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}

func (p Patch) WithTitle(title string) Patch {
	p.Title = &title
	return p
}

func (p Patch) WithDescription(description string) Patch {
	p.Description = &description
	return p
}

func (p Patch) WithStatus(status Status) Patch {
	p.Status = &status
	return p
}
