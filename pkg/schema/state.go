// Package schema defines the data structures shared by the robot-ops server, SDK and CLI.
package schema

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a robot operation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusActive    Status = "active"
	StatusOnHold    Status = "onHold"
	StatusResume    Status = "resume"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in declaration order.
var Statuses = []Status{
	StatusIdle,
	StatusActive,
	StatusOnHold,
	StatusResume,
	StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// StateRecord represents a robot-operation job and its current status.
// Timestamps are kept in UTC.
type StateRecord struct {
	Name        string    `json:"name" yaml:"name" gorm:"column:name;primaryKey;type:varchar(255)"`
	Description string    `json:"description" yaml:"description" gorm:"column:description;type:text;not null"`
	Status      Status    `json:"status" yaml:"status" gorm:"column:status;type:varchar(20);not null;default:idle;index"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt" gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt" gorm:"column:updated_at;not null;index"`
	CreatedBy   string    `json:"createdBy" yaml:"createdBy" gorm:"column:created_by;type:varchar(255);not null"`
}

// TableName pins the table used by SQL backends.
func (StateRecord) TableName() string {
	return "states"
}

// Normalize trims the identity key and fills in the default status.
func (r *StateRecord) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if r.Status == "" {
		r.Status = StatusIdle
	}
}

// Modified reports whether the record changed after it was created.
func (r StateRecord) Modified() bool {
	return !r.UpdatedAt.Equal(r.CreatedAt)
}
