package domain

import "time"

// Department is an organizational unit that can own cases.
type Department struct {
	ID        string
	Name      string
	ManagerID *string
	GroupID   *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DepartmentGroup collects departments under one multi-department manager.
type DepartmentGroup struct {
	ID        string
	Name      string
	ManagerID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserDepartmentMapping links a multi-department manager to a department without a group.
type UserDepartmentMapping struct {
	UserID       string
	DepartmentID string
	CreatedAt    time.Time
}

// DirectorManagerMapping links a director to a manager whose departments the director oversees.
type DirectorManagerMapping struct {
	DirectorID string
	ManagerID  string
	CreatedAt  time.Time
}
