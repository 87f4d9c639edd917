package models

import "time"

// StaffMember is a directory entry for editors, reviewers, layout artists and proofreaders.
type StaffMember struct {
	StaffID  string     `gorm:"primaryKey;column:staff_id;type:char(36)" json:"staff_id"`
	Name     string     `gorm:"column:name" json:"name"`
	Email    string     `gorm:"column:email" json:"email"`
	Role     StaffRole  `gorm:"column:role;index" json:"role"`
	CreateAt time.Time  `gorm:"column:create_at" json:"create_at"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

func (StaffMember) TableName() string { return "staff_members" }

// Snapshot captures the member as an assignment at the given time.
func (s StaffMember) Snapshot(at time.Time) Assignment {
	return Assignment{
		StaffID:    s.StaffID,
		Name:       s.Name,
		Email:      s.Email,
		AssignedAt: at,
	}
}
