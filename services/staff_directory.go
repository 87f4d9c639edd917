package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"manuscript-workflow-api/config"
	"manuscript-workflow-api/models"
	"manuscript-workflow-api/utils"
)

// StaffDirectory is the read-mostly lookup of editors, reviewers, layout
// artists and proofreaders by id.
type StaffDirectory interface {
	FindStaff(ctx context.Context, id string) (*models.StaffMember, error)
	ListStaff(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error)
	AddStaff(ctx context.Context, member *models.StaffMember) error
}

// GormStaffDirectory reads the staff_members table.
type GormStaffDirectory struct {
	db *gorm.DB
}

func NewStaffDirectory(db *gorm.DB) *GormStaffDirectory {
	if db == nil {
		db = config.DB
	}
	return &GormStaffDirectory{db: db}
}

func (d *GormStaffDirectory) FindStaff(ctx context.Context, id string) (*models.StaffMember, error) {
	var member models.StaffMember
	err := d.db.WithContext(ctx).
		Where("staff_id = ? AND delete_at IS NULL", id).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStaffNotFound, id)
		}
		return nil, fmt.Errorf("failed to load staff member: %w", err)
	}
	return &member, nil
}

func (d *GormStaffDirectory) ListStaff(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error) {
	q := d.db.WithContext(ctx).Where("delete_at IS NULL")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var rows []models.StaffMember
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return rows, nil
}

func (d *GormStaffDirectory) AddStaff(ctx context.Context, member *models.StaffMember) error {
	if err := PrepareStaffMember(member, time.Now()); err != nil {
		return err
	}
	if err := d.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("failed to create staff member: %w", err)
	}
	return nil
}

// PrepareStaffMember validates a new directory entry and fills its id and timestamp.
func PrepareStaffMember(member *models.StaffMember, now time.Time) error {
	member.Name = utils.SanitizeInput(member.Name)
	member.Email = strings.ToLower(utils.SanitizeInput(member.Email))

	verr := &ValidationError{}
	if member.Name == "" {
		verr.Add("name", "Name is required")
	}
	if !utils.ValidateEmail(member.Email) {
		verr.Add("email", "Email is not a valid address")
	}
	if !member.Role.Valid() {
		verr.Add("role", "Role must be editor, reviewer, layout_artist or proofreader")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	if member.StaffID == "" {
		member.StaffID = uuid.NewString()
	}
	member.CreateAt = now
	return nil
}

// lookupRole resolves id in the directory and checks its role. Unknown ids
// and role mismatches are reported as field errors on field.
func lookupRole(ctx context.Context, dir StaffDirectory, field, id string, role models.StaffRole) (*models.StaffMember, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fieldError(field, "is required")
	}
	member, err := dir.FindStaff(ctx, id)
	if err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			return nil, fieldError(field, fmt.Sprintf("unknown %s %s", role, id))
		}
		return nil, err
	}
	if member.Role != role {
		return nil, fieldError(field, fmt.Sprintf("%s is not a %s", id, role))
	}
	return member, nil
}
