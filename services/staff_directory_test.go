package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manuscript-workflow-api/models"
)

func TestPrepareStaffMember(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	member := &models.StaffMember{Name: "  Erin Editor ", Email: "Erin@Press.TEST", Role: models.RoleEditor}

	require.NoError(t, PrepareStaffMember(member, now))
	assert.Equal(t, "Erin Editor", member.Name)
	assert.Equal(t, "erin@press.test", member.Email)
	assert.NotEmpty(t, member.StaffID)
	assert.Equal(t, now, member.CreateAt)

	bad := &models.StaffMember{Email: "nope", Role: "typesetter"}
	err := PrepareStaffMember(bad, now)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "role")
	assert.Empty(t, bad.StaffID)
}

func staffColumns() []string {
	return []string{"staff_id", "name", "email", "role", "create_at", "delete_at"}
}

func TestStaffDirectoryFindStaffNotFound(t *testing.T) {
	db, mock := newMockGormDB(t)
	dir := NewStaffDirectory(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `staff_members` WHERE staff_id = ? AND delete_at IS NULL")).
		WillReturnRows(sqlmock.NewRows(staffColumns()))

	_, err := dir.FindStaff(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrStaffNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffDirectoryListStaffByRole(t *testing.T) {
	db, mock := newMockGormDB(t)
	dir := NewStaffDirectory(db)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM .staff_members. WHERE delete_at IS NULL AND role = \? ORDER BY name ASC`).
		WithArgs("reviewer").
		WillReturnRows(sqlmock.NewRows(staffColumns()).
			AddRow("r-1", "Ravi", "ravi@press.test", "reviewer", created, nil).
			AddRow("r-2", "Rosa", "rosa@press.test", "reviewer", created, nil))

	rows, err := dir.ListStaff(context.Background(), models.RoleReviewer)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ravi", rows[0].Name)
	assert.Equal(t, models.RoleReviewer, rows[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupRole(t *testing.T) {
	dir := newMemoryDirectory(
		models.StaffMember{StaffID: "ed-1", Name: "Erin", Role: models.RoleEditor},
	)
	ctx := context.Background()

	member, err := lookupRole(ctx, dir, "editor_id", "ed-1", models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, "Erin", member.Name)

	for _, id := range []string{"", "ghost"} {
		_, err = lookupRole(ctx, dir, "editor_id", id, models.RoleEditor)
		assert.ErrorAs(t, err, new(*ValidationError), id)
	}
	_, err = lookupRole(ctx, dir, "proofreader_id", "ed-1", models.RoleProofreader)
	assert.ErrorAs(t, err, new(*ValidationError))
}
