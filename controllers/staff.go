package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/services"
)

// StaffController serves the staff directory used for assignments.
type StaffController struct {
	directory services.StaffDirectory
}

func NewStaffController(directory services.StaffDirectory) *StaffController {
	return &StaffController{directory: directory}
}

// ListStaff returns active staff, optionally filtered by ?role=.
func (sc *StaffController) ListStaff(c *gin.Context) {
	role := models.StaffRole(strings.TrimSpace(c.Query("role")))
	if role != "" && !role.Valid() {
		badRequest(c, "Invalid role filter")
		return
	}

	staff, err := sc.directory.ListStaff(c.Request.Context(), role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"staff":   staff,
		"total":   len(staff),
	})
}

// CreateStaff adds a directory entry.
func (sc *StaffController) CreateStaff(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	member := &models.StaffMember{
		Name:  req.Name,
		Email: req.Email,
		Role:  models.StaffRole(strings.TrimSpace(req.Role)),
	}
	if err := sc.directory.AddStaff(c.Request.Context(), member); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"staff":   member,
	})
}
