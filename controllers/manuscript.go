package controllers

import (
	"iter"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/services"
)

const maxListLimit = 1000

// ManuscriptController exposes the workflow engine and the read side over HTTP.
type ManuscriptController struct {
	workflow *services.WorkflowService
	query    *services.QueryService
	export   *services.ExportService
}

func NewManuscriptController(workflow *services.WorkflowService, query *services.QueryService, export *services.ExportService) *ManuscriptController {
	return &ManuscriptController{workflow: workflow, query: query, export: export}
}

func respondManuscript(c *gin.Context, status int, m *models.Manuscript) {
	c.JSON(status, gin.H{
		"success":    true,
		"manuscript": m,
	})
}

// CreateManuscript registers a new submission in Pre-Review.
func (mc *ManuscriptController) CreateManuscript(c *gin.Context) {
	var req services.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	m, err := mc.workflow.Intake(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusCreated, m)
}

// GetManuscript returns one manuscript with all of its fields.
func (mc *ManuscriptController) GetManuscript(c *gin.Context) {
	m, err := mc.workflow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// GetManuscriptHistory returns the transition audit trail.
func (mc *ManuscriptController) GetManuscriptHistory(c *gin.Context) {
	history, err := mc.workflow.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": history,
		"total":   len(history),
	})
}

// GetManuscriptNotifications returns the notices sent to the author.
func (mc *ManuscriptController) GetManuscriptNotifications(c *gin.Context) {
	notifications, err := mc.workflow.Notifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"notifications": notifications,
		"total":         len(notifications),
	})
}

// ListManuscripts serves both the per-stage listing and search.
//
//	GET /manuscripts?stage=Pre-Review&year=2024
//	GET /manuscripts?q=biology&stage=Published
func (mc *ManuscriptController) ListManuscripts(c *gin.Context) {
	stage, ok := optionalStage(c)
	if !ok {
		return
	}
	year, ok := optionalYear(c)
	if !ok {
		return
	}
	limit, ok := optionalLimit(c)
	if !ok {
		return
	}

	term := strings.TrimSpace(c.Query("q"))

	var seq iter.Seq2[models.ManuscriptSummary, error]
	switch {
	case term != "":
		seq = mc.query.Search(c.Request.Context(), term, stage, year)
	case stage != nil:
		seq = mc.query.ListByStage(c.Request.Context(), *stage, year)
	default:
		badRequest(c, "stage or q is required")
		return
	}

	rows := make([]models.ManuscriptSummary, 0)
	for row, err := range seq {
		if err != nil {
			respondError(c, err)
			return
		}
		rows = append(rows, row)
		if len(rows) >= limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"manuscripts": rows,
		"total":       len(rows),
	})
}

// ExportManuscripts streams a stage listing as an .xlsx workbook.
func (mc *ManuscriptController) ExportManuscripts(c *gin.Context) {
	stage, ok := optionalStage(c)
	if !ok {
		return
	}
	if stage == nil {
		badRequest(c, "stage is required")
		return
	}
	year, ok := optionalYear(c)
	if !ok {
		return
	}

	buf, filename, err := mc.export.ExportListing(c.Request.Context(), *stage, year)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

type staffAssignmentRequest struct {
	StaffID string `json:"staff_id" binding:"required"`
}

// AssignEditor sets the handling editor during Pre-Review.
func (mc *ManuscriptController) AssignEditor(c *gin.Context) {
	var req staffAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "staff_id is required")
		return
	}
	m, err := mc.workflow.AssignEditor(c.Request.Context(), c.Param("id"), req.StaffID, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// AssignLayoutArtist sets the layout artist during Final Proofreading.
func (mc *ManuscriptController) AssignLayoutArtist(c *gin.Context) {
	var req staffAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "staff_id is required")
		return
	}
	m, err := mc.workflow.AssignLayoutArtist(c.Request.Context(), c.Param("id"), req.StaffID, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// AssignProofreader sets the proofreader during Final Proofreading.
func (mc *ManuscriptController) AssignProofreader(c *gin.Context) {
	var req staffAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "staff_id is required")
		return
	}
	m, err := mc.workflow.AssignProofreader(c.Request.Context(), c.Param("id"), req.StaffID, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// SubmitForReview moves a Pre-Review manuscript into Double-Blind Review.
func (mc *ManuscriptController) SubmitForReview(c *gin.Context) {
	m, err := mc.workflow.SubmitForReview(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// AssignReviewers replaces the reviewer set.
func (mc *ManuscriptController) AssignReviewers(c *gin.Context) {
	var req struct {
		ReviewerIDs []string `json:"reviewer_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	m, err := mc.workflow.AssignReviewers(c.Request.Context(), c.Param("id"), req.ReviewerIDs, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// RecordReviewRating stores one reviewer's remark.
func (mc *ManuscriptController) RecordReviewRating(c *gin.Context) {
	var req struct {
		ReviewerID string `json:"reviewer_id"`
		Remark     string `json:"remark"`
		Comment    string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	reviewerID := req.ReviewerID
	if reviewerID == "" {
		reviewerID = c.Param("reviewerId")
	}

	m, err := mc.workflow.RecordReviewRating(c.Request.Context(), c.Param("id"), reviewerID, req.Remark, req.Comment, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// AdvanceToProofreading closes Double-Blind Review.
func (mc *ManuscriptController) AdvanceToProofreading(c *gin.Context) {
	m, err := mc.workflow.AdvanceToProofreading(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// RecordScores stores a grammar/plagiarism scoring event.
func (mc *ManuscriptController) RecordScores(c *gin.Context) {
	var req struct {
		GrammarScore    *int `json:"grammar_score"`
		PlagiarismScore *int `json:"plagiarism_score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.GrammarScore == nil || req.PlagiarismScore == nil {
		verr := &services.ValidationError{}
		if req.GrammarScore == nil {
			verr.Add("grammar_score", "is required")
		}
		if req.PlagiarismScore == nil {
			verr.Add("plagiarism_score", "is required")
		}
		respondError(c, verr)
		return
	}

	m, err := mc.workflow.RecordScores(c.Request.Context(), c.Param("id"), *req.GrammarScore, *req.PlagiarismScore, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	report := services.EvaluateScores(*m.GrammarScore, *m.PlagiarismScore)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"manuscript": m,
		"scores":     report,
		"passed":     report.Passed(),
	})
}

// RequestRevision flags the manuscript ForRevision and notifies the author.
func (mc *ManuscriptController) RequestRevision(c *gin.Context) {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	m, err := mc.workflow.RequestRevision(c.Request.Context(), c.Param("id"), req.Comment, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// ResubmitAfterRevision clears ForRevision.
func (mc *ManuscriptController) ResubmitAfterRevision(c *gin.Context) {
	m, err := mc.workflow.ResubmitAfterRevision(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// RejectManuscript moves the manuscript to Rejected and notifies the author.
func (mc *ManuscriptController) RejectManuscript(c *gin.Context) {
	var req struct {
		Reason  string `json:"reason"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	m, err := mc.workflow.Reject(c.Request.Context(), c.Param("id"), req.Reason, req.Comment, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// PublishManuscript moves the manuscript to Published and notifies the author.
func (mc *ManuscriptController) PublishManuscript(c *gin.Context) {
	var req services.PublicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	m, err := mc.workflow.Publish(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondManuscript(c, http.StatusOK, m)
}

// ValidatePublication runs the publication field checks without publishing.
func (mc *ManuscriptController) ValidatePublication(c *gin.Context) {
	var req services.PublicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if _, err := services.ValidatePublication(req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "valid": true})
}

func optionalStage(c *gin.Context) (*models.Stage, bool) {
	raw := strings.TrimSpace(c.Query("stage"))
	if raw == "" {
		return nil, true
	}
	stage, err := models.ParseStage(raw)
	if err != nil {
		badRequest(c, "Invalid stage filter")
		return nil, false
	}
	return &stage, true
}

func optionalYear(c *gin.Context) (*int, bool) {
	raw := strings.TrimSpace(c.Query("year"))
	if raw == "" {
		return nil, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		badRequest(c, "Invalid year filter")
		return nil, false
	}
	return &year, true
}

func optionalLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return maxListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		badRequest(c, "Invalid limit")
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
