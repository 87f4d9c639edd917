package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"manuscript-workflow-api/middleware"
	"manuscript-workflow-api/models"
	"manuscript-workflow-api/services"
)

var nowForTests = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router     *gin.Engine
	repo       *stubRepository
	directory  *stubDirectory
	dispatcher *stubDispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newStubRepository()
	directory := &stubDirectory{members: []models.StaffMember{
		{StaffID: "ed-1", Name: "Erin", Email: "erin@press.test", Role: models.RoleEditor},
		{StaffID: "rev-1", Name: "Ravi", Email: "ravi@press.test", Role: models.RoleReviewer},
		{StaffID: "rev-2", Name: "Rosa", Email: "rosa@press.test", Role: models.RoleReviewer},
	}}
	dispatcher := &stubDispatcher{}

	clock := nowForTests
	workflow := services.NewWorkflowService(repo, directory, dispatcher, nil, nil,
		services.WithClock(func() time.Time { return clock }),
	)
	query := services.NewQueryService(repo, 10)
	mc := NewManuscriptController(workflow, query, services.NewExportService(query, nil))
	sc := NewStaffController(directory)

	r := gin.New()
	// Stands in for AuthMiddleware. X-Test-User / X-Test-Role override the director.
	r.Use(func(c *gin.Context) {
		userID, role := "u-1", middleware.RoleDirector
		if v := c.GetHeader("X-Test-User"); v != "" {
			userID = v
		}
		if v := c.GetHeader("X-Test-Role"); v != "" {
			role = v
		}
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextName, "Dana Director")
		c.Set(middleware.ContextEmail, "dana@press.test")
		c.Set(middleware.ContextRole, role)
		c.Next()
	})
	m := r.Group("/manuscripts")
	m.GET("", mc.ListManuscripts)
	m.GET("/export", mc.ExportManuscripts)
	m.POST("/validate-publication", mc.ValidatePublication)
	m.POST("", mc.CreateManuscript)
	m.GET("/:id", mc.GetManuscript)
	m.GET("/:id/history", mc.GetManuscriptHistory)
	m.PUT("/:id/editor", mc.AssignEditor)
	m.POST("/:id/submit-for-review", mc.SubmitForReview)
	m.PUT("/:id/reviewers", mc.AssignReviewers)
	m.POST("/:id/ratings", mc.RecordReviewRating)
	m.PUT("/:id/reviewers/:reviewerId/rating", mc.RecordReviewRating)
	m.POST("/:id/scores", mc.RecordScores)
	m.POST("/:id/reject", mc.RejectManuscript)
	r.GET("/staff", sc.ListStaff)
	r.POST("/staff", sc.CreateStaff)

	return &testServer{router: r, repo: repo, directory: directory, dispatcher: dispatcher}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, "", "", method, path, body)
}

// doAs sends the request as userID with role; empty values keep the default director.
func (s *testServer) doAs(t *testing.T, userID, role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) createManuscript(t *testing.T, title string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/manuscripts", services.IntakeRequest{
		Title:       title,
		Authors:     []string{"Ana Author"},
		AuthorEmail: "ana@u.test",
		Scope:       "Life Sciences",
		ScopeCode:   "BIO",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode(t, w)["manuscript"].(map[string]any)
	return m["id"].(string)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{}, http.StatusUnprocessableEntity, codeValidation},
		{fmt.Errorf("wrap: %w", services.ErrManuscriptNotFound), http.StatusNotFound, codeNotFound},
		{services.ErrStaffNotFound, http.StatusNotFound, codeNotFound},
		{fmt.Errorf("wrap: %w", services.ErrForbidden), http.StatusForbidden, codeForbidden},
		{services.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
		{services.ErrPendingReviews, http.StatusConflict, codePendingReviews},
		{services.ErrConflict, http.StatusConflict, codeConflict},
		{services.ErrDuplicateFileCode, http.StatusConflict, codeConflict},
		{services.ErrScoreGateFailed, http.StatusUnprocessableEntity, codeScoreGate},
		{services.ErrNotificationFailed, http.StatusBadGateway, codeNotificationFailed},
		{errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}
	for _, tc := range cases {
		status, code := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestCreateAndGetManuscript(t *testing.T) {
	s := newTestServer(t)
	id := s.createManuscript(t, "Soil Microbiome")

	w := s.do(t, http.MethodGet, "/manuscripts/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w)["manuscript"].(map[string]any)
	assert.Equal(t, "BIO-2024-0001", m["file_code"])
	assert.Equal(t, string(models.StagePreReview), m["stage"])

	w = s.do(t, http.MethodGet, "/manuscripts/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])
}

func TestCreateManuscriptValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/manuscripts", services.IntakeRequest{Title: "Untitled"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, codeValidation, body["code"])
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "authors")
	assert.Contains(t, fields, "scope_code")

	req := httptest.NewRequest(http.MethodPost, "/manuscripts", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetManuscriptNotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/manuscripts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeNotFound, decode(t, w)["code"])
}

func TestSubmitForReviewWithoutEditor(t *testing.T) {
	s := newTestServer(t)
	id := s.createManuscript(t, "Soil Microbiome")

	w := s.do(t, http.MethodPost, "/manuscripts/"+id+"/submit-for-review", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPut, "/manuscripts/"+id+"/editor", gin.H{"staff_id": "ed-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/manuscripts/"+id+"/submit-for-review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w)["manuscript"].(map[string]any)
	assert.Equal(t, string(models.StageDoubleBlindReview), m["stage"])

	w = s.do(t, http.MethodPost, "/manuscripts/"+id+"/submit-for-review", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, codeInvalidTransition, decode(t, w)["code"])
}

func TestAssignEditorRequiresStaffID(t *testing.T) {
	s := newTestServer(t)
	id := s.createManuscript(t, "Soil Microbiome")

	w := s.do(t, http.MethodPut, "/manuscripts/"+id+"/editor", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListManuscripts(t *testing.T) {
	s := newTestServer(t)
	s.createManuscript(t, "Soil Microbiome")
	s.createManuscript(t, "Coral Bleaching")
	s.createManuscript(t, "Soil Carbon")

	w := s.do(t, http.MethodGet, "/manuscripts", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/manuscripts?stage=Nowhere", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/manuscripts?stage=Pre-Review&year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/manuscripts?stage=Pre-Review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/manuscripts?stage=Pre-Review&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/manuscripts?q=soil", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/manuscripts?q=soil&stage=Published", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["total"])
}

func TestExportManuscripts(t *testing.T) {
	s := newTestServer(t)
	s.createManuscript(t, "Soil Microbiome")

	w := s.do(t, http.MethodGet, "/manuscripts/export", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/manuscripts/export?stage=Pre-Review&year=2024", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "manuscripts_pre-review_2024.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Pre-Review")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Soil Microbiome", rows[1][1])
}

func TestValidatePublicationEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/manuscripts/validate-publication", services.PublicationRequest{
		IssueNumber: "1", VolumeName: "Volume 3", DatePublished: "2024-06-01",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["valid"])

	w = s.do(t, http.MethodPost, "/manuscripts/validate-publication", services.PublicationRequest{
		IssueNumber: string(models.IssueSpecial), DatePublished: "06/01/2024",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "issue_name")
	assert.Contains(t, fields, "volume_name")
	assert.Contains(t, fields, "date_published")
}

func TestRecordScoresEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createManuscript(t, "Soil Microbiome")

	w := s.do(t, http.MethodPost, "/manuscripts/"+id+"/scores", gin.H{"grammar_score": 90})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "plagiarism_score")

	w = s.do(t, http.MethodPost, "/manuscripts/"+id+"/scores", gin.H{"grammar_score": 90, "plagiarism_score": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["passed"])
	scores := body["scores"].(map[string]any)
	assert.EqualValues(t, 90, scores["grammar_score"])
}

func TestRejectEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createManuscript(t, "Soil Microbiome")

	w := s.do(t, http.MethodPost, "/manuscripts/"+id+"/reject", gin.H{"reason": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "reason")

	w = s.do(t, http.MethodPost, "/manuscripts/"+id+"/reject", gin.H{"reason": "Out of scope"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.dispatcher.sent, 1)

	s.dispatcher.err = errors.New("relay down")
	other := s.createManuscript(t, "Coral Bleaching")
	w = s.do(t, http.MethodPost, "/manuscripts/"+other+"/reject", gin.H{"reason": "Out of scope"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = s.do(t, http.MethodGet, "/manuscripts/"+other, nil)
	m := decode(t, w)["manuscript"].(map[string]any)
	assert.Equal(t, string(models.StagePreReview), m["stage"], "failed notice leaves the manuscript untouched")
}

func TestStaffEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/staff?role=typesetter", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/staff", gin.H{"name": "Ravi", "email": "ravi@press.test", "role": "reviewer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/staff", gin.H{"name": "", "email": "x", "role": "reviewer"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodGet, "/staff?role=reviewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/staff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])
}

func TestReviewerCanOnlyRateAsThemselves(t *testing.T) {
	s := newTestServer(t)
	id := s.createManuscript(t, "Soil Microbiome")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/manuscripts/"+id+"/editor", gin.H{"staff_id": "ed-1"}).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/manuscripts/"+id+"/submit-for-review", nil).Code)
	w := s.do(t, http.MethodPut, "/manuscripts/"+id+"/reviewers", gin.H{"reviewer_ids": []string{"rev-1", "rev-2"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doAs(t, "rev-2", middleware.RoleReviewer, http.MethodPost, "/manuscripts/"+id+"/ratings", gin.H{"remark": "Rejected"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doAs(t, "rev-1", middleware.RoleReviewer, http.MethodPut, "/manuscripts/"+id+"/reviewers/rev-2/rating", gin.H{"remark": "Excellent"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, codeForbidden, decode(t, w)["code"])

	// Staff may still enter a rating on a reviewer's behalf.
	w = s.doAs(t, "u-9", middleware.RoleStaff, http.MethodPost, "/manuscripts/"+id+"/ratings", gin.H{"reviewer_id": "rev-1", "remark": "Acceptable"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := s.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	remarks := map[string]models.Remark{}
	for _, r := range got.Reviewers {
		if r.Remark != nil {
			remarks[r.StaffID] = *r.Remark
		}
	}
	assert.Equal(t, models.RemarkRejected, remarks["rev-2"])
	assert.Equal(t, models.RemarkAcceptable, remarks["rev-1"])
}
