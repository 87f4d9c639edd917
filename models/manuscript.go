package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Assignment is a name/email snapshot of a staff member taken at assignment time.
type Assignment struct {
	StaffID    string    `json:"staff_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ReviewerAssignment is an assigned reviewer plus the rating they gave, if any.
type ReviewerAssignment struct {
	Assignment
	Remark  *Remark    `json:"remark,omitempty"`
	Comment *string    `json:"comment,omitempty"`
	RatedAt *time.Time `json:"rated_at,omitempty"`
}

// Rated reports whether the reviewer has submitted a remark.
func (r ReviewerAssignment) Rated() bool { return r.Remark != nil }

// Manuscript is the central workflow record.
type Manuscript struct {
	ID          string   `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	FileCode    string   `gorm:"column:file_code;type:varchar(64);uniqueIndex" json:"file_code"`
	Title       string   `gorm:"column:title;type:varchar(500)" json:"title"`
	Authors     []string `gorm:"column:authors;serializer:json" json:"authors"`
	FirstAuthor string   `gorm:"column:first_author;type:varchar(255)" json:"-"`
	AuthorEmail string   `gorm:"column:author_email" json:"author_email"`
	Scope       string   `gorm:"column:scope" json:"scope"`
	ScopeCode   string   `gorm:"column:scope_code" json:"scope_code"`
	Affiliation string   `gorm:"column:affiliation" json:"affiliation"`

	Stage          Stage          `gorm:"column:stage;index" json:"stage"`
	ProgressStatus ProgressStatus `gorm:"column:progress_status" json:"progress_status"`

	Editor       *Assignment          `gorm:"column:editor;serializer:json" json:"editor,omitempty"`
	Reviewers    []ReviewerAssignment `gorm:"column:reviewers;serializer:json" json:"reviewers"`
	LayoutArtist *Assignment          `gorm:"column:layout_artist;serializer:json" json:"layout_artist,omitempty"`
	Proofreader  *Assignment          `gorm:"column:proofreader;serializer:json" json:"proofreader,omitempty"`

	GrammarScore    *int       `gorm:"column:grammar_score" json:"grammar_score"`
	PlagiarismScore *int       `gorm:"column:plagiarism_score" json:"plagiarism_score"`
	ScoredAt        *time.Time `gorm:"column:scored_at" json:"scored_at,omitempty"`

	RevisionComment *string `gorm:"column:revision_comment;type:text" json:"revision_comment,omitempty"`

	RejectReason  *string    `gorm:"column:reject_reason" json:"reject_reason,omitempty"`
	RejectComment *string    `gorm:"column:reject_comment;type:text" json:"reject_comment,omitempty"`
	RejectDate    *time.Time `gorm:"column:reject_date" json:"reject_date,omitempty"`

	IssueNumber   *IssueNumber `gorm:"column:issue_number" json:"issue_number,omitempty"`
	IssueName     *string      `gorm:"column:issue_name" json:"issue_name,omitempty"`
	VolumeName    *string      `gorm:"column:volume_name" json:"volume_name,omitempty"`
	DatePublished *time.Time   `gorm:"column:date_published;type:date" json:"date_published,omitempty"`

	DateSubmitted time.Time `gorm:"column:date_submitted" json:"date_submitted"`
	Version       int       `gorm:"column:version" json:"version"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Manuscript) TableName() string { return "manuscripts" }

// BeforeSave keeps the denormalized first author column in sync for search.
func (m *Manuscript) BeforeSave(tx *gorm.DB) error {
	m.FirstAuthor = m.PrimaryAuthor()
	return nil
}

// PrimaryAuthor returns the first listed author.
func (m *Manuscript) PrimaryAuthor() string {
	if len(m.Authors) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Authors[0])
}

// Reviewer returns the assignment for staffID, or nil when not assigned.
func (m *Manuscript) Reviewer(staffID string) *ReviewerAssignment {
	for i := range m.Reviewers {
		if m.Reviewers[i].StaffID == staffID {
			return &m.Reviewers[i]
		}
	}
	return nil
}

// Clone returns a deep copy so a caller can mutate without touching the original.
func (m *Manuscript) Clone() *Manuscript {
	if m == nil {
		return nil
	}
	c := *m
	c.Authors = append([]string(nil), m.Authors...)
	c.Editor = cloneAssignment(m.Editor)
	c.LayoutArtist = cloneAssignment(m.LayoutArtist)
	c.Proofreader = cloneAssignment(m.Proofreader)
	if m.Reviewers != nil {
		c.Reviewers = make([]ReviewerAssignment, len(m.Reviewers))
		for i, r := range m.Reviewers {
			cp := r
			cp.Remark = clonePtr(r.Remark)
			cp.Comment = clonePtr(r.Comment)
			cp.RatedAt = clonePtr(r.RatedAt)
			c.Reviewers[i] = cp
		}
	}
	c.GrammarScore = clonePtr(m.GrammarScore)
	c.PlagiarismScore = clonePtr(m.PlagiarismScore)
	c.ScoredAt = clonePtr(m.ScoredAt)
	c.RevisionComment = clonePtr(m.RevisionComment)
	c.RejectReason = clonePtr(m.RejectReason)
	c.RejectComment = clonePtr(m.RejectComment)
	c.RejectDate = clonePtr(m.RejectDate)
	c.IssueNumber = clonePtr(m.IssueNumber)
	c.IssueName = clonePtr(m.IssueName)
	c.VolumeName = clonePtr(m.VolumeName)
	c.DatePublished = clonePtr(m.DatePublished)
	return &c
}

func cloneAssignment(a *Assignment) *Assignment {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// ManuscriptSummary is the row shape used by listings.
type ManuscriptSummary struct {
	ID             string         `json:"id"`
	FileCode       string         `json:"file_code"`
	Title          string         `json:"title"`
	Scope          string         `json:"scope"`
	ScopeCode      string         `json:"scope_code"`
	FirstAuthor    string         `json:"first_author"`
	Stage          Stage          `json:"stage"`
	ProgressStatus ProgressStatus `json:"progress_status"`
	DateSubmitted  time.Time      `json:"date_submitted"`
	RejectDate     *time.Time     `json:"reject_date,omitempty"`
	DatePublished  *time.Time     `json:"date_published,omitempty"`
}

// Summary projects the listing fields.
func (m *Manuscript) Summary() ManuscriptSummary {
	return ManuscriptSummary{
		ID:             m.ID,
		FileCode:       m.FileCode,
		Title:          m.Title,
		Scope:          m.Scope,
		ScopeCode:      m.ScopeCode,
		FirstAuthor:    m.PrimaryAuthor(),
		Stage:          m.Stage,
		ProgressStatus: m.ProgressStatus,
		DateSubmitted:  m.DateSubmitted,
		RejectDate:     m.RejectDate,
		DatePublished:  m.DatePublished,
	}
}
