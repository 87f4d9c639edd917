package models

import (
	"fmt"
	"strings"
)

// Stage is the top-level position of a manuscript in the publication pipeline.
type Stage string

const (
	StagePreReview         Stage = "Pre-Review"
	StageDoubleBlindReview Stage = "Double-Blind Review"
	StageFinalProofreading Stage = "Final Proofreading"
	StagePublished         Stage = "Published"
	StageRejected          Stage = "Rejected"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StagePreReview,
	StageDoubleBlindReview,
	StageFinalProofreading,
	StagePublished,
	StageRejected,
}

// StageTransitions holds the legal stage edges. Self edges cover actions that
// mutate a manuscript without moving it (assignments, ratings, revision loops).
var StageTransitions = map[Stage][]Stage{
	StagePreReview:         {StagePreReview, StageDoubleBlindReview, StageRejected},
	StageDoubleBlindReview: {StageDoubleBlindReview, StageFinalProofreading, StageRejected},
	StageFinalProofreading: {StageFinalProofreading, StagePublished},
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s Stage) CanTransitionTo(target Stage) bool {
	for _, valid := range StageTransitions[s] {
		if valid == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (s Stage) IsTerminal() bool {
	return s == StagePublished || s == StageRejected
}

func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

func (s Stage) String() string { return string(s) }

var stageAliases = map[string]Stage{
	"pre-review":          StagePreReview,
	"prereview":           StagePreReview,
	"pre_review":          StagePreReview,
	"double-blind review": StageDoubleBlindReview,
	"double-blind":        StageDoubleBlindReview,
	"double_blind_review": StageDoubleBlindReview,
	"review":              StageDoubleBlindReview,
	"final proofreading":  StageFinalProofreading,
	"final_proofreading":  StageFinalProofreading,
	"proofreading":        StageFinalProofreading,
	"published":           StagePublished,
	"rejected":            StageRejected,
}

// ParseStage resolves a stage from its label or a known alias.
func ParseStage(raw string) (Stage, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if stage, ok := stageAliases[key]; ok {
		return stage, nil
	}
	return "", fmt.Errorf("unknown stage %q", raw)
}

// ProgressStatus tracks whether the current stage is blocked on a revision loop.
type ProgressStatus string

const (
	ProgressInProgress  ProgressStatus = "In Progress"
	ProgressForRevision ProgressStatus = "For Revision"
	ProgressRevised     ProgressStatus = "Revised"
	ProgressCompleted   ProgressStatus = "Completed"
	ProgressPublished   ProgressStatus = "Published"
	ProgressRejected    ProgressStatus = "Rejected"
)

func (p ProgressStatus) String() string { return string(p) }

// Remark is a reviewer's verdict during Double-Blind Review.
type Remark string

const (
	RemarkExcellent              Remark = "Excellent"
	RemarkAcceptable             Remark = "Acceptable"
	RemarkAcceptableWithRevision Remark = "Acceptable with Revision"
	RemarkRejected               Remark = "Rejected"
)

var remarkAliases = map[string]Remark{
	"excellent":                RemarkExcellent,
	"acceptable":               RemarkAcceptable,
	"acceptable with revision": RemarkAcceptableWithRevision,
	"acceptablewithrevision":   RemarkAcceptableWithRevision,
	"acceptable_with_revision": RemarkAcceptableWithRevision,
	"rejected":                 RemarkRejected,
}

// ParseRemark resolves a remark from its label or a known alias.
func ParseRemark(raw string) (Remark, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if remark, ok := remarkAliases[key]; ok {
		return remark, nil
	}
	return "", fmt.Errorf("unknown remark %q", raw)
}

// IssueNumber is one of the fixed journal issue slots.
type IssueNumber string

const (
	IssueOne     IssueNumber = "1"
	IssueTwo     IssueNumber = "2"
	IssueSpecial IssueNumber = "Special Issue"
)

// IssueNumbers lists the accepted issue options.
var IssueNumbers = []IssueNumber{IssueOne, IssueTwo, IssueSpecial}

func (n IssueNumber) Valid() bool {
	for _, known := range IssueNumbers {
		if n == known {
			return true
		}
	}
	return false
}

// StaffRole names the directory role a staff member can be assigned under.
type StaffRole string

const (
	RoleEditor       StaffRole = "editor"
	RoleReviewer     StaffRole = "reviewer"
	RoleLayoutArtist StaffRole = "layout_artist"
	RoleProofreader  StaffRole = "proofreader"
)

func (r StaffRole) Valid() bool {
	switch r {
	case RoleEditor, RoleReviewer, RoleLayoutArtist, RoleProofreader:
		return true
	}
	return false
}
