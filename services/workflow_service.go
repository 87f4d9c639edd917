package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/utils"
)

// Workflow event names, as recorded in history and the notification log.
const (
	EventIntake                = "intake"
	EventAssignEditor          = "assign_editor"
	EventSubmitForReview       = "submit_for_review"
	EventAssignReviewers       = "assign_reviewers"
	EventRecordReviewRating    = "record_review_rating"
	EventAdvanceToProofreading = "advance_to_proofreading"
	EventRecordScores          = "record_scores"
	EventRequestRevision       = "request_revision"
	EventResubmitAfterRevision = "resubmit_after_revision"
	EventAssignLayoutArtist    = "assign_layout_artist"
	EventAssignProofreader     = "assign_proofreader"
	EventReject                = "reject"
	EventPublish               = "publish"
)

const maxFileCodeAttempts = 5

// Actor identifies who requested a transition. Role is the portal role from
// the access token; for reviewers ID is their staff id.
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// actsAsReviewer reports whether the actor can only speak for themselves.
func (a Actor) actsAsReviewer() bool {
	return a.Role == string(models.RoleReviewer)
}

// Label is the value written to the history log.
func (a Actor) Label() string {
	switch {
	case a.Name != "" && a.Email != "":
		return fmt.Sprintf("%s <%s>", a.Name, a.Email)
	case a.Name != "":
		return a.Name
	case a.Email != "":
		return a.Email
	case a.ID != "":
		return a.ID
	}
	return "system"
}

// WorkflowService owns the manuscript state machine. Every transition runs
// under the per-manuscript lock and inside one store transaction that covers
// the record update, the history append and the notification.
type WorkflowService struct {
	repo       ManuscriptRepository
	directory  StaffDirectory
	dispatcher Dispatcher
	locker     Locker
	logger     *zap.Logger
	now        func() time.Time
	lockWait   time.Duration
}

type WorkflowOption func(*WorkflowService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) WorkflowOption {
	return func(s *WorkflowService) { s.now = now }
}

// WithLockWait bounds how long a transition waits for the manuscript lock.
func WithLockWait(d time.Duration) WorkflowOption {
	return func(s *WorkflowService) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

func NewWorkflowService(repo ManuscriptRepository, directory StaffDirectory, dispatcher Dispatcher, locker Locker, logger *zap.Logger, opts ...WorkflowOption) *WorkflowService {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WorkflowService{
		repo:       repo,
		directory:  directory,
		dispatcher: dispatcher,
		locker:     locker,
		logger:     logger,
		now:        time.Now,
		lockWait:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// effect describes what a mutation wants recorded beyond the record itself.
type effect struct {
	comment *string
	notice  noticeKind
}

type mutation func(m *models.Manuscript, now time.Time) (effect, error)

// transition applies mutate to the locked record and persists the result.
// Terminal manuscripts are refused before mutate runs.
func (s *WorkflowService) transition(ctx context.Context, id string, actor Actor, event string, mutate mutation) (*models.Manuscript, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result  *models.Manuscript
		current *models.Manuscript
		sent    *Message
	)
	err = s.repo.Transaction(ctx, func(tx ManuscriptTx) error {
		var err error
		current, err = tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Stage.IsTerminal() {
			return invalidTransition(event, current)
		}

		now := s.timestamp(current)
		next := current.Clone()
		eff, err := mutate(next, now)
		if err != nil {
			return err
		}
		if !current.Stage.CanTransitionTo(next.Stage) {
			return invalidTransition(event, current)
		}

		next.Version = current.Version + 1
		next.UpdatedAt = now
		if err := tx.Update(ctx, next, current.Version); err != nil {
			return err
		}

		entry := &models.ManuscriptHistory{
			ManuscriptID: next.ID,
			Event:        event,
			FromStage:    current.Stage,
			ToStage:      next.Stage,
			FromProgress: current.ProgressStatus,
			ToProgress:   next.ProgressStatus,
			Actor:        actor.Label(),
			Comment:      eff.comment,
			CreatedAt:    now,
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}

		// Dispatch last so that a failed send rolls back everything above.
		if eff.notice != "" {
			msg, err := renderNotice(eff.notice, next)
			if err != nil {
				return err
			}
			if err := tx.LogNotification(ctx, &models.NotificationLog{
				ManuscriptID: next.ID,
				Event:        string(eff.notice),
				Recipients:   msg.Recipients,
				Subject:      msg.Subject,
				SentAt:       now,
			}); err != nil {
				return err
			}
			if err := s.dispatcher.Send(ctx, msg); err != nil {
				return fmt.Errorf("%w: %s notice to %s: %v", ErrNotificationFailed, eff.notice, strings.Join(msg.Recipients, ","), err)
			}
			sent = &msg
		}

		result = next
		return nil
	})
	if err != nil {
		fields := []zap.Field{zap.String("manuscript_id", id), zap.String("event", event), zap.Error(err)}
		if sent != nil {
			// The notice left before the commit failed; the recipients hold a
			// notice for a transition that did not happen.
			s.logger.Error("notice sent but transition not committed",
				append(fields, zap.String("subject", sent.Subject), zap.Strings("recipients", sent.Recipients))...)
			return nil, err
		}
		if current != nil {
			fields = append(fields, zap.String("stage", current.Stage.String()))
		}
		s.logger.Warn("transition rejected", fields...)
		return nil, err
	}

	s.logger.Info("transition committed",
		zap.String("manuscript_id", id),
		zap.String("file_code", result.FileCode),
		zap.String("event", event),
		zap.String("from_stage", current.Stage.String()),
		zap.String("to_stage", result.Stage.String()),
		zap.String("progress", result.ProgressStatus.String()),
		zap.String("actor", actor.Label()),
	)
	return result, nil
}

// timestamp returns a time strictly after the record's last change, so history
// stays totally ordered even when the clock does not advance.
func (s *WorkflowService) timestamp(m *models.Manuscript) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(m.UpdatedAt) {
		now = m.UpdatedAt.Add(time.Microsecond)
	}
	return now
}

// Intake registers a new manuscript in Pre-Review and assigns its file code.
func (s *WorkflowService) Intake(ctx context.Context, req IntakeRequest, actor Actor) (*models.Manuscript, error) {
	req = req.Normalize()
	if err := ValidateIntake(req); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	prefix := fmt.Sprintf("%s-%d-", req.ScopeCode, now.Year())

	count, err := s.repo.CountFileCodes(ctx, prefix)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxFileCodeAttempts; attempt++ {
		m := &models.Manuscript{
			ID:             uuid.NewString(),
			FileCode:       fmt.Sprintf("%s%04d", prefix, count+int64(attempt)+1),
			Title:          req.Title,
			Authors:        req.Authors,
			AuthorEmail:    req.AuthorEmail,
			Scope:          req.Scope,
			ScopeCode:      req.ScopeCode,
			Affiliation:    req.Affiliation,
			Stage:          models.StagePreReview,
			ProgressStatus: models.ProgressInProgress,
			Reviewers:      []models.ReviewerAssignment{},
			DateSubmitted:  now,
			Version:        1,
			UpdatedAt:      now,
		}
		m.FirstAuthor = m.PrimaryAuthor()
		entry := &models.ManuscriptHistory{
			ManuscriptID: m.ID,
			Event:        EventIntake,
			ToStage:      m.Stage,
			ToProgress:   m.ProgressStatus,
			Actor:        actor.Label(),
			CreatedAt:    now,
		}

		err = s.repo.Create(ctx, m, entry)
		if errors.Is(err, ErrDuplicateFileCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info("manuscript received",
			zap.String("manuscript_id", m.ID),
			zap.String("file_code", m.FileCode),
			zap.String("actor", actor.Label()),
		)
		return m, nil
	}
	return nil, fmt.Errorf("could not allocate a file code for %s: %w", prefix, err)
}

// Get returns the current record.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Manuscript, error) {
	return s.repo.FindByID(ctx, id)
}

// History returns the audit trail, oldest first.
func (s *WorkflowService) History(ctx context.Context, id string) ([]models.ManuscriptHistory, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// Notifications returns the notices sent for a manuscript, oldest first.
func (s *WorkflowService) Notifications(ctx context.Context, id string) ([]models.NotificationLog, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Notifications(ctx, id)
}

// AssignEditor sets the single editor. Only allowed during Pre-Review.
func (s *WorkflowService) AssignEditor(ctx context.Context, id, editorID string, actor Actor) (*models.Manuscript, error) {
	editor, err := lookupRole(ctx, s.directory, "editor_id", editorID, models.RoleEditor)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, actor, EventAssignEditor, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StagePreReview {
			return effect{}, invalidTransition(EventAssignEditor, m)
		}
		snap := editor.Snapshot(now)
		m.Editor = &snap
		return effect{}, nil
	})
}

// SubmitForReview moves a Pre-Review manuscript into Double-Blind Review.
func (s *WorkflowService) SubmitForReview(ctx context.Context, id string, actor Actor) (*models.Manuscript, error) {
	return s.transition(ctx, id, actor, EventSubmitForReview, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StagePreReview || m.ProgressStatus == models.ProgressForRevision {
			return effect{}, invalidTransition(EventSubmitForReview, m)
		}
		if m.Editor == nil {
			return effect{}, fieldError("editor", "An editor must be assigned before Double-Blind Review")
		}
		m.Stage = models.StageDoubleBlindReview
		m.ProgressStatus = models.ProgressInProgress
		return effect{}, nil
	})
}

// AssignReviewers replaces the reviewer set. Reviewers kept from the previous
// set keep their ratings; removed reviewers' ratings are discarded.
func (s *WorkflowService) AssignReviewers(ctx context.Context, id string, reviewerIDs []string, actor Actor) (*models.Manuscript, error) {
	ids := utils.SanitizeList(reviewerIDs)
	if len(ids) == 0 {
		return nil, fieldError("reviewer_ids", "At least one reviewer is required")
	}
	seen := make(map[string]struct{}, len(ids))
	members := make([]*models.StaffMember, 0, len(ids))
	for _, rid := range ids {
		if _, dup := seen[rid]; dup {
			return nil, fieldError("reviewer_ids", "Reviewer "+rid+" is listed more than once")
		}
		seen[rid] = struct{}{}
		member, err := lookupRole(ctx, s.directory, "reviewer_ids", rid, models.RoleReviewer)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return s.transition(ctx, id, actor, EventAssignReviewers, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StageDoubleBlindReview {
			return effect{}, invalidTransition(EventAssignReviewers, m)
		}
		next := make([]models.ReviewerAssignment, 0, len(members))
		for _, member := range members {
			if existing := m.Reviewer(member.StaffID); existing != nil {
				next = append(next, *existing)
				continue
			}
			next = append(next, models.ReviewerAssignment{Assignment: member.Snapshot(now)})
		}
		m.Reviewers = next
		return effect{}, nil
	})
}

// RecordReviewRating stores one reviewer's remark, overwriting any earlier one.
// Reviewers may only rate as themselves; staff can enter a rating on a
// reviewer's behalf.
func (s *WorkflowService) RecordReviewRating(ctx context.Context, id, reviewerID, remarkRaw, comment string, actor Actor) (*models.Manuscript, error) {
	remark, err := models.ParseRemark(remarkRaw)
	if err != nil {
		return nil, fieldError("remark", "Remark must be Excellent, Acceptable, Acceptable with Revision or Rejected")
	}
	reviewerID = strings.TrimSpace(reviewerID)
	if actor.actsAsReviewer() {
		if reviewerID == "" {
			reviewerID = actor.ID
		}
		if reviewerID != actor.ID {
			return nil, fmt.Errorf("%w: reviewer %s cannot rate as %s", ErrForbidden, actor.ID, reviewerID)
		}
	}
	comment = utils.SanitizeInput(comment)

	return s.transition(ctx, id, actor, EventRecordReviewRating, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StageDoubleBlindReview {
			return effect{}, invalidTransition(EventRecordReviewRating, m)
		}
		reviewer := m.Reviewer(reviewerID)
		if reviewer == nil {
			return effect{}, fieldError("reviewer_id", "Reviewer is not assigned to this manuscript")
		}
		rated := remark
		reviewer.Remark = &rated
		reviewer.Comment = nil
		if comment != "" {
			c := comment
			reviewer.Comment = &c
		}
		ratedAt := now
		reviewer.RatedAt = &ratedAt
		note := fmt.Sprintf("%s rated %s", reviewer.Name, remark)
		return effect{comment: &note}, nil
	})
}

// AdvanceToProofreading moves a fully reviewed manuscript to Final
// Proofreading, or diverts it into a revision loop when any reviewer asked
// for revisions.
func (s *WorkflowService) AdvanceToProofreading(ctx context.Context, id string, actor Actor) (*models.Manuscript, error) {
	return s.transition(ctx, id, actor, EventAdvanceToProofreading, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StageDoubleBlindReview || m.ProgressStatus == models.ProgressForRevision {
			return effect{}, invalidTransition(EventAdvanceToProofreading, m)
		}
		if len(m.Reviewers) == 0 {
			return effect{}, fmt.Errorf("%w: no reviewers assigned", ErrPendingReviews)
		}

		var pending, rejected []string
		var revisionNotes []string
		needsRevision := false
		for _, r := range m.Reviewers {
			switch {
			case !r.Rated():
				pending = append(pending, r.Name)
			case *r.Remark == models.RemarkRejected:
				rejected = append(rejected, r.Name)
			case *r.Remark == models.RemarkAcceptableWithRevision:
				needsRevision = true
				if r.Comment != nil && *r.Comment != "" {
					revisionNotes = append(revisionNotes, *r.Comment)
				}
			}
		}
		if len(pending) > 0 {
			return effect{}, fmt.Errorf("%w: awaiting %s", ErrPendingReviews, strings.Join(pending, ", "))
		}
		if len(rejected) > 0 {
			return effect{}, fmt.Errorf("%w: rejected by %s", ErrPendingReviews, strings.Join(rejected, ", "))
		}

		if needsRevision {
			comment := "Reviewers accepted the manuscript with revisions."
			if len(revisionNotes) > 0 {
				comment = strings.Join(revisionNotes, "\n")
			}
			m.ProgressStatus = models.ProgressForRevision
			m.RevisionComment = &comment
			return effect{comment: &comment, notice: noticeRevision}, nil
		}

		m.Stage = models.StageFinalProofreading
		m.ProgressStatus = models.ProgressInProgress
		m.RevisionComment = nil
		return effect{}, nil
	})
}

// RecordScores stores one scoring event. In Final Proofreading a failing
// result puts the manuscript into revision; a passing one marks it complete.
func (s *WorkflowService) RecordScores(ctx context.Context, id string, grammar, plagiarism int, actor Actor) (*models.Manuscript, error) {
	if err := ValidateScores(grammar, plagiarism); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, actor, EventRecordScores, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StagePreReview && m.Stage != models.StageFinalProofreading {
			return effect{}, invalidTransition(EventRecordScores, m)
		}
		g, p, at := grammar, plagiarism, now
		m.GrammarScore = &g
		m.PlagiarismScore = &p
		m.ScoredAt = &at

		report := EvaluateScores(grammar, plagiarism)
		note := fmt.Sprintf("grammar %d%%, plagiarism %d%%", grammar, plagiarism)
		if m.Stage != models.StageFinalProofreading {
			return effect{comment: &note}, nil
		}
		if !report.Passed() {
			comment := strings.Join(report.Failures(), "; ")
			m.ProgressStatus = models.ProgressForRevision
			m.RevisionComment = &comment
			return effect{comment: &comment, notice: noticeRevision}, nil
		}
		if m.ProgressStatus != models.ProgressForRevision {
			m.ProgressStatus = models.ProgressCompleted
		}
		return effect{comment: &note}, nil
	})
}

// RequestRevision blocks the current stage on an author revision.
func (s *WorkflowService) RequestRevision(ctx context.Context, id, comment string, actor Actor) (*models.Manuscript, error) {
	comment = utils.SanitizeInput(comment)
	if comment == "" {
		return nil, fieldError("comment", "A revision comment is required")
	}
	return s.transition(ctx, id, actor, EventRequestRevision, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StageDoubleBlindReview && m.Stage != models.StageFinalProofreading {
			return effect{}, invalidTransition(EventRequestRevision, m)
		}
		c := comment
		m.ProgressStatus = models.ProgressForRevision
		m.RevisionComment = &c
		return effect{comment: &c, notice: noticeRevision}, nil
	})
}

// ResubmitAfterRevision closes a revision loop and resumes the current stage.
// In Double-Blind Review the reviewers who asked for revisions must rate the
// revised manuscript again.
func (s *WorkflowService) ResubmitAfterRevision(ctx context.Context, id string, actor Actor) (*models.Manuscript, error) {
	return s.transition(ctx, id, actor, EventResubmitAfterRevision, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.ProgressStatus != models.ProgressForRevision {
			return effect{}, invalidTransition(EventResubmitAfterRevision, m)
		}
		closed := m.RevisionComment
		m.ProgressStatus = models.ProgressInProgress
		m.RevisionComment = nil
		if m.Stage == models.StageDoubleBlindReview {
			for i := range m.Reviewers {
				r := &m.Reviewers[i]
				if r.Remark != nil && *r.Remark == models.RemarkAcceptableWithRevision {
					r.Remark = nil
					r.Comment = nil
					r.RatedAt = nil
				}
			}
		}
		return effect{comment: closed}, nil
	})
}

// AssignLayoutArtist records the layout artist for a manuscript in Final Proofreading.
func (s *WorkflowService) AssignLayoutArtist(ctx context.Context, id, staffID string, actor Actor) (*models.Manuscript, error) {
	member, err := lookupRole(ctx, s.directory, "staff_id", staffID, models.RoleLayoutArtist)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, actor, EventAssignLayoutArtist, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StageFinalProofreading {
			return effect{}, invalidTransition(EventAssignLayoutArtist, m)
		}
		snap := member.Snapshot(now)
		m.LayoutArtist = &snap
		return effect{}, nil
	})
}

// AssignProofreader records the proofreader for a manuscript in Final Proofreading.
func (s *WorkflowService) AssignProofreader(ctx context.Context, id, staffID string, actor Actor) (*models.Manuscript, error) {
	member, err := lookupRole(ctx, s.directory, "staff_id", staffID, models.RoleProofreader)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, actor, EventAssignProofreader, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StageFinalProofreading {
			return effect{}, invalidTransition(EventAssignProofreader, m)
		}
		snap := member.Snapshot(now)
		m.Proofreader = &snap
		return effect{}, nil
	})
}

// Reject ends the workflow from Pre-Review or Double-Blind Review. Manuscripts
// in Final Proofreading can only be revised or published.
func (s *WorkflowService) Reject(ctx context.Context, id, reason, comment string, actor Actor) (*models.Manuscript, error) {
	reason = utils.SanitizeInput(reason)
	comment = utils.SanitizeInput(comment)
	if reason == "" {
		return nil, fieldError("reason", "A rejection reason is required")
	}
	return s.transition(ctx, id, actor, EventReject, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StagePreReview && m.Stage != models.StageDoubleBlindReview {
			return effect{}, invalidTransition(EventReject, m)
		}
		r, at := reason, now
		m.Stage = models.StageRejected
		m.ProgressStatus = models.ProgressRejected
		m.RejectReason = &r
		m.RejectDate = &at
		m.RejectComment = nil
		if comment != "" {
			c := comment
			m.RejectComment = &c
		}
		note := reason
		if comment != "" {
			note = reason + ": " + comment
		}
		return effect{comment: &note, notice: noticeRejection}, nil
	})
}

// Publish finalizes a manuscript. Scores are re-checked here rather than
// trusted from an earlier scoring event.
func (s *WorkflowService) Publish(ctx context.Context, id string, req PublicationRequest, actor Actor) (*models.Manuscript, error) {
	return s.transition(ctx, id, actor, EventPublish, func(m *models.Manuscript, now time.Time) (effect, error) {
		if m.Stage != models.StageFinalProofreading || m.ProgressStatus == models.ProgressForRevision {
			return effect{}, invalidTransition(EventPublish, m)
		}
		if err := CheckScoreGate(m.GrammarScore, m.PlagiarismScore); err != nil {
			return effect{}, err
		}
		pub, err := ValidatePublication(req)
		if err != nil {
			return effect{}, err
		}

		issue, volume, date := pub.IssueNumber, pub.VolumeName, pub.DatePublished
		m.Stage = models.StagePublished
		m.ProgressStatus = models.ProgressPublished
		m.IssueNumber = &issue
		m.IssueName = pub.IssueName
		m.VolumeName = &volume
		m.DatePublished = &date
		m.RevisionComment = nil

		note := fmt.Sprintf("issue %s, %s", issue, volume)
		return effect{comment: &note, notice: noticePublication}, nil
	})
}
