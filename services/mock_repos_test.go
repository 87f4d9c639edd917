package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/utils"
)

// memoryRepository is an in-memory ManuscriptRepository. Transactions run
// concurrently; their writes are staged and applied only when fn returns nil
// and every updated record still has the version the transaction read.
type memoryRepository struct {
	mu            sync.RWMutex
	manuscripts   map[string]*models.Manuscript
	history       []models.ManuscriptHistory
	notifications []models.NotificationLog
	nextHistoryID uint

	// failUpdate, when set, is returned from the next tx.Update call.
	failUpdate error
	// failCommit, when set, is returned once fn has succeeded, before any
	// staged write is applied.
	failCommit error
	listCalls  int
	// onLockByID, when set, runs at the start of every tx.LockByID call.
	onLockByID func(id string)
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{manuscripts: make(map[string]*models.Manuscript)}
}

func (r *memoryRepository) Create(_ context.Context, m *models.Manuscript, entry *models.ManuscriptHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.manuscripts {
		if existing.FileCode == m.FileCode {
			return fmt.Errorf("%w: %s", ErrDuplicateFileCode, m.FileCode)
		}
	}
	r.manuscripts[m.ID] = m.Clone()
	if entry != nil {
		r.appendHistoryLocked(*entry)
	}
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (*models.Manuscript, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manuscripts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrManuscriptNotFound, id)
	}
	return m.Clone(), nil
}

func (r *memoryRepository) CountFileCodes(_ context.Context, prefix string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.manuscripts {
		if strings.HasPrefix(m.FileCode, prefix) {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) List(_ context.Context, filter ManuscriptFilter) ([]models.Manuscript, error) {
	r.mu.Lock()
	r.listCalls++
	r.mu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.Term))
	var rows []models.Manuscript
	for _, m := range r.manuscripts {
		if filter.Stage != nil && m.Stage != *filter.Stage {
			continue
		}
		if filter.Year != nil {
			start, end := utils.YearBounds(*filter.Year)
			d := yearDate(m, filter.Stage)
			if d == nil || d.Before(start) || !d.Before(end) {
				continue
			}
		}
		if term != "" && !matchesTerm(m, term) {
			continue
		}
		rows = append(rows, *m.Clone())
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DateSubmitted.Equal(rows[j].DateSubmitted) {
			return rows[i].DateSubmitted.After(rows[j].DateSubmitted)
		}
		return rows[i].FileCode < rows[j].FileCode
	})

	if filter.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[filter.Offset:]
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}

func yearDate(m *models.Manuscript, stage *models.Stage) *time.Time {
	switch YearColumn(stage) {
	case "reject_date":
		return m.RejectDate
	case "date_published":
		return m.DatePublished
	}
	d := m.DateSubmitted
	return &d
}

func matchesTerm(m *models.Manuscript, term string) bool {
	for _, field := range []string{m.Title, m.Scope, m.ScopeCode, m.FileCode, m.PrimaryAuthor()} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (r *memoryRepository) History(_ context.Context, id string) ([]models.ManuscriptHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ManuscriptHistory
	for _, h := range r.history {
		if h.ManuscriptID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memoryRepository) Notifications(_ context.Context, id string) ([]models.NotificationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.NotificationLog
	for _, n := range r.notifications {
		if n.ManuscriptID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memoryRepository) Transaction(_ context.Context, fn func(tx ManuscriptTx) error) error {
	tx := &memoryTx{
		repo:     r,
		updated:  make(map[string]*models.Manuscript),
		expected: make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failCommit; err != nil {
		r.failCommit = nil
		return err
	}
	for id, version := range tx.expected {
		if stored, ok := r.manuscripts[id]; !ok || stored.Version != version {
			return fmt.Errorf("%w: %s changed during transaction", ErrConflict, id)
		}
	}
	for id, m := range tx.updated {
		r.manuscripts[id] = m
	}
	for _, h := range tx.history {
		r.appendHistoryLocked(h)
	}
	for _, n := range tx.notifications {
		n.NotificationID = uint(len(r.notifications) + 1)
		r.notifications = append(r.notifications, n)
	}
	return nil
}

func (r *memoryRepository) appendHistoryLocked(h models.ManuscriptHistory) {
	r.nextHistoryID++
	h.HistoryID = r.nextHistoryID
	r.history = append(r.history, h)
}

// put stores m directly, bypassing the workflow. Used to set up fixtures.
func (r *memoryRepository) put(m *models.Manuscript) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manuscripts[m.ID] = m.Clone()
}

func (r *memoryRepository) historyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

func (r *memoryRepository) notificationCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifications)
}

type memoryTx struct {
	repo          *memoryRepository
	updated       map[string]*models.Manuscript
	expected      map[string]int
	history       []models.ManuscriptHistory
	notifications []models.NotificationLog
}

func (t *memoryTx) LockByID(ctx context.Context, id string) (*models.Manuscript, error) {
	if hook := t.repo.onLockByID; hook != nil {
		hook(id)
	}
	if m, ok := t.updated[id]; ok {
		return m.Clone(), nil
	}
	return t.repo.FindByID(ctx, id)
}

func (t *memoryTx) Update(_ context.Context, m *models.Manuscript, expectedVersion int) error {
	t.repo.mu.Lock()
	if err := t.repo.failUpdate; err != nil {
		t.repo.failUpdate = nil
		t.repo.mu.Unlock()
		return err
	}
	stored, ok := t.repo.manuscripts[m.ID]
	t.repo.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrManuscriptNotFound, m.ID)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: expected version %d", ErrConflict, expectedVersion)
	}
	if _, seen := t.expected[m.ID]; !seen {
		t.expected[m.ID] = expectedVersion
	}
	t.updated[m.ID] = m.Clone()
	return nil
}

func (t *memoryTx) AppendHistory(_ context.Context, entry *models.ManuscriptHistory) error {
	t.history = append(t.history, *entry)
	return nil
}

func (t *memoryTx) LogNotification(_ context.Context, n *models.NotificationLog) error {
	t.notifications = append(t.notifications, *n)
	return nil
}

// memoryDirectory is an in-memory StaffDirectory.
type memoryDirectory struct {
	mu      sync.RWMutex
	members map[string]models.StaffMember
}

func newMemoryDirectory(members ...models.StaffMember) *memoryDirectory {
	d := &memoryDirectory{members: make(map[string]models.StaffMember)}
	for _, m := range members {
		d.members[m.StaffID] = m
	}
	return d
}

func (d *memoryDirectory) FindStaff(_ context.Context, id string) (*models.StaffMember, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStaffNotFound, id)
	}
	return &m, nil
}

func (d *memoryDirectory) ListStaff(_ context.Context, role models.StaffRole) ([]models.StaffMember, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.StaffMember
	for _, m := range d.members {
		if role == "" || m.Role == role {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *memoryDirectory) AddStaff(_ context.Context, member *models.StaffMember) error {
	if err := PrepareStaffMember(member, time.Now()); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[member.StaffID] = *member
	return nil
}

// recordingDispatcher captures every message and can be told to fail.
type recordingDispatcher struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

var errMailDown = errors.New("smtp relay unavailable")

func (d *recordingDispatcher) Send(_ context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.messages = append(d.messages, msg)
	return nil
}

func (d *recordingDispatcher) sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Message, len(d.messages))
	copy(out, d.messages)
	return out
}

func (d *recordingDispatcher) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}
