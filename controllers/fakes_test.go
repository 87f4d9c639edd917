package controllers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/services"
)

// stubRepository keeps manuscripts in memory. Writes inside Transaction are
// applied only when fn succeeds.
type stubRepository struct {
	mu          sync.Mutex
	manuscripts map[string]*models.Manuscript
	history     []models.ManuscriptHistory
	notices     []models.NotificationLog
}

func newStubRepository() *stubRepository {
	return &stubRepository{manuscripts: make(map[string]*models.Manuscript)}
}

func (r *stubRepository) Create(_ context.Context, m *models.Manuscript, entry *models.ManuscriptHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.manuscripts {
		if existing.FileCode == m.FileCode {
			return services.ErrDuplicateFileCode
		}
	}
	r.manuscripts[m.ID] = m.Clone()
	if entry != nil {
		r.history = append(r.history, *entry)
	}
	return nil
}

func (r *stubRepository) FindByID(_ context.Context, id string) (*models.Manuscript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.manuscripts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", services.ErrManuscriptNotFound, id)
	}
	return m.Clone(), nil
}

func (r *stubRepository) CountFileCodes(_ context.Context, prefix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.manuscripts {
		if strings.HasPrefix(m.FileCode, prefix) {
			n++
		}
	}
	return n, nil
}

func (r *stubRepository) List(_ context.Context, filter services.ManuscriptFilter) ([]models.Manuscript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term := strings.ToLower(filter.Term)
	var rows []models.Manuscript
	for _, m := range r.manuscripts {
		if filter.Stage != nil && m.Stage != *filter.Stage {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(m.Title), term) {
			continue
		}
		rows = append(rows, *m.Clone())
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FileCode < rows[j].FileCode })
	if filter.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[filter.Offset:]
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}

func (r *stubRepository) History(_ context.Context, id string) ([]models.ManuscriptHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ManuscriptHistory
	for _, h := range r.history {
		if h.ManuscriptID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *stubRepository) Notifications(_ context.Context, id string) ([]models.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NotificationLog
	for _, n := range r.notices {
		if n.ManuscriptID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *stubRepository) Transaction(_ context.Context, fn func(tx services.ManuscriptTx) error) error {
	tx := &stubTx{repo: r}
	if err := fn(tx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range tx.updated {
		r.manuscripts[m.ID] = m
	}
	r.history = append(r.history, tx.history...)
	r.notices = append(r.notices, tx.notices...)
	return nil
}

type stubTx struct {
	repo    *stubRepository
	updated []*models.Manuscript
	history []models.ManuscriptHistory
	notices []models.NotificationLog
}

func (t *stubTx) LockByID(ctx context.Context, id string) (*models.Manuscript, error) {
	return t.repo.FindByID(ctx, id)
}

func (t *stubTx) Update(_ context.Context, m *models.Manuscript, expectedVersion int) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if stored := t.repo.manuscripts[m.ID]; stored == nil || stored.Version != expectedVersion {
		return services.ErrConflict
	}
	t.updated = append(t.updated, m.Clone())
	return nil
}

func (t *stubTx) AppendHistory(_ context.Context, entry *models.ManuscriptHistory) error {
	t.history = append(t.history, *entry)
	return nil
}

func (t *stubTx) LogNotification(_ context.Context, n *models.NotificationLog) error {
	t.notices = append(t.notices, *n)
	return nil
}

type stubDirectory struct {
	mu      sync.Mutex
	members []models.StaffMember
}

func (d *stubDirectory) FindStaff(_ context.Context, id string) (*models.StaffMember, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.members {
		if d.members[i].StaffID == id {
			m := d.members[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", services.ErrStaffNotFound, id)
}

func (d *stubDirectory) ListStaff(_ context.Context, role models.StaffRole) ([]models.StaffMember, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.StaffMember, 0)
	for _, m := range d.members {
		if role == "" || m.Role == role {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *stubDirectory) AddStaff(ctx context.Context, member *models.StaffMember) error {
	if err := services.PrepareStaffMember(member, nowForTests); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members = append(d.members, *member)
	return nil
}

type stubDispatcher struct {
	mu   sync.Mutex
	sent []services.Message
	err  error
}

func (d *stubDispatcher) Send(_ context.Context, msg services.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}
