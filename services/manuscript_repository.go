package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"manuscript-workflow-api/config"
	"manuscript-workflow-api/models"
	"manuscript-workflow-api/utils"
)

// ManuscriptFilter narrows a listing. Zero values mean "no filter".
type ManuscriptFilter struct {
	Stage  *models.Stage
	Year   *int
	Term   string
	Limit  int
	Offset int
}

// ManuscriptRepository is the durable record store: one row per manuscript plus
// an append-only history log keyed by manuscript id.
type ManuscriptRepository interface {
	Create(ctx context.Context, m *models.Manuscript, entry *models.ManuscriptHistory) error
	FindByID(ctx context.Context, id string) (*models.Manuscript, error)
	CountFileCodes(ctx context.Context, prefix string) (int64, error)
	List(ctx context.Context, filter ManuscriptFilter) ([]models.Manuscript, error)
	History(ctx context.Context, id string) ([]models.ManuscriptHistory, error)
	Notifications(ctx context.Context, id string) ([]models.NotificationLog, error)
	// Transaction runs fn atomically: either everything fn wrote is
	// committed, or nothing is.
	Transaction(ctx context.Context, fn func(tx ManuscriptTx) error) error
}

// ManuscriptTx is the write surface available inside a transaction.
type ManuscriptTx interface {
	LockByID(ctx context.Context, id string) (*models.Manuscript, error)
	Update(ctx context.Context, m *models.Manuscript, expectedVersion int) error
	AppendHistory(ctx context.Context, entry *models.ManuscriptHistory) error
	LogNotification(ctx context.Context, n *models.NotificationLog) error
}

// YearColumn is the date a stage listing is bucketed by.
func YearColumn(stage *models.Stage) string {
	if stage == nil {
		return "date_submitted"
	}
	switch *stage {
	case models.StageRejected:
		return "reject_date"
	case models.StagePublished:
		return "date_published"
	}
	return "date_submitted"
}

// GormManuscriptRepository stores manuscripts in MySQL through gorm.
type GormManuscriptRepository struct {
	db *gorm.DB
}

func NewManuscriptRepository(db *gorm.DB) *GormManuscriptRepository {
	if db == nil {
		db = config.DB
	}
	return &GormManuscriptRepository{db: db}
}

func (r *GormManuscriptRepository) Create(ctx context.Context, m *models.Manuscript, entry *models.ManuscriptHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrDuplicateFileCode, m.FileCode)
			}
			return fmt.Errorf("failed to create manuscript: %w", err)
		}
		if entry != nil {
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to log manuscript history: %w", err)
			}
		}
		return nil
	})
}

func (r *GormManuscriptRepository) FindByID(ctx context.Context, id string) (*models.Manuscript, error) {
	var m models.Manuscript
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManuscriptNotFound
		}
		return nil, fmt.Errorf("failed to load manuscript: %w", err)
	}
	return &m, nil
}

func (r *GormManuscriptRepository) CountFileCodes(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Manuscript{}).
		Where("file_code LIKE ?", escapeLike(prefix)+"%").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count file codes: %w", err)
	}
	return count, nil
}

func (r *GormManuscriptRepository) List(ctx context.Context, filter ManuscriptFilter) ([]models.Manuscript, error) {
	q := r.db.WithContext(ctx).Model(&models.Manuscript{})

	if filter.Stage != nil {
		q = q.Where("stage = ?", *filter.Stage)
	}
	if filter.Year != nil {
		start, end := utils.YearBounds(*filter.Year)
		col := YearColumn(filter.Stage)
		q = q.Where(col+" >= ? AND "+col+" < ?", start, end)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Term)); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where(
			"LOWER(title) LIKE ? OR LOWER(scope) LIKE ? OR LOWER(scope_code) LIKE ? OR LOWER(file_code) LIKE ? OR LOWER(first_author) LIKE ?",
			like, like, like, like, like,
		)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []models.Manuscript
	if err := q.Order("date_submitted DESC, file_code ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list manuscripts: %w", err)
	}
	return rows, nil
}

func (r *GormManuscriptRepository) History(ctx context.Context, id string) ([]models.ManuscriptHistory, error) {
	var rows []models.ManuscriptHistory
	err := r.db.WithContext(ctx).
		Where("manuscript_id = ?", id).
		Order("created_at ASC, history_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load manuscript history: %w", err)
	}
	return rows, nil
}

func (r *GormManuscriptRepository) Notifications(ctx context.Context, id string) ([]models.NotificationLog, error) {
	var rows []models.NotificationLog
	err := r.db.WithContext(ctx).
		Where("manuscript_id = ?", id).
		Order("sent_at ASC, notification_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load notification log: %w", err)
	}
	return rows, nil
}

func (r *GormManuscriptRepository) Transaction(ctx context.Context, fn func(tx ManuscriptTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormManuscriptTx{tx: tx})
	})
}

type gormManuscriptTx struct {
	tx *gorm.DB
}

func (t *gormManuscriptTx) LockByID(ctx context.Context, id string) (*models.Manuscript, error) {
	var m models.Manuscript
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManuscriptNotFound
		}
		return nil, fmt.Errorf("failed to lock manuscript: %w", err)
	}
	return &m, nil
}

// Update writes every column of m, guarded by an optimistic version check.
func (t *gormManuscriptTx) Update(ctx context.Context, m *models.Manuscript, expectedVersion int) error {
	m.FirstAuthor = m.PrimaryAuthor()
	res := t.tx.WithContext(ctx).
		Model(m).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("id", "file_code", "date_submitted").
		Updates(m)
	if res.Error != nil {
		return fmt.Errorf("failed to update manuscript: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (t *gormManuscriptTx) AppendHistory(ctx context.Context, entry *models.ManuscriptHistory) error {
	if err := t.tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log manuscript history: %w", err)
	}
	return nil
}

func (t *gormManuscriptTx) LogNotification(ctx context.Context, n *models.NotificationLog) error {
	if err := t.tx.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to log notification: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
