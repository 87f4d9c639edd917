package services

import (
	"context"
	"iter"

	"manuscript-workflow-api/models"
)

const defaultPageSize = 100

// QueryService is the read side. It never mutates a record.
type QueryService struct {
	repo     ManuscriptRepository
	pageSize int
}

func NewQueryService(repo ManuscriptRepository, pageSize int) *QueryService {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &QueryService{repo: repo, pageSize: pageSize}
}

// ListByStage yields the manuscripts in stage, newest submission first. When
// year is set, Rejected is bucketed by reject date, Published by publication
// date and every other stage by submission date.
func (q *QueryService) ListByStage(ctx context.Context, stage models.Stage, year *int) iter.Seq2[models.ManuscriptSummary, error] {
	return q.scan(ctx, ManuscriptFilter{Stage: &stage, Year: year})
}

// Search yields manuscripts whose title, scope, scope code, file code or first
// author contains term, case-insensitively. Stage and year narrow it further
// when set.
func (q *QueryService) Search(ctx context.Context, term string, stage *models.Stage, year *int) iter.Seq2[models.ManuscriptSummary, error] {
	return q.scan(ctx, ManuscriptFilter{Stage: stage, Year: year, Term: term})
}

// scan pages through the store lazily. Each range over the returned sequence
// starts a fresh scan, so the sequence can be restarted.
func (q *QueryService) scan(ctx context.Context, filter ManuscriptFilter) iter.Seq2[models.ManuscriptSummary, error] {
	return func(yield func(models.ManuscriptSummary, error) bool) {
		page := filter
		page.Limit = q.pageSize
		page.Offset = 0
		for {
			if err := ctx.Err(); err != nil {
				yield(models.ManuscriptSummary{}, err)
				return
			}
			rows, err := q.repo.List(ctx, page)
			if err != nil {
				yield(models.ManuscriptSummary{}, err)
				return
			}
			for i := range rows {
				if !yield(rows[i].Summary(), nil) {
					return
				}
			}
			if len(rows) < page.Limit {
				return
			}
			page.Offset += len(rows)
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[models.ManuscriptSummary, error]) ([]models.ManuscriptSummary, error) {
	out := make([]models.ManuscriptSummary, 0)
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
