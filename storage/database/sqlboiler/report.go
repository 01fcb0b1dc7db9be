package boiledrepos

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/report"
)

// period restricts col to [$2, $3). Either bound may be NULL.
func period(col string) string {
	return "($2::timestamptz IS NULL OR " + col + " >= $2) AND ($3::timestamptz IS NULL OR " + col + " < $3)"
}

type reportRepository struct {
	exec boil.ContextExecutor
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(exec boil.ContextExecutor) *reportRepository {
	return &reportRepository{exec: exec}
}

func bounds(f report.Filter) (null.Time, null.Time) {
	return null.NewTime(f.From, !f.From.IsZero()), null.NewTime(f.To, !f.To.IsZero())
}

func (repo reportRepository) JobCardsByStatus(ctx context.Context, f report.Filter) ([]report.StatusCount, error) {
	from, to := bounds(f)
	var rows []report.StatusCount
	err := queries.Raw(`
		SELECT status, count(*) AS count
		FROM job_cards
		WHERE company_id = $1 AND `+period("created_at")+`
		GROUP BY status
		ORDER BY array_position($4::text[], status::text)`,
		f.CompanyID, from, to, pq.Array(jobcard.AllStatuses),
	).Bind(ctx, repo.exec, &rows)
	return rows, errors.Wrap(err, "counting job cards by status")
}

// HoursByTechnician only sums closed time entries.
func (repo reportRepository) HoursByTechnician(ctx context.Context, f report.Filter) ([]report.TechnicianHours, error) {
	from, to := bounds(f)
	var rows []report.TechnicianHours
	err := queries.Raw(`
		SELECT te.technician_id, coalesce(u.name, '') AS technician_name,
			count(*) AS entries, coalesce(sum(te.duration_seconds), 0) AS seconds
		FROM time_entries te
		JOIN job_cards jc ON jc.id = te.job_card_id
		LEFT JOIN users u ON u.id = te.technician_id
		WHERE jc.company_id = $1 AND te.ended_at IS NOT NULL AND `+period("te.started_at")+`
		GROUP BY te.technician_id, u.name
		ORDER BY seconds DESC, lower(coalesce(u.name, '')) ASC`,
		f.CompanyID, from, to,
	).Bind(ctx, repo.exec, &rows)
	return rows, errors.Wrap(err, "summing hours by technician")
}

func (repo reportRepository) CheckSheetPassRates(ctx context.Context, f report.Filter) ([]report.PassRate, error) {
	from, to := bounds(f)
	var rows []report.PassRate
	err := queries.Raw(`
		SELECT cs.id AS check_sheet_id, cs.title,
			count(c.id) AS completions, count(c.id) FILTER (WHERE c.passed) AS passed
		FROM check_sheets cs
		LEFT JOIN check_sheet_completions c ON c.check_sheet_id = cs.id AND `+period("c.completed_at")+`
		WHERE cs.company_id = $1
		GROUP BY cs.id, cs.title
		ORDER BY lower(cs.title) ASC, cs.id ASC`,
		f.CompanyID, from, to,
	).Bind(ctx, repo.exec, &rows)
	return rows, errors.Wrap(err, "computing check sheet pass rates")
}
