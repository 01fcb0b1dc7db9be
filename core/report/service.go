package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/user"
)

var ErrUnknownReport = errors.New("unknown report")

type (
	// Repository computes the report aggregates. Rows are ordered for display.
	Repository interface {
		JobCardsByStatus(ctx context.Context, filter Filter) ([]StatusCount, error)
		HoursByTechnician(ctx context.Context, filter Filter) ([]TechnicianHours, error)
		CheckSheetPassRates(ctx context.Context, filter Filter) ([]PassRate, error)
	}

	Service interface {
		Run(ctx context.Context, actor user.User, name string, filter Filter) (Report, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Run computes the named report. Admins only report on their own company.
func (svc *service) Run(ctx context.Context, actor user.User, name string, filter Filter) (Report, error) {
	switch {
	case actor.IsSuperAdmin():
		if filter.CompanyID == "" {
			return Report{}, core.NewFieldError("company_id", "this field is required")
		}
	case actor.IsAdmin():
		filter.CompanyID = actor.CompanyID
	default:
		return Report{}, core.NewPermissionError("")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return Report{}, core.NewFieldError("to", "must be after from")
	}
	filter.From, filter.To = filter.From.UTC(), filter.To.UTC()

	rep := Report{Name: name}
	if !filter.From.IsZero() {
		rep.From = &filter.From
	}
	if !filter.To.IsZero() {
		rep.To = &filter.To
	}

	switch name {
	case JobCardsByStatus:
		rows, err := svc.repo.JobCardsByStatus(ctx, filter)
		if err != nil {
			return Report{}, errors.Wrap(err, "counting job cards")
		}
		if rows == nil {
			rows = []StatusCount{}
		}
		rep.Columns = []string{"status", "count"}
		for _, r := range rows {
			rep.Rows = append(rep.Rows, []string{r.Status, strconv.Itoa(r.Count)})
		}
		rep.Data = rows

	case HoursByTechnician:
		rows, err := svc.repo.HoursByTechnician(ctx, filter)
		if err != nil {
			return Report{}, errors.Wrap(err, "summing hours")
		}
		if rows == nil {
			rows = []TechnicianHours{}
		}
		rep.Columns = []string{"technician_id", "technician_name", "entries", "seconds", "hours"}
		for i := range rows {
			rows[i].Hours = hours(rows[i].Seconds)
			r := rows[i]
			rep.Rows = append(rep.Rows, []string{
				r.TechnicianID, r.TechnicianName, strconv.Itoa(r.Entries),
				strconv.FormatInt(r.Seconds, 10), strconv.FormatFloat(r.Hours, 'f', 2, 64),
			})
		}
		rep.Data = rows

	case CheckSheetPassRate:
		rows, err := svc.repo.CheckSheetPassRates(ctx, filter)
		if err != nil {
			return Report{}, errors.Wrap(err, "computing pass rates")
		}
		if rows == nil {
			rows = []PassRate{}
		}
		rep.Columns = []string{"check_sheet_id", "title", "completions", "passed", "rate"}
		for i := range rows {
			rows[i].Rate = checksheet.PassRate(rows[i].Passed, rows[i].Completions)
			r := rows[i]
			rep.Rows = append(rep.Rows, []string{
				r.CheckSheetID, r.Title, strconv.Itoa(r.Completions),
				strconv.Itoa(r.Passed), strconv.FormatFloat(r.Rate, 'f', 2, 64),
			})
		}
		rep.Data = rows

	default:
		return Report{}, ErrUnknownReport
	}
	return rep, nil
}

// WriteCSV writes the header and rows of rep to w.
func WriteCSV(w io.Writer, rep Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rep.Columns); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	if err := cw.WriteAll(rep.Rows); err != nil {
		return errors.Wrap(err, "writing csv rows")
	}
	return nil
}
