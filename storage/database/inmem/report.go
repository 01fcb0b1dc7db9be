package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/report"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil)

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

// inRange reports whether at is within [f.From, f.To).
func inRange(f report.Filter, at time.Time) bool {
	return (f.From.IsZero() || !at.Before(f.From)) && (f.To.IsZero() || at.Before(f.To))
}

func statusIndex(status string) int {
	for i, s := range jobcard.AllStatuses {
		if s == status {
			return i
		}
	}
	return len(jobcard.AllStatuses)
}

func (repo *reportRepository) JobCardsByStatus(_ context.Context, f report.Filter) ([]report.StatusCount, error) {
	counts := make(map[string]int)
	repo.db.read(func(t *tables) {
		for _, jc := range t.jobCards {
			if jc.CompanyID == f.CompanyID && inRange(f, jc.CreatedAt) {
				counts[jc.Status]++
			}
		}
	})

	rows := make([]report.StatusCount, 0, len(counts))
	for status, n := range counts {
		rows = append(rows, report.StatusCount{Status: status, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return statusIndex(rows[i].Status) < statusIndex(rows[j].Status) })
	return rows, nil
}

func (repo *reportRepository) HoursByTechnician(_ context.Context, f report.Filter) ([]report.TechnicianHours, error) {
	byTech := make(map[string]*report.TechnicianHours)
	repo.db.read(func(t *tables) {
		for _, te := range t.timeEntries {
			jc, ok := t.jobCards[te.JobCardID]
			if !ok || jc.CompanyID != f.CompanyID || te.IsRunning() || !inRange(f, te.StartedAt) {
				continue
			}
			row, ok := byTech[te.TechnicianID]
			if !ok {
				row = &report.TechnicianHours{TechnicianID: te.TechnicianID, TechnicianName: t.users[te.TechnicianID].Name}
				byTech[te.TechnicianID] = row
			}
			row.Entries++
			row.Seconds += te.DurationSeconds
		}
	})

	rows := make([]report.TechnicianHours, 0, len(byTech))
	for _, row := range byTech {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Seconds != rows[j].Seconds {
			return rows[i].Seconds > rows[j].Seconds
		}
		return strings.ToLower(rows[i].TechnicianName) < strings.ToLower(rows[j].TechnicianName)
	})
	return rows, nil
}

func (repo *reportRepository) CheckSheetPassRates(_ context.Context, f report.Filter) ([]report.PassRate, error) {
	var rows []report.PassRate
	repo.db.read(func(t *tables) {
		bySheet := make(map[string]*report.PassRate)
		for _, cs := range t.checkSheets {
			if cs.CompanyID == f.CompanyID {
				bySheet[cs.ID] = &report.PassRate{CheckSheetID: cs.ID, Title: cs.Title}
			}
		}
		for _, c := range t.completions {
			row, ok := bySheet[c.CheckSheetID]
			if !ok || !inRange(f, c.CompletedAt) {
				continue
			}
			row.Completions++
			if c.Passed {
				row.Passed++
			}
		}
		rows = make([]report.PassRate, 0, len(bySheet))
		for _, row := range bySheet {
			rows = append(rows, *row)
		}
	})
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := strings.ToLower(rows[i].Title), strings.ToLower(rows[j].Title)
		if ti != tj {
			return ti < tj
		}
		return rows[i].CheckSheetID < rows[j].CheckSheetID
	})
	return rows, nil
}
