package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/jobcard"
)

var jobCardPriorities = map[string]int{
	jobcard.PriorityLow:    1,
	jobcard.PriorityMedium: 2,
	jobcard.PriorityHigh:   3,
	jobcard.PriorityUrgent: 4,
}

var jobCardOrderings = map[string]lessFunc[jobcard.JobCard]{
	"number":     func(a, b jobcard.JobCard) int { return a.Number - b.Number },
	"title":      func(a, b jobcard.JobCard) int { return cmpStrings(a.Title, b.Title) },
	"status":     func(a, b jobcard.JobCard) int { return cmpStrings(a.Status, b.Status) },
	"priority":   func(a, b jobcard.JobCard) int { return jobCardPriorities[a.Priority] - jobCardPriorities[b.Priority] },
	"created_at": func(a, b jobcard.JobCard) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b jobcard.JobCard) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	// nulls last, as in postgres
	"due_date": func(a, b jobcard.JobCard) int {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	},
}

type jobCardRepository struct {
	db *DB
}

var _ jobcard.Repository = (*jobCardRepository)(nil)

func NewJobCardRepository(db *DB) *jobCardRepository {
	return &jobCardRepository{db: db}
}

func (repo *jobCardRepository) NextNumber(_ context.Context, companyID string, exec ...core.DBExecutor) (n int, err error) {
	repo.db.write(exec, func(t *tables) {
		t.numbers[companyID]++
		n = t.numbers[companyID]
	})
	return n, nil
}

func (repo *jobCardRepository) CreateJobCard(_ context.Context, jc jobcard.JobCard, exec ...core.DBExecutor) (jobcard.JobCard, error) {
	jc.ID = uuid.New().String()
	repo.db.write(exec, func(t *tables) { t.jobCards[jc.ID] = jc })
	return jc, nil
}

func (repo *jobCardRepository) QueryJobCards(_ context.Context, filter *jobcard.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) (cards []jobcard.JobCard, err error) {
	repo.db.read(func(t *tables) { cards = t.jobCards.rows(filter.Match) })
	order(cards, ordering, jobCardOrderings, core.DBOrdering{Field: "created_at"})
	return cards, nil
}

func (repo *jobCardRepository) GetJobCard(_ context.Context, id string, _ ...core.DBExecutor) (jc jobcard.JobCard, err error) {
	err = jobcard.ErrNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.jobCards[id]; ok {
			jc, err = found, nil
		}
	})
	return jc, err
}

func (repo *jobCardRepository) UpdateJobCard(_ context.Context, jc jobcard.JobCard, exec ...core.DBExecutor) (jobcard.JobCard, error) {
	err := jobcard.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.jobCards[jc.ID]; ok {
			t.jobCards[jc.ID] = jc
			err = nil
		}
	})
	if err != nil {
		return jobcard.JobCard{}, err
	}
	return jc, nil
}

// DeleteJobCard cascades to the time entries and signatures of the job card.
func (repo *jobCardRepository) DeleteJobCard(_ context.Context, id string, exec ...core.DBExecutor) error {
	err := jobcard.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.jobCards[id]; !ok {
			return
		}
		delete(t.jobCards, id)
		err = nil
		for k, te := range t.timeEntries {
			if te.JobCardID == id {
				delete(t.timeEntries, k)
			}
		}
		for k, sig := range t.signatures {
			if sig.JobCardID == id {
				delete(t.signatures, k)
			}
		}
		for k, c := range t.completions {
			if c.JobCardID == id {
				c.JobCardID = ""
				t.completions[k] = c
			}
		}
	})
	return err
}

// CreateTimeEntry enforces a single running entry per job card and technician, like the unique index.
func (repo *jobCardRepository) CreateTimeEntry(_ context.Context, te jobcard.TimeEntry, exec ...core.DBExecutor) (jobcard.TimeEntry, error) {
	te.ID = uuid.New().String()
	var err error
	repo.db.write(exec, func(t *tables) {
		if te.IsRunning() {
			for _, other := range t.timeEntries {
				if other.IsRunning() && other.JobCardID == te.JobCardID && other.TechnicianID == te.TechnicianID {
					err = jobcard.ErrTimerRunning
					return
				}
			}
		}
		t.timeEntries[te.ID] = te
	})
	if err != nil {
		return jobcard.TimeEntry{}, err
	}
	return te, nil
}

func (repo *jobCardRepository) UpdateTimeEntry(_ context.Context, te jobcard.TimeEntry, exec ...core.DBExecutor) (jobcard.TimeEntry, error) {
	err := jobcard.ErrEntryNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.timeEntries[te.ID]; ok {
			t.timeEntries[te.ID] = te
			err = nil
		}
	})
	if err != nil {
		return jobcard.TimeEntry{}, err
	}
	return te, nil
}

func (repo *jobCardRepository) QueryTimeEntries(_ context.Context, filter jobcard.TimeEntryFilter, _ ...core.DBExecutor) (entries []jobcard.TimeEntry, err error) {
	repo.db.read(func(t *tables) { entries = t.timeEntries.rows(filter.Match) })
	order(entries, nil, map[string]lessFunc[jobcard.TimeEntry]{
		"started_at": func(a, b jobcard.TimeEntry) int { return a.StartedAt.Compare(b.StartedAt) },
	}, core.DBOrdering{Field: "started_at", Ascending: true})
	return entries, nil
}

func (repo *jobCardRepository) CreateSignature(_ context.Context, sig jobcard.Signature, exec ...core.DBExecutor) (jobcard.Signature, error) {
	sig.ID = uuid.New().String()
	var err error
	repo.db.write(exec, func(t *tables) {
		for _, other := range t.signatures {
			if other.JobCardID == sig.JobCardID && other.Step == sig.Step {
				err = jobcard.ErrAlreadySigned
				return
			}
		}
		t.signatures[sig.ID] = sig
	})
	if err != nil {
		return jobcard.Signature{}, err
	}
	return sig, nil
}

func (repo *jobCardRepository) QuerySignatures(_ context.Context, jobCardID string, _ ...core.DBExecutor) (sigs []jobcard.Signature, err error) {
	repo.db.read(func(t *tables) {
		sigs = t.signatures.rows(func(sig jobcard.Signature) bool { return sig.JobCardID == jobCardID })
	})
	order(sigs, nil, map[string]lessFunc[jobcard.Signature]{
		"signed_at": func(a, b jobcard.Signature) int { return a.SignedAt.Compare(b.SignedAt) },
	}, core.DBOrdering{Field: "signed_at", Ascending: true})
	return sigs, nil
}
