package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/company"
	"github.com/thinkquality/thinkquality/core/fault"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/sop"
	"github.com/thinkquality/thinkquality/core/user"
)

// table is an in-memory table keyed by ID.
type table[T any] map[string]T

func (t table[T]) clone() table[T] {
	c := make(table[T], len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

func (t table[T]) rows(match func(T) bool) []T {
	rows := make([]T, 0, len(t))
	for _, row := range t {
		if match == nil || match(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

type tables struct {
	companies   table[company.Company]
	users       table[user.User]
	machines    table[machine.Machine]
	jobCards    table[jobcard.JobCard]
	timeEntries table[jobcard.TimeEntry]
	signatures  table[jobcard.Signature]
	sops        table[sop.SOP]
	checkSheets table[checksheet.CheckSheet]
	completions table[checksheet.Completion]
	faults      table[fault.Fault]
	numbers     map[string]int // last job card number per company
}

func (t *tables) clone() *tables {
	numbers := make(map[string]int, len(t.numbers))
	for k, v := range t.numbers {
		numbers[k] = v
	}
	return &tables{
		companies:   t.companies.clone(),
		users:       t.users.clone(),
		machines:    t.machines.clone(),
		jobCards:    t.jobCards.clone(),
		timeEntries: t.timeEntries.clone(),
		signatures:  t.signatures.clone(),
		sops:        t.sops.clone(),
		checkSheets: t.checkSheets.clone(),
		completions: t.completions.clone(),
		faults:      t.faults.clone(),
		numbers:     numbers,
	}
}

// DB is an in-memory database for tests and local runs.
// Transactions are serialized and rolled back by restoring a snapshot.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	t    *tables
}

var _ core.Transactor = (*DB)(nil)

func NewDB() *DB {
	return &DB{t: &tables{
		companies:   make(table[company.Company]),
		users:       make(table[user.User]),
		machines:    make(table[machine.Machine]),
		jobCards:    make(table[jobcard.JobCard]),
		timeEntries: make(table[jobcard.TimeEntry]),
		signatures:  make(table[jobcard.Signature]),
		sops:        make(table[sop.SOP]),
		checkSheets: make(table[checksheet.CheckSheet]),
		completions: make(table[checksheet.Completion]),
		faults:      make(table[fault.Fault]),
		numbers:     make(map[string]int),
	}}
}

// txExec marks the repository calls made by a WithTx function. It never runs queries.
type txExec struct {
	core.DBExecutor
}

func inTx(exec []core.DBExecutor) bool {
	if len(exec) == 0 {
		return false
	}
	_, ok := exec[0].(txExec)
	return ok
}

// WithTx runs fn with a marker executor. Every change fn made is discarded if it fails or panics.
// Writes from outside the transaction wait for it to end.
func (db *DB) WithTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	rollback := func() {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = ctx.Err(); err == nil {
		err = fn(txExec{})
	}
	if err != nil {
		rollback()
	}
	return err
}

// Reset drops every row.
func (db *DB) Reset() {
	fresh := NewDB()
	db.mu.Lock()
	db.t = fresh.t
	db.mu.Unlock()
}

func (db *DB) read(fn func(t *tables)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(db.t)
}

func (db *DB) write(exec []core.DBExecutor, fn func(t *tables)) {
	if !inTx(exec) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db.t)
}

// lessFunc compares two rows on a single field.
type lessFunc[T any] func(a, b T) int

func cmpStrings(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) }

// order sorts rows by ordering, falling back to def. Unknown fields are ignored.
func order[T any](rows []T, ordering []core.DBOrdering, fields map[string]lessFunc[T], def ...core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = def
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			c := cmp(rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}
