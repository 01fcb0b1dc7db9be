package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/fault"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/sop"
)

var machineOrderings = map[string]lessFunc[machine.Machine]{
	"name":          func(a, b machine.Machine) int { return cmpStrings(a.Name, b.Name) },
	"serial_number": func(a, b machine.Machine) int { return cmpStrings(a.SerialNumber, b.SerialNumber) },
	"location":      func(a, b machine.Machine) int { return cmpStrings(a.Location, b.Location) },
	"created_at":    func(a, b machine.Machine) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type machineRepository struct {
	db *DB
}

var (
	_ machine.Repository       = (*machineRepository)(nil)
	_ machine.PortalRepository = (*machineRepository)(nil)
)

func NewMachineRepository(db *DB) *machineRepository {
	return &machineRepository{db: db}
}

func (repo *machineRepository) CheckSerialUniqueness(_ context.Context, companyID, serial, excludedID string, _ ...core.DBExecutor) (err error) {
	repo.db.read(func(t *tables) {
		for _, m := range t.machines {
			if m.ID != excludedID && m.CompanyID == companyID && strings.EqualFold(m.SerialNumber, serial) {
				err = machine.ErrSerialExists
				return
			}
		}
	})
	return err
}

func (repo *machineRepository) CreateMachine(_ context.Context, m machine.Machine, exec ...core.DBExecutor) (machine.Machine, error) {
	m.ID = uuid.New().String()
	repo.db.write(exec, func(t *tables) { t.machines[m.ID] = m })
	return m, nil
}

func (repo *machineRepository) QueryMachines(_ context.Context, filter *machine.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) (machines []machine.Machine, err error) {
	repo.db.read(func(t *tables) { machines = t.machines.rows(filter.Match) })
	order(machines, ordering, machineOrderings, core.DBOrdering{Field: "name", Ascending: true})
	return machines, nil
}

func (repo *machineRepository) GetMachine(_ context.Context, filter machine.GetFilter, _ ...core.DBExecutor) (m machine.Machine, err error) {
	err = machine.ErrNotFound
	repo.db.read(func(t *tables) {
		if filter.ID != "" {
			if found, ok := t.machines[filter.ID]; ok {
				m, err = found, nil
			}
			return
		}
		for _, found := range t.machines {
			if filter.QRToken != "" && found.QRToken == filter.QRToken {
				m, err = found, nil
				return
			}
		}
	})
	return m, err
}

func (repo *machineRepository) UpdateMachine(_ context.Context, m machine.Machine, exec ...core.DBExecutor) (machine.Machine, error) {
	err := machine.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.machines[m.ID]; ok {
			t.machines[m.ID] = m
			err = nil
		}
	})
	if err != nil {
		return machine.Machine{}, err
	}
	return m, nil
}

func (repo *machineRepository) DeleteMachine(_ context.Context, id string, exec ...core.DBExecutor) error {
	err := machine.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.machines[id]; !ok {
			return
		}
		delete(t.machines, id)
		err = nil
		// ON DELETE SET NULL
		for k, jc := range t.jobCards {
			if jc.MachineID == id {
				jc.MachineID = ""
				t.jobCards[k] = jc
			}
		}
		for k, s := range t.sops {
			if s.MachineID == id {
				s.MachineID = ""
				t.sops[k] = s
			}
		}
		for k, f := range t.faults {
			if f.MachineID == id {
				f.MachineID = ""
				t.faults[k] = f
			}
		}
		for k, cs := range t.checkSheets {
			if cs.MachineID == id {
				cs.MachineID = ""
				t.checkSheets[k] = cs
			}
		}
	})
	return err
}

func (repo *machineRepository) PortalSOPs(_ context.Context, machineID string) ([]machine.PortalSOP, error) {
	var sops []sop.SOP
	repo.db.read(func(t *tables) {
		sops = t.sops.rows(func(s sop.SOP) bool { return s.MachineID == machineID && s.Status == sop.StatusPublished })
	})
	order(sops, nil, sopOrderings, core.DBOrdering{Field: "code", Ascending: true})

	out := make([]machine.PortalSOP, 0, len(sops))
	for _, s := range sops {
		out = append(out, machine.PortalSOP{Code: s.Code, Title: s.Title, Version: s.Version})
	}
	return out, nil
}

func (repo *machineRepository) PortalFaults(_ context.Context, machineID string) ([]machine.PortalFault, error) {
	filter := &fault.QueryFilter{MachineID: machineID}
	var out []machine.PortalFault
	repo.db.read(func(t *tables) {
		faults := t.faults.rows(filter.Match)
		order(faults, nil, faultOrderings, core.DBOrdering{Field: "code", Ascending: true})
		out = make([]machine.PortalFault, 0, len(faults))
		for _, f := range faults {
			out = append(out, machine.PortalFault{Code: f.Code, Title: f.Title, Severity: f.Severity, Remedy: f.Remedy})
		}
	})
	return out, nil
}

func (repo *machineRepository) CountOpenJobCards(_ context.Context, machineID string) (n int, err error) {
	repo.db.read(func(t *tables) {
		for _, jc := range t.jobCards {
			if jc.MachineID == machineID && jobcard.IsOpenStatus(jc.Status) {
				n++
			}
		}
	})
	return n, nil
}
