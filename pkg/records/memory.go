package records

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. It backs tests and the
// database-less CLI paths.
type MemoryStore struct {
	mu           sync.RWMutex
	patients     map[string]Patient
	conditions   map[uint]Condition
	observations map[uint]Observation
	nextID       uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:     make(map[string]Patient),
		conditions:   make(map[uint]Condition),
		observations: make(map[uint]Observation),
	}
}

func (m *MemoryStore) Migrate(context.Context) error {
	return nil
}

func (m *MemoryStore) CreatePatient(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.patients[p.ID]; exists {
		return ErrDuplicatePatient
	}
	m.patients[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPatient(_ context.Context, id string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) PatientExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.patients[id]
	return ok, nil
}

func (m *MemoryStore) ListPatients(context.Context) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdatePatient(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; !ok {
		return ErrNotFound
	}
	m.patients[p.ID] = *p
	return nil
}

func (m *MemoryStore) DeletePatient(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[id]; !ok {
		return ErrNotFound
	}
	for cid, c := range m.conditions {
		if c.PatientID == id {
			delete(m.conditions, cid)
		}
	}
	for oid, o := range m.observations {
		if o.PatientID == id {
			delete(m.observations, oid)
		}
	}
	delete(m.patients, id)
	return nil
}

func (m *MemoryStore) CreateCondition(_ context.Context, c *Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[c.PatientID]; !ok {
		return ErrPatientNotFound
	}
	m.nextID++
	c.ID = m.nextID
	m.conditions[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetCondition(_ context.Context, id uint) (*Condition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conditions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) ListConditions(_ context.Context, patientID string) ([]Condition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Condition, 0, len(m.conditions))
	for _, c := range m.conditions {
		if patientID == "" || c.PatientID == patientID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) DeleteCondition(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conditions[id]; !ok {
		return ErrNotFound
	}
	delete(m.conditions, id)
	return nil
}

func (m *MemoryStore) CreateObservation(_ context.Context, o *Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[o.PatientID]; !ok {
		return ErrPatientNotFound
	}
	m.nextID++
	o.ID = m.nextID
	m.observations[o.ID] = *o
	return nil
}

func (m *MemoryStore) GetObservation(_ context.Context, id uint) (*Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.observations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemoryStore) ListObservations(_ context.Context, patientID string) ([]Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Observation, 0, len(m.observations))
	for _, o := range m.observations {
		if patientID == "" || o.PatientID == patientID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) DeleteObservation(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.observations[id]; !ok {
		return ErrNotFound
	}
	delete(m.observations, id)
	return nil
}

func (m *MemoryStore) ConditionCounts(_ context.Context, description, dimension string) ([]GroupCount, error) {
	if err := checkDimension(dimension); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := newGroupTally()
	for _, c := range m.conditions {
		if c.Description == nil || *c.Description != description {
			continue
		}
		p, ok := m.patients[c.PatientID]
		if !ok {
			continue
		}
		counts.add(patientDimension(&p, dimension), nil)
	}
	return counts.counts(), nil
}

func (m *MemoryStore) PatientAverages(_ context.Context, attribute, dimension string) ([]GroupAverage, error) {
	if err := checkDimension(dimension); err != nil {
		return nil, err
	}
	if err := checkAttribute(attribute); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	tally := newGroupTally()
	for _, p := range m.patients {
		p := p
		tally.add(patientDimension(&p, dimension), patientAttribute(&p, attribute))
	}
	return tally.averages(), nil
}

func (m *MemoryStore) PatientCategoryCounts(_ context.Context, dimension string) ([]GroupCount, error) {
	if err := checkDimension(dimension); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	tally := newGroupTally()
	for _, p := range m.patients {
		p := p
		tally.add(patientDimension(&p, dimension), nil)
	}
	return tally.counts(), nil
}

func (m *MemoryStore) CountPatients(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.patients)), nil
}

// groupTally accumulates SQL-style GROUP BY aggregates; nil groups form their own bucket.
type groupTally struct {
	order   []*string
	buckets map[string]*bucket
	null    *bucket
}

type bucket struct {
	rows   int
	sum    float64
	valued int
}

func newGroupTally() *groupTally {
	return &groupTally{buckets: make(map[string]*bucket)}
}

func (g *groupTally) add(group *string, value *float64) {
	var b *bucket
	if group == nil {
		if g.null == nil {
			g.null = &bucket{}
			g.order = append(g.order, nil)
		}
		b = g.null
	} else {
		b = g.buckets[*group]
		if b == nil {
			b = &bucket{}
			g.buckets[*group] = b
			key := *group
			g.order = append(g.order, &key)
		}
	}
	b.rows++
	if value != nil {
		b.sum += *value
		b.valued++
	}
}

func (g *groupTally) lookup(group *string) *bucket {
	if group == nil {
		return g.null
	}
	return g.buckets[*group]
}

func (g *groupTally) counts() []GroupCount {
	out := make([]GroupCount, 0, len(g.order))
	for _, group := range g.order {
		out = append(out, GroupCount{Group: group, Count: g.lookup(group).rows})
	}
	return out
}

func (g *groupTally) averages() []GroupAverage {
	out := make([]GroupAverage, 0, len(g.order))
	for _, group := range g.order {
		b := g.lookup(group)
		row := GroupAverage{Group: group}
		if b.valued > 0 {
			avg := b.sum / float64(b.valued)
			row.Average = &avg
		}
		out = append(out, row)
	}
	return out
}
