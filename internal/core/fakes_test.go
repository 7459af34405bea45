package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// person is the record type used by the engine tests.
type person struct {
	RowRef
	Key  string `label:"Key"`
	Name string `label:"Name" validate:"required"`
}

var peopleLayout = Layout{
	Entity:    EntityClients,
	Sheet:     "People",
	AnchorCol: 0,
	StatusCol: 2,
	Columns:   []string{"Key", "Name", "Status"},
}

func parsePerson(row sheet.Row, _ Options) person {
	key, _ := row.Code(0)
	return person{
		RowRef: RowRef{RowIndex: row.Index},
		Key:    key,
		Name:   row.Str(1),
	}
}

func buildPerson(p person, bc *BuildContext) ([]Command, error) {
	payload, err := json.Marshal(map[string]string{"name": p.Name, "locale": bc.Options.Locale})
	if err != nil {
		return nil, err
	}
	return []Command{{Entity: EntityClients, Action: ActionCreate, ExternalID: p.Key, Payload: payload}}, nil
}

// fakeExecutor records commands and fails those whose external ID is listed.
type fakeExecutor struct {
	mu       sync.Mutex
	commands []Command
	failures map[string]error
	nextID   int64
}

func (f *fakeExecutor) Execute(_ context.Context, cmd Command) (CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	if err, ok := f.failures[cmd.ExternalID]; ok && cmd.Action == ActionCreate {
		return CommandResult{}, err
	}
	f.nextID++
	return CommandResult{CommandID: fmt.Sprint(f.nextID), ResourceID: 100 + f.nextID}, nil
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

func newPeopleHandler(exec CommandExecutor) *SheetHandler[person] {
	return NewSheetHandler[person](peopleLayout, parsePerson, buildPerson, NewDispatcher(exec))
}

func testRegistry(h Handler) *Registry {
	return &Registry{handlers: map[EntityType]Handler{h.Entity(): h}}
}

// peopleWorkbook builds a People sheet from rows of {key, name}; a nil key
// leaves the anchor cell empty.
func peopleWorkbook(t *testing.T, rows ...[2]any) *sheet.Workbook {
	t.Helper()
	wb := sheet.New()
	s, err := wb.AddSheet("People")
	if err != nil {
		t.Fatalf("AddSheet() error = %v", err)
	}
	for col, h := range peopleLayout.Columns[:2] {
		if err := s.SetValue(0, col, h); err != nil {
			t.Fatal(err)
		}
	}
	for i, r := range rows {
		for col, v := range r {
			if v == nil {
				continue
			}
			if err := s.SetValue(i+1, col, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	return wb
}

func statusOf(t *testing.T, wb *sheet.Workbook, row int) string {
	t.Helper()
	s, err := wb.Sheet("People")
	if err != nil {
		t.Fatal(err)
	}
	return s.Cell(row, peopleLayout.StatusCol).Text()
}

type memJobs struct {
	mu    sync.Mutex
	jobs  map[string]ImportJob
	saves int
}

func newMemJobs() *memJobs { return &memJobs{jobs: make(map[string]ImportJob)} }

func (m *memJobs) FindByID(_ context.Context, id string) (*ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return &j, nil
}

func (m *memJobs) Create(_ context.Context, job *ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) Save(_ context.Context, job *ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) List(context.Context, JobFilter) ([]ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ImportJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

type memDocs struct {
	mu    sync.Mutex
	docs  map[string][]byte
	meta  map[string]DocumentMeta
	loads int
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string][]byte), meta: make(map[string]DocumentMeta)}
}

func (m *memDocs) Create(_ context.Context, doc Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("doc-%d", len(m.docs)+1)
	m.docs[id] = doc.Data
	return id, nil
}

func (m *memDocs) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return d, nil
}

func (m *memDocs) Update(_ context.Context, id string, data []byte, meta DocumentMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = data
	m.meta[id] = meta
	return nil
}
