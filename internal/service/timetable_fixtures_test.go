package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

var fixtureCohort = scheduler.Cohort{Year: 2, Branch: "CSE", Division: "A", Program: "BTECH"}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type catalogStub struct {
	courses     []models.Course
	rooms       []models.Room
	instructors []models.Instructor
	students    []models.Student
	practicums  []models.Practicum
	err         error
}

func fixtureCatalog() *catalogStub {
	course := func(id, code, instructor, lecture string) models.Course {
		return models.Course{
			ID: id, Name: code, Code: code, InstructorID: instructor, Duration: 1, Capacity: 40,
			Year: 2, Branch: "CSE", Division: "A", Program: "BTECH", LectureType: lecture, Credits: 3,
		}
	}
	return &catalogStub{
		courses: []models.Course{
			course("c1", "CS201", "i1", "theory"),
			course("c2", "CS202", "i2", "theory"),
			course("l1", "CS201L", "i2", "lab"),
		},
		rooms: []models.Room{
			{ID: "R1", Name: "Room 1", Capacity: 60, Type: "classroom", Available: true},
			{ID: "R2", Name: "Room 2", Capacity: 60, Type: "classroom", Available: true},
			{ID: "L1", Name: "Lab 1", Capacity: 40, Type: "lab", AllowedYears: pq.Int64Array{2}, Available: true},
		},
		instructors: []models.Instructor{
			{ID: "i1", Name: "Ada", Department: "CSE", Availability: types.JSONText(`{}`)},
			{ID: "i2", Name: "Grace", Department: "CSE"},
		},
	}
}

func (c *catalogStub) ListCourses(ctx context.Context, year int) ([]models.Course, error) {
	return c.courses, c.err
}

func (c *catalogStub) ListRooms(ctx context.Context) ([]models.Room, error) {
	return c.rooms, c.err
}

func (c *catalogStub) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	return c.instructors, c.err
}

func (c *catalogStub) ListStudents(ctx context.Context, cohort scheduler.Cohort) ([]models.Student, error) {
	return c.students, c.err
}

func (c *catalogStub) ListPracticums(ctx context.Context, year int) ([]models.Practicum, error) {
	return c.practicums, c.err
}

type timetableRepoStub struct {
	mu        sync.Mutex
	records   map[string]*models.Timetable
	order     []string
	archived  int
	createErr error
}

func newTimetableRepoStub() *timetableRepoStub {
	return &timetableRepoStub{records: make(map[string]*models.Timetable)}
}

func (r *timetableRepoStub) add(record models.Timetable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = &record
	r.order = append(r.order, record.ID)
}

func (r *timetableRepoStub) get(id string) models.Timetable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.records[id]
}

func (r *timetableRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	version := 1
	for _, existing := range r.records {
		if existing.Cohort() == timetable.Cohort() && existing.Version >= version {
			version = existing.Version + 1
		}
	}
	timetable.ID = fmt.Sprintf("tt-%d", len(r.order)+1)
	timetable.Version = version
	timetable.CreatedAt = time.Now()
	clone := *timetable
	r.records[clone.ID] = &clone
	r.order = append(r.order, clone.ID)
	return nil
}

func (r *timetableRepoStub) ListByCohort(ctx context.Context, cohort scheduler.Cohort) ([]models.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Timetable
	for i := len(r.order) - 1; i >= 0; i-- {
		if record := r.records[r.order[i]]; record != nil && record.Cohort() == cohort {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (r *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (r *timetableRepoStub) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.records, id)
	return nil
}

func (r *timetableRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	record.Status = status
	if len(meta) > 0 {
		record.Meta = meta
	}
	return nil
}

func (r *timetableRepoStub) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, cohort scheduler.Cohort) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, record := range r.records {
		if record.Cohort() == cohort && record.Status == models.TimetableStatusPublished {
			record.Status = models.TimetableStatusArchived
			n++
		}
	}
	r.archived += int(n)
	return n, nil
}

type slotRepoStub struct {
	mu        sync.Mutex
	byID      map[string][]models.TimetableSlot
	published []models.TimetableSlot
}

func newSlotRepoStub() *slotRepoStub {
	return &slotRepoStub{byID: make(map[string][]models.TimetableSlot)}
}

func (s *slotRepoStub) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.byID[slot.TimetableID] = append(s.byID[slot.TimetableID], slot)
	}
	return nil
}

func (s *slotRepoStub) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TimetableSlot(nil), s.byID[timetableID]...), nil
}

func (s *slotRepoStub) ListPublishedExcluding(ctx context.Context, cohort scheduler.Cohort) ([]models.TimetableSlot, error) {
	return s.published, nil
}

type lockStub struct {
	mu       sync.Mutex
	err      error
	acquired []string
	released int
}

func (l *lockStub) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, key)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

type cacheRepoStub struct {
	mu    sync.Mutex
	items map[string][]byte
	sets  int
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{items: make(map[string][]byte)}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	c.sets++
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, pattern)
	return nil
}

type timetableFixture struct {
	service    *TimetableService
	catalog    *catalogStub
	timetables *timetableRepoStub
	slots      *slotRepoStub
	lock       *lockStub
	cache      *cacheRepoStub
	mock       sqlmock.Sqlmock
	tx         txProvider
}

func newTimetableFixture(t *testing.T) *timetableFixture {
	tx, mock := newTxProviderMock(t)
	f := &timetableFixture{
		catalog:    fixtureCatalog(),
		timetables: newTimetableRepoStub(),
		slots:      newSlotRepoStub(),
		lock:       &lockStub{},
		cache:      newCacheRepoStub(),
		mock:       mock,
		tx:         tx,
	}
	cache := NewCacheService(f.cache, nil, time.Minute, nil, true)
	f.service = NewTimetableService(f.catalog, f.timetables, f.slots, f.lock, nil, tx, cache, NewMetricsService(), nil, nil, TimetableServiceConfig{DefaultSeed: 11})
	return f
}

func int64Ptr(v int64) *int64 {
	return &v
}
