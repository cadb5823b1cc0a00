// Package store provides in-memory Store and UserStore implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/worktime-engine/worktime"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	days  map[string]worktime.AttendanceDay // by ID
	index map[key]string                    // (user, date) -> ID
	users map[string]worktime.User

	now func() time.Time
}

type key struct {
	UserID string
	Date   string
}

func NewMemory() *Memory {
	return &Memory{
		days:  make(map[string]worktime.AttendanceDay),
		index: make(map[key]string),
		users: make(map[string]worktime.User),
		now:   time.Now,
	}
}

var (
	_ worktime.Store     = (*Memory)(nil)
	_ worktime.UserStore = (*Memory)(nil)
)

// =============================================================================
// ATTENDANCE DAYS
// =============================================================================

func (m *Memory) FindByUserAndDate(_ context.Context, userID string, date worktime.Date) (*worktime.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.index[key{UserID: userID, Date: date.String()}]
	if !ok {
		return nil, nil
	}
	d := m.days[id].Clone()
	return &d, nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*worktime.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.days[id]
	if !ok {
		return nil, &worktime.RecordNotFoundError{ID: id}
	}
	d = d.Clone()
	return &d, nil
}

func (m *Memory) FindByUser(_ context.Context, userID string) ([]worktime.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filterLocked(func(d worktime.AttendanceDay) bool { return d.UserID == userID }), nil
}

func (m *Memory) FindByDate(_ context.Context, date worktime.Date) ([]worktime.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filterLocked(func(d worktime.AttendanceDay) bool { return d.Date.Equal(date) }), nil
}

func (m *Memory) FindByUserAndMonth(_ context.Context, userID string, month worktime.Month) ([]worktime.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := month.Prefix()
	return m.filterLocked(func(d worktime.AttendanceDay) bool {
		return d.UserID == userID && strings.HasPrefix(d.Date.String(), prefix)
	}), nil
}

// filterLocked returns matching days ordered by date, then user.
func (m *Memory) filterLocked(match func(worktime.AttendanceDay) bool) []worktime.AttendanceDay {
	var result []worktime.AttendanceDay
	for _, d := range m.days {
		if match(d) {
			result = append(result, d.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].UserID < result[j].UserID
	})
	return result
}

func (m *Memory) Save(_ context.Context, day worktime.AttendanceDay) (worktime.AttendanceDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(day), nil
}

func (m *Memory) saveLocked(day worktime.AttendanceDay) worktime.AttendanceDay {
	now := m.now().UTC()
	k := key{UserID: day.UserID, Date: day.Date.String()}
	if day.ID == "" {
		if existing, ok := m.index[k]; ok {
			day.ID = existing
		} else {
			day.ID = uuid.NewString()
			day.CreatedAt = now
		}
	}
	day.Version++
	day.UpdatedAt = now
	stored := day.Clone()
	m.days[day.ID] = stored
	m.index[k] = day.ID
	return stored.Clone()
}

// UpdateDay runs fn on a copy under the write lock; the copy is only stored
// when fn succeeds.
func (m *Memory) UpdateDay(_ context.Context, userID string, date worktime.Date, fn worktime.DayMutator) (worktime.AttendanceDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := worktime.NewAttendanceDay(userID, date)
	if id, ok := m.index[key{UserID: userID, Date: date.String()}]; ok {
		day = m.days[id].Clone()
	}
	if err := fn(&day); err != nil {
		return worktime.AttendanceDay{}, err
	}
	return m.saveLocked(day), nil
}

func (m *Memory) UpdateDayByID(_ context.Context, id string, fn worktime.DayMutator) (worktime.AttendanceDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.days[id]
	if !ok {
		return worktime.AttendanceDay{}, &worktime.RecordNotFoundError{ID: id}
	}
	day := existing.Clone()
	if err := fn(&day); err != nil {
		return worktime.AttendanceDay{}, err
	}
	return m.saveLocked(day), nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.days = make(map[string]worktime.AttendanceDay)
	m.index = make(map[key]string)
	m.users = make(map[string]worktime.User)
	return nil
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) GetUser(_ context.Context, id string) (*worktime.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, worktime.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*worktime.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, worktime.ErrUserNotFound
}

func (m *Memory) ListUsers(_ context.Context, role worktime.Role) ([]worktime.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []worktime.User
	for _, u := range m.users {
		if role == "" || u.Role == role {
			result = append(result, *cloneUser(u))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

func (m *Memory) CreateUser(_ context.Context, u worktime.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) ||
			(u.PhoneNumber != "" && existing.PhoneNumber == u.PhoneNumber) {
			return worktime.ErrDuplicateUser
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := m.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *cloneUser(u)
	return nil
}

func (m *Memory) UpdateUser(_ context.Context, u worktime.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[u.ID]
	if !ok {
		return worktime.ErrUserNotFound
	}
	for id, other := range m.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return worktime.ErrDuplicateUser
		}
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = m.now().UTC()
	m.users[u.ID] = *cloneUser(u)
	return nil
}

func (m *Memory) DeleteUserByEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			delete(m.users, id)
		}
	}
	return nil
}

func cloneUser(u worktime.User) *worktime.User {
	u.Shifts = append([]worktime.ShiftDefinition(nil), u.Shifts...)
	return &u
}
