// Package quota ограничивает, скольким записям за прогон можно выдать доступ
// к одному приложению. Счетчики живут только в памяти процесса.
package quota

import (
	"maps"
	"sync"

	"github.com/xela07ax/obt-migrator/internal/domain"
)

// DefaultLimit: сколько выдач одного приложения допускает API за прогон.
const DefaultLimit = 70

// Limiter: общий для всех воркеров набор счетчиков. Создается один раз на прогон
// и явно передается диспетчеру.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	counters map[string]int
}

func NewLimiter(limit int) *Limiter {
	if limit < 0 {
		limit = 0
	}
	return &Limiter{
		limit:    limit,
		counters: make(map[string]int),
	}
}

// Admit атомарно проверяет и занимает слот для flag.
// Последний слот достается ровно одному из конкурирующих вызовов.
func (l *Limiter) Admit(flag string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counters[flag] >= l.limit {
		return false
	}
	l.counters[flag]++
	return true
}

// Apply прогоняет через квоту каждый запрошенный доступ записи ровно один раз.
// Отказанные доступы не проверяются. Если слот не выдан, доступ в копии
// записи переключается в false и запись помечается как срезанная.
func (l *Limiter) Apply(rec domain.Record) (domain.Record, bool) {
	if len(rec.Access) == 0 {
		return rec, false
	}

	out := rec.Clone()
	clipped := false
	for _, app := range rec.Access.Names() {
		if !rec.Access[app] {
			continue
		}
		if !l.Admit(app) {
			out.Access[app] = false
			clipped = true
		}
	}
	return out, clipped
}

func (l *Limiter) Limit() int { return l.limit }

// Count: сколько выдач flag уже принято.
func (l *Limiter) Count(flag string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counters[flag]
}

// Snapshot возвращает копию всех счетчиков для отчета.
func (l *Limiter) Snapshot() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.counters)
}
