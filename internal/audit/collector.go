package audit

/*
collector.go собирает итоги диспетчера для отчетов.

- Append-only: воркеры только добавляют записи, ничего не теряется и не переписывается.
- O(1) на запись под мьютексом, диспетчер не ждет ничего, кроме короткой блокировки.
- Порядок прихода не гарантируется и не важен; выдаются копии последовательностей.
*/

import (
	"slices"
	"sync"

	"github.com/xela07ax/obt-migrator/internal/domain"
)

// Recorder: то, что нужно диспетчеру от агрегатора.
type Recorder interface {
	Add(o domain.Outcome)
	AddOverLimit(r domain.OverLimitRecord)
}

type Collector struct {
	mu        sync.Mutex
	outcomes  []domain.Outcome
	overLimit []domain.OverLimitRecord
}

func NewCollector(expected int) *Collector {
	if expected < 0 {
		expected = 0
	}
	return &Collector{outcomes: make([]domain.Outcome, 0, expected)}
}

func (c *Collector) Add(o domain.Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

func (c *Collector) AddOverLimit(r domain.OverLimitRecord) {
	r.Access = r.Access.Clone()
	c.mu.Lock()
	c.overLimit = append(c.overLimit, r)
	c.mu.Unlock()
}

// Outcomes возвращает копию собранных итогов.
func (c *Collector) Outcomes() []domain.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.outcomes)
}

// OverLimit возвращает копию записей, срезанных квотой.
func (c *Collector) OverLimit() []domain.OverLimitRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.overLimit)
}

// Summary считает итоги по статусам.
func (c *Collector) Summary() domain.RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := domain.RunSummary{Total: len(c.outcomes), Clipped: len(c.overLimit)}
	for _, o := range c.outcomes {
		if o.Status == domain.StatusSucceeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
