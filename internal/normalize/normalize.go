// Package normalize приводит сырые строки выгрузок к каноническим записям:
// чистка идентификаторов, дедупликация, разбор списков и удаление пустых значений.
// Все функции чистые и не зависят от порядка обработки.
package normalize

import (
	"fmt"
	"strings"

	"github.com/xela07ax/obt-migrator/internal/domain"
)

// CleanID убирает фигурные скобки и пробелы вокруг GUID.
func CleanID(s string) string {
	s = strings.ReplaceAll(s, "{", "")
	s = strings.ReplaceAll(s, "}", "")
	return strings.TrimSpace(s)
}

// Resolvable: идентификатор пригоден для отправки (не пустой и не нулевой GUID).
func Resolvable(id string) bool {
	return id != "" && id != domain.NilID
}

// SplitList разбивает ячейку вида "a, b,,c" на непустые элементы.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// UniqueList оставляет первое вхождение каждого элемента.
func UniqueList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ParseCodes разбирает поле-список из одного элемента ("A1, B2") в список кодов.
// Отсутствующее или битое значение дает пустой список, а не ошибку.
func ParseCodes(v any) []string {
	switch list := v.(type) {
	case []any:
		if len(list) > 0 {
			if s, ok := list[0].(string); ok {
				return SplitList(s)
			}
		}
	case []string:
		if len(list) > 0 {
			return SplitList(list[0])
		}
	}
	return []string{}
}

// DedupIDs оставляет первую запись для каждого идентификатора, порядок сохраняется.
func DedupIDs(records []domain.Record) []domain.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// DedupNames делает имена уникальными: первое вхождение не меняется,
// последующие получают суффиксы _1, _2, ... в исходном порядке.
// Суффикс, который уже встречается в пачке как имя, пропускается,
// поэтому повторное применение ничего не меняет.
func DedupNames(records []domain.Record) []domain.Record {
	taken := make(map[string]struct{}, len(records))
	for _, rec := range records {
		taken[rec.Name] = struct{}{}
	}

	firstSeen := make(map[string]struct{}, len(records))
	next := make(map[string]int)
	out := make([]domain.Record, len(records))
	for i, rec := range records {
		out[i] = rec
		if _, dup := firstSeen[rec.Name]; !dup {
			firstSeen[rec.Name] = struct{}{}
			continue
		}
		for {
			next[rec.Name]++
			candidate := fmt.Sprintf("%s_%d", rec.Name, next[rec.Name])
			if _, busy := taken[candidate]; busy {
				continue
			}
			taken[candidate] = struct{}{}
			out[i].Name = candidate
			break
		}
	}
	return out
}

// FindDuplicateNames возвращает все записи, чье имя встречается больше одного раза.
func FindDuplicateNames(records []domain.Record) []domain.Record {
	counts := make(map[string]int, len(records))
	for _, rec := range records {
		counts[rec.Name]++
	}
	var out []domain.Record
	for _, rec := range records {
		if counts[rec.Name] > 1 {
			out = append(out, rec)
		}
	}
	return out
}
