package domain

import (
	"maps"
	"slices"
)

// Access — карта доступов к приложениям: имя приложения -> доступ выдан.
type Access map[string]bool

// Names возвращает имена приложений в стабильном (лексикографическом) порядке.
func (a Access) Names() []string {
	return slices.Sorted(maps.Keys(a))
}

// Clone возвращает независимую копию карты.
func (a Access) Clone() Access {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Record — одна мигрируемая сущность (пользователь, категория, политика).
// Ядро схемы типизировано, всё остальное лежит в Fields и уходит в API без изменений.
type Record struct {
	ID     string
	Name   string
	Access Access
	Fields map[string]any
}

// Schema описывает, под какими ключами ядро записи попадает в JSON для API.
// Пустой ключ означает, что поле не пишется в payload (значение уже есть в Fields).
type Schema struct {
	IDKey     string
	NameKey   string
	AccessKey string
}

// UserSchema — раскладка пользовательских выгрузок.
var UserSchema = Schema{IDKey: "userId", NameKey: "name", AccessKey: "applicationAccess"}

// Field безопасно достает строковое поле из Fields.
func (r Record) Field(key string) string {
	if s, ok := r.Fields[key].(string); ok {
		return s
	}
	return ""
}

// Clone копирует запись; Fields копируется поверхностно.
func (r Record) Clone() Record {
	out := r
	out.Access = r.Access.Clone()
	if r.Fields != nil {
		out.Fields = maps.Clone(r.Fields)
	}
	return out
}

// Payload собирает generic JSON-объект для тела запроса.
func (r Record) Payload(s Schema) map[string]any {
	payload := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		payload[k] = v
	}
	if s.IDKey != "" {
		payload[s.IDKey] = r.ID
	}
	if s.NameKey != "" {
		payload[s.NameKey] = r.Name
	}
	if s.AccessKey != "" && r.Access != nil {
		access := make(map[string]any, len(r.Access))
		for app, granted := range r.Access {
			access[app] = granted
		}
		payload[s.AccessKey] = access
	}
	return payload
}
