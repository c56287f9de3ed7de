package domain

import (
	"strconv"
	"time"
)

// Status — итог обработки одной записи.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Code — HTTP-статус ответа либо отрицательный сентинел, если статуса нет.
type Code int

const (
	// CodeTransportError — запрос не дошел до ответа (таймаут, обрыв соединения и т.п.).
	CodeTransportError Code = -1
	// CodeInvalidData — запрос не был отправлен: в записи нет обязательных данных.
	CodeInvalidData Code = -2
)

func (c Code) String() string {
	switch c {
	case CodeTransportError:
		return "transport error"
	case CodeInvalidData:
		return "invalid data"
	}
	return strconv.Itoa(int(c))
}

// ParseCode — обратное к String; нераспознанное значение считается ошибкой транспорта.
func ParseCode(s string) Code {
	switch s {
	case "transport error":
		return CodeTransportError
	case "invalid data":
		return CodeInvalidData
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return CodeTransportError
	}
	return Code(n)
}

// Outcome — неизменяемый результат отправки одной записи.
type Outcome struct {
	RecordID string
	Name     string
	Status   Status
	Code     Code
	Message  string
}

func Succeeded(rec Record, code int, msg string) Outcome {
	return Outcome{RecordID: rec.ID, Name: rec.Name, Status: StatusSucceeded, Code: Code(code), Message: msg}
}

func Failed(rec Record, code Code, msg string) Outcome {
	return Outcome{RecordID: rec.ID, Name: rec.Name, Status: StatusFailed, Code: code, Message: msg}
}

// OverLimitRecord — запись, у которой квота срезала хотя бы один доступ.
// Access содержит значения в том виде, в каком они ушли в API.
type OverLimitRecord struct {
	RecordID string
	Name     string
	FullName string
	Access   Access
}

// RunSummary — сводка по одному прогону workflow.
type RunSummary struct {
	RunID     string
	Workflow  string
	Total     int
	Succeeded int
	Failed    int
	Clipped   int
	Duration  time.Duration
}
