package domain

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrEmptyBatch — источник прочитан, но в нем нет ни одной пригодной записи.
	ErrEmptyBatch = errors.New("no valid records in batch")
	// ErrNoCredentials — не удалось получить токен доступа к API.
	ErrNoCredentials = errors.New("no valid auth credentials")
	// ErrUnknownWorkflow — запрошен workflow, которого нет в реестре.
	ErrUnknownWorkflow = errors.New("unknown workflow")
)

// NilID — «пустой» GUID, которым выгрузка помечает служебные записи.
var NilID = uuid.Nil.String()
