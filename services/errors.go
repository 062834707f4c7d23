package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
// Ошибки самого движка счёта (ErrInvalidEvent, ErrSetAlreadyDecided,
// ErrMatchCompleted) живут в пакете scoring и пробрасываются как есть.
var (
	// Ресурс не найден
	ErrMatchNotFound      = errors.New("match not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrRallyNotFound      = errors.New("rally not found")

	// ErrMatchOutOfOrder — розыгрыш подан против матча, который не может
	// его принять: матч отменён либо ещё не активен.
	ErrMatchOutOfOrder = errors.New("match is not accepting rallies")

	// ErrInvalidSide — сторона вне {1, 2}.
	ErrInvalidSide = errors.New("side must be participant 1 or participant 2")

	// ErrPersistenceFailure — коллаборатор хранения не смог зафиксировать
	// запись; наружу неотличимо от отклонённой подачи (частичных коммитов
	// не бывает). Повторы — ответственность вызывающего.
	ErrPersistenceFailure = errors.New("failed to persist scoring record")
)
