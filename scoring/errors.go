package scoring

import "errors"

// Ошибки движка счёта. Сервисный слой пробрасывает их вызывающему без
// изменения, HTTP-слой мапит на коды ответов.
var (
	// ErrInvalidEvent — событие не согласуется с хвостом журнала:
	// заявленный счёт отличается не ровно на одно очко в пользу
	// объявленного победителя, либо журнал повреждён.
	ErrInvalidEvent = errors.New("rally event is inconsistent with the ledger tail")

	// ErrSetAlreadyDecided — розыгрыш адресован сету, который уже завершён.
	ErrSetAlreadyDecided = errors.New("set already decided")

	// ErrMatchCompleted — матч завершён, журнал заморожен.
	ErrMatchCompleted = errors.New("match already completed")
)
