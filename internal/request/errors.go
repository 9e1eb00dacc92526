package request

import "errors"

// Терминальные ошибки выполнения запроса.
//
// Rate limiting, auth-ошибки и повторяемые статусы — не ошибки, а
// исходы попытки (см. outcome): они управляют циклом повторов и
// становятся ошибками только после исчерпания попыток.
var (
	// ErrAuthentication — аутентификация не удалась после refresh и
	// повторной аутентификации.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRetryExceeded — попытки исчерпаны.
	ErrRetryExceeded = errors.New("max retries exceeded")

	// ErrSSLVerification — ошибка проверки SSL-сертификата.
	// Проблема конфигурации: не повторяется.
	ErrSSLVerification = errors.New("SSL verification failed")

	// ErrUnknown — неожиданная фатальная ошибка.
	ErrUnknown = errors.New("unknown request error")
)
