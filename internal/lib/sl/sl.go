// Package sl содержит вспомогательные функции для структурированного
// логирования через slog: единообразные атрибуты для ошибок и участников.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to revoke access", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Member возвращает slog.Attr с ключом "member_id" — используется во всех
// проходах, чтобы ошибки по конкретному участнику можно было отфильтровать.
func Member(id string) slog.Attr {
	return slog.Attr{
		Key:   "member_id",
		Value: slog.StringValue(id),
	}
}
