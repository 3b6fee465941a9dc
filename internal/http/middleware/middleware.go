package middleware

import "net/http"

// Middleware — звено HTTP-конвейера магазина: оборачивает следующий
// обработчик и возвращает новый.
type Middleware func(http.Handler) http.Handler

// Chain собирает обработчик из цепочки мидлваров: первый в списке
// оказывается внешним. Роутер строит ею внешний контур запроса
// (recover -> request-id -> логирование -> таймаут).
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}

	return wrapped
}

// statusWriter перехватывает статус и число записанных байт ответа
// для access-лога.
type statusWriter struct {
	http.ResponseWriter

	status int
	count  int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	// Write без явного WriteHeader означает 200.
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.count += n
	return n, err
}
