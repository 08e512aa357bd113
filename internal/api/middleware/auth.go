package middleware

import (
	"crypto/subtle"
	"net/http"

	"basketarb/pkg/crypto"
)

// BasicAuth защищает API базовой аутентификацией
//
// Пароль хранится как bcrypt-хэш, сверка имени пользователя
// constant-time. Пустое имя пользователя отключает защиту: бот
// обычно живет за локальным reverse proxy
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if username == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="basketarb"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passMatch := crypto.CheckPasswordMatch(pass, passwordHash)
			if !userMatch || !passMatch {
				w.Header().Set("WWW-Authenticate", `Basic realm="basketarb"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
