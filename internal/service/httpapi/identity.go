package httpapi

import (
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// Заголовки, которые выставляет шлюз аутентификации после проверки токена.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
)

// PrincipalFromRequest читает пользователя из доверенных заголовков шлюза.
func PrincipalFromRequest(r *http.Request) domain.Principal {
	return domain.Principal{
		UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Email:  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Name:   strings.TrimSpace(r.Header.Get(HeaderUserName)),
		Role:   strings.TrimSpace(r.Header.Get(HeaderUserRole)),
	}
}
