package handlers

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// writeJSON сериализует ответ и выставляет код статуса.
func writeJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(payload)
}

// writeError — единый формат ошибок API: {"detail": "..."}.
func writeError(ctx *fasthttp.RequestCtx, status int, detail string) {
	writeJSON(ctx, status, map[string]string{"detail": detail})
}

// pathParam достаёт строковый параметр маршрута.
func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return ""
	}
	return v
}

// authUserID возвращает ID пользователя, положенный middleware после проверки JWT.
func authUserID(ctx *fasthttp.RequestCtx) string {
	v, ok := ctx.UserValue("user_id").(string)
	if !ok {
		return ""
	}
	return v
}
