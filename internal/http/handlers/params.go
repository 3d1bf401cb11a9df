package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// pathID reads a positive integer path parameter. It answers 422 itself
// when the value is not one.
func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondFieldError(ctx, name, "int", "must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
