package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps request bodies at limit bytes. A declared length over
// the cap is refused before the handler runs; bodies of unknown length fail
// with 413 once the decoder reads past the cap.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req := ctx.Request
		if req.Body == nil || req.Body == http.NoBody {
			ctx.Next()
			return
		}

		if req.ContentLength > limit {
			ctx.Header("Connection", "close")
			abortWithError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large")
			return
		}

		req.Body = http.MaxBytesReader(ctx.Writer, req.Body, limit)
		ctx.Next()
	}
}
