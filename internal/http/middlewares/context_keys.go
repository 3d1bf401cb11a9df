package middlewares

// Keys stored on the gin context.
const (
	CtxRequestID = "request_id"
	CtxJobID     = "job_id"

	ctxIdentityKey = "auth.identity"
	ctxClaimsKey   = "auth.claims"
	ctxTokenKey    = "auth.token"
)
