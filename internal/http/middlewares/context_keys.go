package middlewares

// Keys stashed on the gin context. Plain strings so handlers and the
// request logger can read them without importing this package's types.
const (
	CtxRequestID = "request_id"
	CtxJobID     = "job_id"
	CtxProjectID = "project_id"
	CtxUserID    = "auth.userID"
	CtxEmail     = "auth.email"
	CtxRole      = "auth.role"
)
