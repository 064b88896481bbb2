package handler

type ContextKey string

var (
	RoleCtxKey       ContextKey = "role"
	SubCtxKey        ContextKey = "sub"
	MyInfoCtx        ContextKey = "myInfo"
	SchedulingRunCtx ContextKey = "schedulingRun"
	RequestIDCtx     ContextKey = "requestID"
)
