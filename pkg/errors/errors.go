package errors

import "fmt"

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 通用错误。
var (
	Unauthorized   = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	InvalidRequest = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	InvalidUserID  = Definition{Code: "INVALID_USER_ID", Message: "Invalid worker ID format"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
)

// 令牌。
var (
	TokenGeneratorNotInitialized = Definition{Code: "TOKEN_GENERATOR_NOT_INITIALIZED", Message: "Token generator not initialized"}
	UnexpectedSigningMethod      = Definition{Code: "TOKEN_SIGNING_METHOD_INVALID", Message: "Unexpected signing method"}
	InvalidToken                 = Definition{Code: "TOKEN_INVALID", Message: "Invalid token"}
	InvalidTokenType             = Definition{Code: "TOKEN_TYPE_INVALID", Message: "Invalid token type"}
)

// 人员与工地。
var (
	WorkerNotFound = Definition{Code: "WORKER_NOT_FOUND", Message: "Worker not found"}
	WorkerInactive = Definition{Code: "WORKER_INACTIVE", Message: "Worker is not active"}
	SiteNotFound   = Definition{Code: "SITE_NOT_FOUND", Message: "Site not found"}
)

// 工作会话（打卡）模块错误。
var (
	SessionAlreadyOpen = Definition{Code: "SESSION_ALREADY_OPEN", Message: "Worker already has an active session"}
	SessionNotOpen     = Definition{Code: "SESSION_NOT_OPEN", Message: "Session is not open"}
	SessionNotFound    = Definition{Code: "SESSION_NOT_FOUND", Message: "Session not found"}
	NoOpenSession      = Definition{Code: "NO_OPEN_SESSION", Message: "Worker has no open session"}
	CloseReasonInvalid = Definition{Code: "CLOSE_REASON_INVALID", Message: "Close reason invalid"}
)

// 定位与电子围栏。
var (
	PositionInvalid = Definition{Code: "POSITION_INVALID", Message: "Position reading invalid"}
	GeofenceMissing = Definition{Code: "GEOFENCE_MISSING", Message: "Site has no usable geofence"}
	GeofenceOutside = Definition{Code: "GEOFENCE_OUTSIDE", Message: "Position is outside the site geofence"}
)

// 午休。
var (
	LunchTransitionInvalid = Definition{Code: "LUNCH_TRANSITION_INVALID", Message: "Lunch break transition invalid"}
	LunchNotFound          = Definition{Code: "LUNCH_NOT_FOUND", Message: "Lunch record not found"}
)

// 日结与薪资。
var (
	SummaryNotFound    = Definition{Code: "SUMMARY_NOT_FOUND", Message: "Daily summary not found"}
	PayrollUnknownRole = Definition{Code: "PAYROLL_UNKNOWN_ROLE", Message: "Unknown payroll role"}
	DateInvalid        = Definition{Code: "DATE_INVALID", Message: "Date must be YYYY-MM-DD"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	Unauthorized.Code:           Unauthorized,
	InvalidRequest.Code:         InvalidRequest,
	InvalidUserID.Code:          InvalidUserID,
	TooManyRequests.Code:        TooManyRequests,
	InvalidToken.Code:           InvalidToken,
	InvalidTokenType.Code:       InvalidTokenType,
	WorkerNotFound.Code:         WorkerNotFound,
	WorkerInactive.Code:         WorkerInactive,
	SiteNotFound.Code:           SiteNotFound,
	SessionAlreadyOpen.Code:     SessionAlreadyOpen,
	SessionNotOpen.Code:         SessionNotOpen,
	SessionNotFound.Code:        SessionNotFound,
	NoOpenSession.Code:          NoOpenSession,
	CloseReasonInvalid.Code:     CloseReasonInvalid,
	PositionInvalid.Code:        PositionInvalid,
	GeofenceMissing.Code:        GeofenceMissing,
	GeofenceOutside.Code:        GeofenceOutside,
	LunchTransitionInvalid.Code: LunchTransitionInvalid,
	LunchNotFound.Code:          LunchNotFound,
	SummaryNotFound.Code:        SummaryNotFound,
	PayrollUnknownRole.Code:     PayrollUnknownRole,
	DateInvalid.Code:            DateInvalid,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// Coded 由携带上下文的业务错误实现，response 层据此取错误码。
type Coded interface {
	error
	Definition() Definition
}

// AlreadyOpenError 工人已有未结束的会话。
type AlreadyOpenError struct {
	SessionID int64
	SiteID    int64
	SiteName  string
}

func (e *AlreadyOpenError) Error() string {
	return fmt.Sprintf("already active at site %s", e.SiteName)
}

func (e *AlreadyOpenError) Definition() Definition {
	return Definition{Code: SessionAlreadyOpen.Code, Message: e.Error()}
}

func (e *AlreadyOpenError) Is(target error) bool {
	return target == SessionAlreadyOpen
}

// NotOpenError 会话已关闭。Conflict 表示是在并发关闭中落败的一方。
type NotOpenError struct {
	SessionID int64
	Conflict  bool
}

func (e *NotOpenError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("session %d was closed concurrently", e.SessionID)
	}
	return fmt.Sprintf("session %d is not open", e.SessionID)
}

func (e *NotOpenError) Definition() Definition {
	return Definition{Code: SessionNotOpen.Code, Message: e.Error()}
}

func (e *NotOpenError) Is(target error) bool {
	return target == SessionNotOpen
}

// UnknownRoleError 费率表中不存在的岗位，按零薪处理，不中断批处理。
type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown payroll role %q", e.Role)
}

func (e *UnknownRoleError) Definition() Definition {
	return Definition{Code: PayrollUnknownRole.Code, Message: e.Error()}
}

func (e *UnknownRoleError) Is(target error) bool {
	return target == PayrollUnknownRole
}

// StaleGeofenceError 工地缺少坐标或半径，只记录日志，判定按在场处理。
type StaleGeofenceError struct {
	SiteID int64
}

func (e *StaleGeofenceError) Error() string {
	return fmt.Sprintf("site %d has no usable geofence", e.SiteID)
}

func (e *StaleGeofenceError) Definition() Definition {
	return Definition{Code: GeofenceMissing.Code, Message: e.Error()}
}

func (e *StaleGeofenceError) Is(target error) bool {
	return target == GeofenceMissing
}

// OutsideGeofenceError 仅在 reject 策略下由开工返回。
type OutsideGeofenceError struct {
	SiteID         int64
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutsideGeofenceError) Error() string {
	return fmt.Sprintf("position is %.0fm from site %d (radius %.0fm)", e.DistanceMeters, e.SiteID, e.RadiusMeters)
}

func (e *OutsideGeofenceError) Definition() Definition {
	return Definition{Code: GeofenceOutside.Code, Message: e.Error()}
}

func (e *OutsideGeofenceError) Is(target error) bool {
	return target == GeofenceOutside
}

// SkipMessageError 消费者遇到重复消息时返回，消息会被确认而不重新入队。
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return e.Reason
}
