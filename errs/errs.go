// errs/errs.go
package errs

import (
	"errors"
	"fmt"
)

// Kind 错误大类，决定调用方如何处理（重试、提示、忽略）
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindIllegalState
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIllegalState:
		return "illegal_state"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Code identifies the precise rule that rejected an operation.
type Code string

const (
	CodeInvalidInput          Code = "invalid_input"
	CodeRoomNotFound          Code = "room_not_found"
	CodePlayerNotFound        Code = "player_not_found"
	CodeRoomAlreadyStarted    Code = "room_already_started"
	CodeDuplicateName         Code = "duplicate_name"
	CodeNotHost               Code = "not_host"
	CodeInsufficientPlayers   Code = "insufficient_players"
	CodeGameAlreadyStarted    Code = "game_already_started"
	CodeWrongPhase            Code = "wrong_phase"
	CodeWrongRole             Code = "wrong_role"
	CodeInvalidTarget         Code = "invalid_target"
	CodeDeadPlayer            Code = "dead_player"
	CodeActionNotYetAvailable Code = "action_not_yet_available"
	CodeHostCannotExit        Code = "host_cannot_exit"
	CodeNoNominations         Code = "no_nominations"
	CodeConflict              Code = "conflict"
)

// Error is returned for every rejected operation. Room state is never
// modified when one is returned.
type Error struct {
	Kind   Kind
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Is matches on Code so that errors.Is(err, ErrNotHost) holds for any detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidInput          = &Error{Kind: KindValidation, Code: CodeInvalidInput, Detail: "invalid input"}
	ErrRoomNotFound          = &Error{Kind: KindNotFound, Code: CodeRoomNotFound, Detail: "room not found"}
	ErrPlayerNotFound        = &Error{Kind: KindNotFound, Code: CodePlayerNotFound, Detail: "player not found"}
	ErrRoomAlreadyStarted    = &Error{Kind: KindIllegalState, Code: CodeRoomAlreadyStarted, Detail: "room is no longer accepting players"}
	ErrDuplicateName         = &Error{Kind: KindIllegalState, Code: CodeDuplicateName, Detail: "name already taken in this room"}
	ErrNotHost               = &Error{Kind: KindIllegalState, Code: CodeNotHost, Detail: "only the host can do this"}
	ErrInsufficientPlayers   = &Error{Kind: KindIllegalState, Code: CodeInsufficientPlayers, Detail: "not enough players"}
	ErrGameAlreadyStarted    = &Error{Kind: KindIllegalState, Code: CodeGameAlreadyStarted, Detail: "game already started"}
	ErrWrongPhase            = &Error{Kind: KindIllegalState, Code: CodeWrongPhase, Detail: "not allowed in the current phase"}
	ErrWrongRole             = &Error{Kind: KindIllegalState, Code: CodeWrongRole, Detail: "role cannot perform this action"}
	ErrInvalidTarget         = &Error{Kind: KindIllegalState, Code: CodeInvalidTarget, Detail: "invalid target"}
	ErrDeadPlayer            = &Error{Kind: KindIllegalState, Code: CodeDeadPlayer, Detail: "dead players cannot act"}
	ErrActionNotYetAvailable = &Error{Kind: KindIllegalState, Code: CodeActionNotYetAvailable, Detail: "action not yet available"}
	ErrHostCannotExit        = &Error{Kind: KindIllegalState, Code: CodeHostCannotExit, Detail: "host must end the game instead of exiting"}
	ErrNoNominations         = &Error{Kind: KindIllegalState, Code: CodeNoNominations, Detail: "no nominations to tally"}
	ErrConflict              = &Error{Kind: KindConflict, Code: CodeConflict, Detail: "room changed concurrently, retry with fresh state"}
)

// New copies sentinel with a detail message naming what was violated.
func New(sentinel *Error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:   sentinel.Kind,
		Code:   sentinel.Code,
		Detail: fmt.Sprintf(format, args...),
	}
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the Code of err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
