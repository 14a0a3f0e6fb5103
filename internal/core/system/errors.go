package system

import "errors"

var (
	ErrDuplicateRegistration = errors.New("system already registered")
	ErrNotRegistered         = errors.New("system not registered")
	ErrNilSystem             = errors.New("nil system")
	ErrInvalidMeta           = errors.New("invalid system metadata")
	ErrReentrantDispatch     = errors.New("phase dispatched while already dispatching")
)
