package domain

import "errors"

var (
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrSessionBusy       = errors.New("session busy")
	ErrLoginFailed       = errors.New("login failed")
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrControlNotFound   = errors.New("control not found")
	ErrUnknownAction     = errors.New("unknown action")
	ErrMalformedJob      = errors.New("malformed job")
	ErrWorkerCrash       = errors.New("worker crashed")
	ErrStoreUpdateFailed = errors.New("store update failed")
)

// UnknownActionError carries the rejected action name.
type UnknownActionError struct {
	Name string
}

func (e UnknownActionError) Error() string { return "Unknown action: " + e.Name }

func (e UnknownActionError) Is(target error) bool { return target == ErrUnknownAction }
