package client

import "errors"

var (
	ErrNoSelection  = errors.New("no option selected")
	ErrBattleEnded  = errors.New("battle already ended")
	ErrBattleActive = errors.New("battle already active")
	ErrSubmitting   = errors.New("submission in progress")
)
