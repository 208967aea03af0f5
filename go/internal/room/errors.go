package room

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomFull     = errors.New("room is full")
	ErrNotMember    = errors.New("player is not in this room")
	ErrRaceFinished = errors.New("race already finished, reset the room first")
	ErrNotRunning   = errors.New("race is not running")
)
