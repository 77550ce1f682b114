package domain

import "errors"

var (
	ErrNoRoomSelected       = errors.New("no conversation selected")
	ErrNoActiveRoom         = errors.New("no active conversation")
	ErrRoomNotFound         = errors.New("chat room not found")
	ErrNoConsultation       = errors.New("no completed consultation for this room")
	ErrAlreadyRated         = errors.New("consultation already rated")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrEmptyProblem         = errors.New("problem description is empty")
	ErrProblemTooLong       = errors.New("problem description too long")
	ErrImageTooLarge        = errors.New("image exceeds the maximum allowed size")
	ErrUnsupportedImageType = errors.New("only JPEG and PNG images are supported")
	ErrSendInProgress       = errors.New("a send is already in progress")
	ErrNotFarmer            = errors.New("operation is only available to farmers")
	ErrNotExpert            = errors.New("operation is only available to experts")
	ErrCounterpartNotExpert = errors.New("counterpart is not an expert")
	ErrSessionClosed        = errors.New("chat session is closed")
)
