package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error a service returns to a caller either wraps one of
// these or is a storage failure.
var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)

	ErrCannotChatSelf     = fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	ErrGroupNameRequired  = fmt.Errorf("%w: group name is required", ErrValidation)
	ErrTooFewMembers      = fmt.Errorf("%w: a group needs at least 2 other members", ErrValidation)
	ErrNotGroup           = fmt.Errorf("%w: conversation is not a group", ErrValidation)
	ErrAlreadyMember      = fmt.Errorf("%w: user is already a member", ErrValidation)
	ErrNotMember          = fmt.Errorf("%w: user is not a member", ErrValidation)
	ErrEmptyContent       = fmt.Errorf("%w: message content is required", ErrValidation)
	ErrNoMessagesSelected = fmt.Errorf("%w: no messages selected", ErrValidation)

	ErrNotParticipant  = fmt.Errorf("%w: you are not a participant of this conversation", ErrPermission)
	ErrNotGroupAdmin   = fmt.Errorf("%w: only the group admin can perform this action", ErrPermission)
	ErrNotMessageOwner = fmt.Errorf("%w: only the message sender can perform this action", ErrPermission)

	ErrEmailTaken   = fmt.Errorf("%w: email already taken", ErrConflict)
	ErrInvalidCreds = errors.New("invalid email or password")
)
