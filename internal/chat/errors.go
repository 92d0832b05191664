package chat

import "errors"

var (
	// ErrAuthenticationRequired is returned when an operation runs without a
	// resolved current user.
	ErrAuthenticationRequired = errors.New("user not authenticated")

	// ErrInvalidParticipants is returned when a chat would have a missing or
	// self-referential participant pair.
	ErrInvalidParticipants = errors.New("invalid chat participants")

	// ErrNotParticipant is returned when a user acts on a chat they are not a
	// member of.
	ErrNotParticipant = errors.New("user is not a participant of this chat")

	// ErrNotMessageSender is returned when a user edits, deletes or recalls a
	// message they did not send.
	ErrNotMessageSender = errors.New("user is not the message sender")

	// ErrEmptyMessage is returned when a text message has no content and no
	// attachments.
	ErrEmptyMessage = errors.New("message has no content")

	// ErrMessageImmutable is returned when editing a deleted or recalled
	// message.
	ErrMessageImmutable = errors.New("message can no longer be modified")

	// ErrUploadsUnavailable is returned when a message carries attachments but
	// no upload backend is configured.
	ErrUploadsUnavailable = errors.New("attachment uploads are not available")
)
