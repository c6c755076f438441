package domain

import "errors"

var (
	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = errors.New("unauthorized")
	// ErrMissingIDs is returned when a submission omits groupId or lessonId.
	ErrMissingIDs = errors.New("groupId and lessonId are required")
	// ErrGroupNotFound indicates the referenced group does not exist.
	ErrGroupNotFound = errors.New("group not found")
	// ErrLessonNotFound indicates the referenced lesson does not exist.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrUserNotFound indicates the caller's user record does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotGroupMember is returned when the caller is not assigned to the group.
	ErrNotGroupMember = errors.New("user does not belong to the group")
	// ErrLessonNotInGroup is returned when the group's allow-list excludes the lesson.
	ErrLessonNotInGroup = errors.New("lesson is not assigned to this group")
	// ErrDuplicateAttempt signals a (user, lesson, attempt) uniqueness violation.
	ErrDuplicateAttempt = errors.New("duplicate attempt")
	// ErrEmailTaken is returned when registering with an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
