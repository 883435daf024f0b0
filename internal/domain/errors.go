package domain

import "errors"

var (
	// ErrEmptySession is returned when a quiz session is initialized without items.
	ErrEmptySession = errors.New("quiz session has no items")
	// ErrOutOfOrderAnswer is returned when an answer targets an index past the answered frontier.
	ErrOutOfOrderAnswer = errors.New("answer submitted out of order")
	// ErrCorruptPersistedState indicates a loaded snapshot failed structural validation.
	ErrCorruptPersistedState = errors.New("persisted quiz state is corrupt")
	// ErrStoreWriteFailure wraps asynchronous persistence errors before they are logged.
	ErrStoreWriteFailure = errors.New("store write failed")
	// ErrSessionNotFound is returned when no quiz session is open for a topic.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrTopicNotFound indicates the vocabulary pool has no such topic.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrOptionNotFound indicates a submitted option is not one of the item's options.
	ErrOptionNotFound = errors.New("option not found")
	// ErrFrontierNotAnswered is returned when navigating forward past the first unanswered item.
	ErrFrontierNotAnswered = errors.New("current item has not been answered")
)
