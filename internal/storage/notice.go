package storage

import (
	"sync"
	"time"
)

type NoticeMessage struct {
	ChatID    int64
	MessageID int
	Day       time.Time // local date the notice was about
	SentAt    time.Time
}

// NoticeStorage remembers the last "last chance" notice per user so the
// sweep sends at most one per day and the bot can remove the stale one.
type NoticeStorage struct {
	mu       sync.RWMutex
	messages map[int64]NoticeMessage
}

func NewNoticeStorage() *NoticeStorage {
	return &NoticeStorage{
		messages: make(map[int64]NoticeMessage),
	}
}

// SentOn reports whether a notice about day was already sent to the user.
func (s *NoticeStorage) SentOn(userID int64, day time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[userID]
	return ok && msg.Day.Equal(day)
}

func (s *NoticeStorage) Get(userID int64) (NoticeMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[userID]
	return msg, ok
}

func (s *NoticeStorage) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, userID)
}

func (s *NoticeStorage) UpsertAndGetPrev(userID int64, msg NoticeMessage) (prev NoticeMessage, hadPrev bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev = s.messages[userID]
	s.messages[userID] = msg

	return prev, hadPrev
}
