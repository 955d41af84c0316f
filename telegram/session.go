package telegram

import (
	"sync"

	"pitchtrainer/modelapi"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateSelectingRole
	stateInDialog
)

// session is the per-chat dialog state. It mirrors the conversation flow:
// idle until /start, selecting while the role keyboard is up, in dialog once
// a persona answered, back to idle after a win or /stop.
type session struct {
	state        sessionState
	roleKey      string
	dialog       []modelapi.DialogMessage
	messageCount int
	voiceReplies bool
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: map[int64]*session{}}
}

func (s *sessionStore) get(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{}
		s.sessions[chatID] = sess
	}
	return sess
}

// beginSelection puts the chat into role selection, dropping any dialog in
// progress. /start re-entry is allowed mid-dialog.
func (s *sessionStore) beginSelection(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{}
		s.sessions[chatID] = sess
	}
	sess.state = stateSelectingRole
	sess.roleKey = ""
	sess.dialog = nil
	sess.messageCount = 0
}

// startDialog records the chosen role and the client's opening line.
func (s *sessionStore) startDialog(chatID int64, roleKey string, clientOpening string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{}
		s.sessions[chatID] = sess
	}
	sess.state = stateInDialog
	sess.roleKey = roleKey
	sess.dialog = []modelapi.DialogMessage{{Role: modelapi.ASSISTANT, Content: clientOpening}}
	sess.messageCount = 0
}

// appendTurn records one salesperson message and the client's reply.
func (s *sessionStore) appendTurn(chatID int64, userText string, clientReply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok || sess.state != stateInDialog {
		return
	}
	sess.dialog = append(sess.dialog,
		modelapi.DialogMessage{Role: modelapi.USER, Content: userText},
		modelapi.DialogMessage{Role: modelapi.ASSISTANT, Content: clientReply},
	)
	sess.messageCount++
}

// snapshot returns a copy of the chat's state safe to use outside the lock.
func (s *sessionStore) snapshot(chatID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return session{}
	}
	copied := *sess
	copied.dialog = append([]modelapi.DialogMessage(nil), sess.dialog...)
	return copied
}

// reset returns the chat to idle. The voice preference survives.
func (s *sessionStore) reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return
	}
	sess.state = stateIdle
	sess.roleKey = ""
	sess.dialog = nil
	sess.messageCount = 0
}

// toggleVoice flips spoken replies for the chat and returns the new value.
func (s *sessionStore) toggleVoice(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{}
		s.sessions[chatID] = sess
	}
	sess.voiceReplies = !sess.voiceReplies
	return sess.voiceReplies
}
