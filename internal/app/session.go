package app

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// CatalogRepository loads question catalogs (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, catalogID string) ([]domain.Question, error)
}

// Role classifies a connection at join time.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// ParseRole maps a wire role string to a Role; anything unrecognized is a player.
func ParseRole(raw string) Role {
	if raw == string(RoleHost) {
		return RoleHost
	}
	return RolePlayer
}

// DefaultDisplayName is used when a player joins without a name.
const DefaultDisplayName = "Anonymous"

// Session owns the single live quiz: the question catalog, the current-question
// pointer, the participant records, and the two broadcast audiences.
//
// One mutex spans each event from mutation through every resulting emission, so
// no connection can observe a participant with a recorded answer but a stale
// score, or interleave between the already-answered check and the record.
type Session struct {
	mu           sync.Mutex
	questions    []domain.Question
	currentIndex int
	participants map[string]*domain.Participant
	hosts        map[string]chan domain.Snapshot
	players      map[string]chan domain.QuestionUpdate
}

// NewSession builds the session around a non-empty catalog. The catalog slice
// is treated as read-only from here on.
func NewSession(questions []domain.Question) (*Session, error) {
	if len(questions) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	return &Session{
		questions:    questions,
		participants: make(map[string]*domain.Participant),
		hosts:        make(map[string]chan domain.Snapshot),
		players:      make(map[string]chan domain.QuestionUpdate),
	}, nil
}

// JoinHost adds the connection to the host audience. It returns the current
// snapshot, a channel of snapshot updates, and a cancel function that detaches
// the connection. The caller must invoke cancel to avoid leaks.
func (s *Session) JoinHost(connID string) (domain.Snapshot, <-chan domain.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.hosts[connID]
	if !ok {
		ch = make(chan domain.Snapshot, 8)
		s.hosts[connID] = ch
	}
	return s.snapshotLocked(), ch, func() { s.Disconnect(connID) }
}

// JoinPlayer creates a participant for the connection and adds it to the player
// audience. It returns the sanitized current question, a channel of question
// updates, and a cancel function. Hosts also learn about the new participant.
func (s *Session) JoinPlayer(connID, displayName string) (domain.QuestionUpdate, <-chan domain.QuestionUpdate, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if displayName == "" {
		displayName = DefaultDisplayName
	}
	if _, ok := s.participants[connID]; !ok {
		s.participants[connID] = &domain.Participant{
			ConnectionID: connID,
			DisplayName:  displayName,
			Score:        0,
			Answers:      make(map[int]int),
		}
	}
	ch, ok := s.players[connID]
	if !ok {
		ch = make(chan domain.QuestionUpdate, 8)
		s.players[connID] = ch
	}
	s.broadcastSnapshotLocked()
	return s.currentQuestionLocked(), ch, func() { s.Disconnect(connID) }
}

// Disconnect removes the connection from both audiences and destroys its
// participant record, if any. Calling it for an unknown or already removed
// connection is a no-op.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.hosts[connID]; ok {
		delete(s.hosts, connID)
		close(ch)
	}
	if ch, ok := s.players[connID]; ok {
		delete(s.players, connID)
		close(ch)
	}
	if _, ok := s.participants[connID]; ok {
		delete(s.participants, connID)
		s.broadcastSnapshotLocked()
	}
}

// Submit records an answer for the participant behind connID against the
// question at questionIndex. Unknown connections, out-of-range indexes, and
// repeat answers for the same question are absorbed silently. Recording the
// answer and crediting the score happen under the same lock hold.
func (s *Session) Submit(connID string, questionIndex, choiceIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[connID]
	if !ok {
		return
	}
	if questionIndex < 0 || questionIndex >= len(s.questions) {
		return
	}
	q := s.questions[questionIndex]
	if _, answered := p.Answers[q.ID]; answered {
		return
	}
	p.Answers[q.ID] = choiceIndex
	if choiceIndex == q.Answer {
		p.Score++
	}
	s.broadcastSnapshotLocked()
}

// Advance moves to the next question, clamped at the last one. Both audiences
// are notified even when the index did not move.
func (s *Session) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
	}
	s.broadcastQuestionLocked()
	s.broadcastSnapshotLocked()
}

// Retreat moves to the previous question, clamped at the first one.
func (s *Session) Retreat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentIndex > 0 {
		s.currentIndex--
	}
	s.broadcastQuestionLocked()
	s.broadcastSnapshotLocked()
}

// Snapshot returns the full session state as a host would see it.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CurrentQuestion returns the sanitized view of the live question.
func (s *Session) CurrentQuestion() domain.QuestionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentQuestionLocked()
}

func (s *Session) broadcastSnapshotLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.hosts {
		select {
		case ch <- snap:
		default:
			// Evict the oldest buffered update so a slow host cannot block
			// event handling.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) broadcastQuestionLocked() {
	update := s.currentQuestionLocked()
	for _, ch := range s.players {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	views := make(map[string]domain.ParticipantView, len(s.participants))
	for id, p := range s.participants {
		answers := make(map[int]int, len(p.Answers))
		for qid, choice := range p.Answers {
			answers[qid] = choice
		}
		views[id] = domain.ParticipantView{
			Name:    p.DisplayName,
			Score:   p.Score,
			Answers: answers,
		}
	}
	return domain.Snapshot{
		Questions:    s.questions,
		CurrentIndex: s.currentIndex,
		Participants: views,
	}
}

func (s *Session) currentQuestionLocked() domain.QuestionUpdate {
	q := domain.Sanitize(s.questions[s.currentIndex])
	return domain.QuestionUpdate{Index: s.currentIndex, Question: &q}
}
