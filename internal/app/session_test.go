package app_test

import (
	"encoding/json"
	"strings"
	"testing"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func TestNewSessionRejectsEmptyCatalog(t *testing.T) {
	if _, err := app.NewSession(nil); err != domain.ErrEmptyCatalog {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestScoringAndSnapshot(t *testing.T) {
	session := newTestSession(t)

	_, _, cancelHost := session.JoinHost("h1")
	defer cancelHost()
	_, _, cancelAl := session.JoinPlayer("p1", "Al")
	defer cancelAl()

	session.Submit("p1", 0, 2) // correct
	snap := session.Snapshot()
	al, ok := snap.Participants["p1"]
	if !ok {
		t.Fatalf("expected participant p1 in snapshot")
	}
	if al.Score != 1 {
		t.Fatalf("expected score 1, got %d", al.Score)
	}
	if got := al.Answers[1]; got != 2 {
		t.Fatalf("expected answer 2 for question 1, got %d", got)
	}

	session.Submit("p1", 1, 0) // wrong
	snap = session.Snapshot()
	if snap.Participants["p1"].Score != 1 {
		t.Fatalf("wrong answer must not change score, got %d", snap.Participants["p1"].Score)
	}
	assertScoreConsistent(t, snap)
}

func TestRepeatSubmissionIsIgnored(t *testing.T) {
	session := newTestSession(t)
	_, _, cancel := session.JoinPlayer("p1", "Al")
	defer cancel()

	session.Submit("p1", 0, 2)
	session.Submit("p1", 0, 0) // second answer for the same question

	snap := session.Snapshot()
	if got := snap.Participants["p1"].Answers[1]; got != 2 {
		t.Fatalf("expected first answer to stick, got %d", got)
	}
	if snap.Participants["p1"].Score != 1 {
		t.Fatalf("expected score 1 after repeat, got %d", snap.Participants["p1"].Score)
	}
}

func TestSubmitAbsorbsInvalidInput(t *testing.T) {
	session := newTestSession(t)
	_, _, cancel := session.JoinPlayer("p1", "Al")
	defer cancel()

	session.Submit("ghost", 0, 2) // unknown connection
	session.Submit("p1", 99, 2)   // index out of range
	session.Submit("p1", -1, 2)

	snap := session.Snapshot()
	if len(snap.Participants["p1"].Answers) != 0 {
		t.Fatalf("expected no recorded answers, got %v", snap.Participants["p1"].Answers)
	}
	if len(snap.Participants) != 1 {
		t.Fatalf("unknown connections must not create participants, got %d", len(snap.Participants))
	}
}

func TestAdvanceRetreatStayInBounds(t *testing.T) {
	session := newTestSession(t)

	session.Retreat()
	if got := session.Snapshot().CurrentIndex; got != 0 {
		t.Fatalf("retreat at first question must clamp to 0, got %d", got)
	}

	for i := 0; i < 5; i++ {
		session.Advance()
	}
	if got := session.Snapshot().CurrentIndex; got != 1 {
		t.Fatalf("advance past last question must clamp, got %d", got)
	}

	session.Retreat()
	if got := session.Snapshot().CurrentIndex; got != 0 {
		t.Fatalf("expected retreat back to 0, got %d", got)
	}
}

func TestLateAnswerLandsOnItsOwnQuestion(t *testing.T) {
	session := newTestSession(t)
	_, _, cancel := session.JoinPlayer("p1", "Al")
	defer cancel()

	session.Advance()
	session.Submit("p1", 0, 2) // answers the previous question after the host moved on

	snap := session.Snapshot()
	if got := snap.Participants["p1"].Answers[1]; got != 2 {
		t.Fatalf("expected answer recorded against question 1, got %v", snap.Participants["p1"].Answers)
	}
	if snap.Participants["p1"].Score != 1 {
		t.Fatalf("expected late answer still scored, got %d", snap.Participants["p1"].Score)
	}
}

func TestDisconnectRemovesParticipantAndIsIdempotent(t *testing.T) {
	session := newTestSession(t)
	session.JoinPlayer("p1", "Al")

	session.Disconnect("p1")
	if _, ok := session.Snapshot().Participants["p1"]; ok {
		t.Fatalf("expected participant removed on disconnect")
	}
	session.Disconnect("p1") // must not panic or emit
	session.Disconnect("never-joined")
}

func TestSubmissionOrderAcrossParticipantsIsIrrelevant(t *testing.T) {
	run := func(first, second string) map[string]domain.ParticipantView {
		session := newTestSession(t)
		session.JoinPlayer("p1", "Al")
		session.JoinPlayer("p2", "Bo")
		session.Submit(first, 0, 2)
		session.Submit(second, 0, 1)
		return session.Snapshot().Participants
	}

	a := run("p1", "p2")
	b := run("p2", "p1")
	if a["p1"].Score != 1 || a["p2"].Score != 0 {
		t.Fatalf("unexpected scores: %+v", a)
	}
	if b["p1"].Score != a["p1"].Score || b["p2"].Score != a["p2"].Score {
		t.Fatalf("scores depend on submission order: %+v vs %+v", a, b)
	}
	if a["p1"].Answers[1] != b["p1"].Answers[1] || a["p2"].Answers[1] != b["p2"].Answers[1] {
		t.Fatalf("answer maps depend on submission order: %+v vs %+v", a, b)
	}
}

func TestHostsReceiveSnapshotUpdates(t *testing.T) {
	session := newTestSession(t)

	initial, updates, cancel := session.JoinHost("h1")
	defer cancel()
	if len(initial.Participants) != 0 || initial.CurrentIndex != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", initial)
	}

	session.JoinPlayer("p1", "Al")
	snap := <-updates
	if len(snap.Participants) != 1 {
		t.Fatalf("expected join to reach hosts, got %+v", snap.Participants)
	}

	session.Submit("p1", 0, 2)
	snap = <-updates
	if snap.Participants["p1"].Score != 1 {
		t.Fatalf("expected submit to reach hosts, got %+v", snap.Participants)
	}

	session.Disconnect("p1")
	snap = <-updates
	if len(snap.Participants) != 0 {
		t.Fatalf("expected disconnect to reach hosts, got %+v", snap.Participants)
	}
}

func TestPlayersReceiveQuestionUpdates(t *testing.T) {
	session := newTestSession(t)

	welcome, updates, cancel := session.JoinPlayer("p1", "Al")
	defer cancel()
	if welcome.Index != 0 || welcome.Question == nil || welcome.Question.ID != 1 {
		t.Fatalf("unexpected welcome question: %+v", welcome)
	}

	session.Advance()
	update := <-updates
	if update.Index != 1 || update.Question.ID != 2 {
		t.Fatalf("expected question 2 after advance, got %+v", update)
	}

	session.Advance() // clamped, still broadcasts
	update = <-updates
	if update.Index != 1 {
		t.Fatalf("expected clamped rebroadcast of question 2, got %+v", update)
	}
}

func TestDefaultDisplayName(t *testing.T) {
	session := newTestSession(t)
	session.JoinPlayer("p1", "")

	snap := session.Snapshot()
	if got := snap.Participants["p1"].Name; got != "Anonymous" {
		t.Fatalf("expected default display name, got %q", got)
	}
}

func TestSanitizedQuestionOmitsAnswer(t *testing.T) {
	session := newTestSession(t)

	for i := 0; i < 2; i++ {
		update := session.CurrentQuestion()
		raw, err := json.Marshal(update)
		if err != nil {
			t.Fatalf("marshal question update: %v", err)
		}
		if strings.Contains(string(raw), "answer") || strings.Contains(string(raw), "correct") {
			t.Fatalf("sanitized view leaks the answer: %s", raw)
		}
		session.Advance()
	}
}

func assertScoreConsistent(t *testing.T, snap domain.Snapshot) {
	t.Helper()
	byID := make(map[int]domain.Question, len(snap.Questions))
	for _, q := range snap.Questions {
		byID[q.ID] = q
	}
	for id, p := range snap.Participants {
		correct := 0
		for qid, choice := range p.Answers {
			if q, ok := byID[qid]; ok && q.Answer == choice {
				correct++
			}
		}
		if p.Score != correct {
			t.Fatalf("participant %s: score %d but %d correct answers", id, p.Score, correct)
		}
	}
}

func newTestSession(t *testing.T) *app.Session {
	t.Helper()
	session, err := app.NewSession(testCatalog())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return session
}

func testCatalog() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Choices: []string{"2", "3", "4", "5"}, Answer: 2},
		{ID: 2, Text: "Capital of France?", Choices: []string{"London", "Paris", "Rome", "Berlin"}, Answer: 1},
	}
}
