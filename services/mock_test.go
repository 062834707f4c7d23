package services

import (
	"context"
	"errors"
	"sync"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/ValeryMukhin1712/tournaments-sub001/repositories"
)

// memStore — общая память фейковых репозиториев. Потокобезопасна: тест
// конкурентной подачи гоняет её из нескольких горутин.
type memStore struct {
	mu sync.Mutex

	tournaments  map[int]*models.Tournament
	participants map[int]*models.Participant
	matches      map[int]*models.Match
	rallies      map[int][]models.Rally
	logs         map[int][]models.MatchLog
	standings    map[int]map[int]*models.TournamentStanding // tournamentID -> participantID

	nextRallyID    int
	nextStandingID int

	// failRallyAppend имитирует отказ хранилища на первой операции
	// транзакции.
	failRallyAppend bool

	// projectionGate задерживает UpdateProjection посреди транзакции:
	// тест атомарности чтений ловит подачу между записью розыгрыша и
	// записью проекции. entered сигналит вход, release отпускает.
	projectionEntered chan struct{}
	projectionRelease chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		tournaments:  make(map[int]*models.Tournament),
		participants: make(map[int]*models.Participant),
		matches:      make(map[int]*models.Match),
		rallies:      make(map[int][]models.Rally),
		logs:         make(map[int][]models.MatchLog),
		standings:    make(map[int]map[int]*models.TournamentStanding),
	}
}

func (s *memStore) addTournament(t *models.Tournament) { s.tournaments[t.ID] = t }

func (s *memStore) addMatch(m *models.Match) { s.matches[m.ID] = copyMatch(m) }

func (s *memStore) addParticipant(p *models.Participant) { s.participants[p.ID] = p }

func (s *memStore) matchSnapshot(id int) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMatch(s.matches[id])
}

func (s *memStore) rallyCount(matchID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rallies[matchID])
}

func copyMatch(m *models.Match) *models.Match {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Score != nil {
		v := *m.Score
		cp.Score = &v
	}
	if m.WinnerParticipantID != nil {
		v := *m.WinnerParticipantID
		cp.WinnerParticipantID = &v
	}
	return &cp
}

// memTxRunner выполняет функцию без настоящей транзакции: фейковые
// репозитории применяют изменения сразу. Тесты отказа хранилища строят
// сценарий так, чтобы падала первая операция.
type memTxRunner struct{}

func (memTxRunner) WithTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

func (memTxRunner) WithReadTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type memTournamentRepo struct{ store *memStore }

func (r *memTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTournamentRepo) List(_ context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.store.tournaments {
		if status != nil && t.Status != *status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

type memMatchRepo struct{ store *memStore }

func (r *memMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *memMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *memMatchRepo) ListByTournament(_ context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Match
	for _, m := range r.store.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, copyMatch(m))
	}
	return out, nil
}

func (r *memMatchRepo) ListCompletedByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Match, error) {
	status := models.MatchStatusCompleted
	return r.ListByTournament(context.Background(), tournamentID, &status)
}

func (r *memMatchRepo) UpdateProjection(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	if r.store.projectionEntered != nil {
		r.store.projectionEntered <- struct{}{}
		<-r.store.projectionRelease
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.matches[match.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	r.store.matches[match.ID] = copyMatch(match)
	return nil
}

type memRallyRepo struct{ store *memStore }

func (r *memRallyRepo) Append(_ context.Context, _ repositories.SQLExecutor, rally *models.Rally) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failRallyAppend {
		return errors.New("disk on fire")
	}
	for _, existing := range r.store.rallies[rally.MatchID] {
		if existing.Seq == rally.Seq {
			return repositories.ErrRallySeqConflict
		}
	}
	r.store.nextRallyID++
	rally.ID = r.store.nextRallyID
	r.store.rallies[rally.MatchID] = append(r.store.rallies[rally.MatchID], *rally)
	return nil
}

func (r *memRallyRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]models.Rally, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Rally, len(r.store.rallies[matchID]))
	copy(out, r.store.rallies[matchID])
	return out, nil
}

func (r *memRallyRepo) CountByMatch(_ context.Context, matchID int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.rallies[matchID]), nil
}

type memMatchLogRepo struct{ store *memStore }

func (r *memMatchLogRepo) Create(_ context.Context, _ repositories.SQLExecutor, entry *models.MatchLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry.ID = len(r.store.logs[entry.MatchID]) + 1
	r.store.logs[entry.MatchID] = append(r.store.logs[entry.MatchID], *entry)
	return nil
}

func (r *memMatchLogRepo) ListByMatch(_ context.Context, matchID int) ([]models.MatchLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.MatchLog, len(r.store.logs[matchID]))
	copy(out, r.store.logs[matchID])
	return out, nil
}

type memParticipantRepo struct{ store *memStore }

func (r *memParticipantRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memParticipantRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Participant
	for _, p := range r.store.participants {
		if p.TournamentID == tournamentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memParticipantRepo) AddPoints(_ context.Context, _ repositories.SQLExecutor, participantID, delta int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.participants[participantID]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.Points += delta
	return nil
}

func (r *memParticipantRepo) UpdateRecord(_ context.Context, _ repositories.SQLExecutor, p *models.Participant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.participants[p.ID]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	stored.Wins = p.Wins
	stored.Losses = p.Losses
	stored.SetsFor = p.SetsFor
	stored.SetsAgainst = p.SetsAgainst
	return nil
}

type memStandingRepo struct{ store *memStore }

func (r *memStandingRepo) GetOrCreate(_ context.Context, _ repositories.SQLExecutor, tournamentID, participantID int) (*models.TournamentStanding, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	byParticipant, ok := r.store.standings[tournamentID]
	if !ok {
		byParticipant = make(map[int]*models.TournamentStanding)
		r.store.standings[tournamentID] = byParticipant
	}
	standing, ok := byParticipant[participantID]
	if !ok {
		r.store.nextStandingID++
		standing = &models.TournamentStanding{
			ID:            r.store.nextStandingID,
			TournamentID:  tournamentID,
			ParticipantID: participantID,
		}
		byParticipant[participantID] = standing
	}
	cp := *standing
	return &cp, nil
}

func (r *memStandingRepo) Update(_ context.Context, _ repositories.SQLExecutor, standing *models.TournamentStanding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	byParticipant, ok := r.store.standings[standing.TournamentID]
	if !ok {
		return repositories.ErrTournamentStandingNotFound
	}
	stored, ok := byParticipant[standing.ParticipantID]
	if !ok {
		return repositories.ErrTournamentStandingNotFound
	}
	*stored = *standing
	return nil
}

func (r *memStandingRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, sortByRank bool) ([]*models.TournamentStanding, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.TournamentStanding
	for _, standing := range r.store.standings[tournamentID] {
		cp := *standing
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memStandingRepo) DeleteByTournamentID(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.standings, tournamentID)
	return nil
}

// mockBroadcaster записывает рассылки живого счёта.
type mockBroadcaster struct {
	mu       sync.Mutex
	messages []string // типы сообщений в порядке рассылки
}

func (b *mockBroadcaster) BroadcastMatch(_ int, messageType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, messageType)
}

func (b *mockBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.messages))
	copy(out, b.messages)
	return out
}

// mockNotifier записывает опубликованные события завершения.
type mockNotifier struct {
	mu     sync.Mutex
	events []MatchCompletedEvent
	err    error
}

func (n *mockNotifier) NotifyMatchCompleted(_ context.Context, event MatchCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

// mockRecorder считает обращения к таблице результатов.
type mockRecorder struct {
	mu      sync.Mutex
	matches []*models.Match
	err     error
}

func (r *mockRecorder) RecordResult(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.matches = append(r.matches, copyMatch(match))
	return nil
}
