package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/ValeryMukhin1712/tournaments-sub001/scoring"
)

const (
	testTournamentID  = 1
	testMatchID       = 100
	testParticipant1  = 10
	testParticipant2  = 20
	otherMatchID      = 101
	otherParticipant1 = 30
	otherParticipant2 = 40
)

type scoringFixture struct {
	store       *memStore
	service     *scoringService
	broadcaster *mockBroadcaster
	notifier    *mockNotifier
	recorder    *mockRecorder
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()

	store := newMemStore()
	store.addTournament(&models.Tournament{
		ID:          testTournamentID,
		Name:        "Клубный турнир",
		PointsWin:   2,
		PointsLoss:  0,
		PointsToWin: 11,
		SetsToWin:   2,
		ServeRule:   models.ServeSideOut,
		Status:      models.TournamentActive,
	})
	store.addParticipant(&models.Participant{ID: testParticipant1, TournamentID: testTournamentID, Name: "Анна"})
	store.addParticipant(&models.Participant{ID: testParticipant2, TournamentID: testTournamentID, Name: "Борис"})
	store.addParticipant(&models.Participant{ID: otherParticipant1, TournamentID: testTournamentID, Name: "Вера"})
	store.addParticipant(&models.Participant{ID: otherParticipant2, TournamentID: testTournamentID, Name: "Глеб"})
	store.addMatch(&models.Match{
		ID:             testMatchID,
		TournamentID:   testTournamentID,
		Participant1ID: testParticipant1,
		Participant2ID: testParticipant2,
		Status:         models.MatchStatusScheduled,
	})
	store.addMatch(&models.Match{
		ID:             otherMatchID,
		TournamentID:   testTournamentID,
		Participant1ID: otherParticipant1,
		Participant2ID: otherParticipant2,
		Status:         models.MatchStatusScheduled,
	})

	broadcaster := &mockBroadcaster{}
	notifier := &mockNotifier{}
	recorder := &mockRecorder{}

	service := &scoringService{
		tx:             memTxRunner{},
		matchRepo:      &memMatchRepo{store},
		tournamentRepo: &memTournamentRepo{store},
		rallyRepo:      &memRallyRepo{store},
		matchLogRepo:   &memMatchLogRepo{store},
		results:        recorder,
		notifier:       notifier,
		hub:            broadcaster,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		locks:          make(map[int]*sync.Mutex),
		now:            func() time.Time { return time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC) },
	}

	return &scoringFixture{
		store:       store,
		service:     service,
		broadcaster: broadcaster,
		notifier:    notifier,
		recorder:    recorder,
	}
}

// winSet прогоняет столько розыгрышей стороны winner, сколько нужно для
// сухого сета.
func (f *scoringFixture) winSet(t *testing.T, matchID int, winner models.Side) *models.MatchView {
	t.Helper()
	var view *models.MatchView
	var err error
	for i := 0; i < 11; i++ {
		view, err = f.service.SubmitRally(context.Background(), matchID, SubmitRallyInput{WinnerSide: winner})
		require.NoError(t, err)
	}
	return view
}

func TestSubmitRallyStartsMatchAndProjectsScore(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	view, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side1})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusInProgress, view.Status)
	assert.Equal(t, 1, view.CurrentSetScore1)
	assert.Equal(t, 0, view.CurrentSetScore2)
	assert.Equal(t, 1, view.CurrentSet)
	assert.Equal(t, 1, view.RallyCount)
	assert.Equal(t, models.Side1, view.ServerSide, "подающий выиграл, подача остаётся")

	stored := f.store.matchSnapshot(testMatchID)
	assert.Equal(t, models.MatchStatusInProgress, stored.Status)
	assert.Equal(t, 1, stored.Score1)

	logs := f.store.logs[testMatchID]
	require.Len(t, logs, 1)
	assert.Equal(t, models.MatchLogActionStarted, logs[0].Action)

	assert.Equal(t, []string{"SCORE_UPDATED"}, f.broadcaster.types())
}

func TestSubmitRallyCompletesMatch(t *testing.T) {
	f := newScoringFixture(t)

	f.winSet(t, testMatchID, models.Side1)
	view := f.winSet(t, testMatchID, models.Side1)

	assert.Equal(t, models.MatchStatusCompleted, view.Status)
	assert.Equal(t, models.Side1, view.WinnerSide)
	require.NotNil(t, view.WinnerParticipantID)
	assert.Equal(t, testParticipant1, *view.WinnerParticipantID)
	require.NotNil(t, view.Score)
	assert.Equal(t, "2:0", *view.Score)
	require.Len(t, view.CompletedSets, 2)

	stored := f.store.matchSnapshot(testMatchID)
	assert.Equal(t, models.MatchStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.SetsWon1)
	assert.Equal(t, 0, stored.SetsWon2)

	// Результат начислен ровно один раз, событие опубликовано.
	require.Len(t, f.recorder.matches, 1)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, testParticipant1, f.notifier.events[0].WinnerParticipantID)
	assert.Equal(t, testParticipant2, f.notifier.events[0].LoserParticipantID)
	assert.Equal(t, "2:0", f.notifier.events[0].Score)

	types := f.broadcaster.types()
	assert.Equal(t, "MATCH_COMPLETED", types[len(types)-1])

	logs := f.store.logs[testMatchID]
	assert.Equal(t, models.MatchLogActionCompleted, logs[len(logs)-1].Action)
}

func TestSubmitRallyAgainstCompletedMatchFails(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.winSet(t, testMatchID, models.Side1)
	f.winSet(t, testMatchID, models.Side1)
	before := f.store.rallyCount(testMatchID)

	_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side2})
	assert.ErrorIs(t, err, scoring.ErrMatchCompleted)
	assert.Equal(t, before, f.store.rallyCount(testMatchID), "журнал завершённого матча неприкосновенен")
}

func TestSubmitRallyAgainstCanceledMatchFails(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.CancelMatch(ctx, testMatchID, "rain", "admin"))

	_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side1})
	assert.ErrorIs(t, err, ErrMatchOutOfOrder)
	assert.Zero(t, f.store.rallyCount(testMatchID))
}

func TestSubmitRallyRejectsInvalidSide(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitRally(context.Background(), testMatchID, SubmitRallyInput{WinnerSide: models.Side(7)})
	assert.ErrorIs(t, err, ErrInvalidSide)
	assert.Zero(t, f.store.rallyCount(testMatchID))
}

func TestSubmitRallyRejectsStaleSetClaim(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.winSet(t, testMatchID, models.Side1) // идёт второй сет

	_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side2, SetNumber: 1})
	assert.ErrorIs(t, err, scoring.ErrSetAlreadyDecided)
	assert.Equal(t, 11, f.store.rallyCount(testMatchID), "отклонённая заявка не попадает в журнал")
}

func TestSubmitRallyRejectsScoreMismatch(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side1})
	require.NoError(t, err)

	// Консоль потеряла розыгрыш и заявляет 3:0 вместо ожидаемых 2:0.
	claimed1, claimed2 := 3, 0
	_, err = f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{
		WinnerSide: models.Side1,
		Score1:     &claimed1,
		Score2:     &claimed2,
	})
	assert.ErrorIs(t, err, scoring.ErrInvalidEvent)
	assert.Equal(t, 1, f.store.rallyCount(testMatchID))
}

func TestSubmitRallyPersistenceFailureLeavesLedgerUntouched(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.store.mu.Lock()
	f.store.failRallyAppend = true
	f.store.mu.Unlock()

	_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side1})
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Zero(t, f.store.rallyCount(testMatchID))
	assert.Equal(t, models.MatchStatusScheduled, f.store.matchSnapshot(testMatchID).Status)
}

func TestSubmitRallyUnknownMatch(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitRally(context.Background(), 999, SubmitRallyInput{WinnerSide: models.Side1})
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestSubmitRallyConcurrentSubmissions(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	// Две консоли долбят один матч одновременно. Каждая подача должна
	// занять свой номер в журнале, без дыр и дублей.
	const perWorker = 5
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		side := models.Side1
		if w == 1 {
			side = models.Side2
		}
		wg.Add(1)
		go func(side models.Side) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: side})
				assert.NoError(t, err)
			}
		}(side)
	}
	wg.Wait()

	rallies, err := f.service.ListRallies(ctx, testMatchID)
	require.NoError(t, err)
	require.Len(t, rallies, 2*perWorker)
	seen := make(map[int]bool)
	for _, rally := range rallies {
		assert.False(t, seen[rally.Seq], "seq %d занят дважды", rally.Seq)
		seen[rally.Seq] = true
	}
	for seq := 1; seq <= 2*perWorker; seq++ {
		assert.True(t, seen[seq], "seq %d пропущен", seq)
	}

	view, err := f.service.GetMatchView(ctx, testMatchID)
	require.NoError(t, err)
	assert.Equal(t, 5, view.CurrentSetScore1)
	assert.Equal(t, 5, view.CurrentSetScore2)
}

func TestConcurrentSubmissionsToDifferentMatchesDoNotInterfere(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, matchID := range []int{testMatchID, otherMatchID} {
		wg.Add(1)
		go func(matchID int) {
			defer wg.Done()
			for i := 0; i < 7; i++ {
				_, err := f.service.SubmitRally(ctx, matchID, SubmitRallyInput{WinnerSide: models.Side1})
				assert.NoError(t, err)
			}
		}(matchID)
	}
	wg.Wait()

	assert.Equal(t, 7, f.store.rallyCount(testMatchID))
	assert.Equal(t, 7, f.store.rallyCount(otherMatchID))
}

func TestCorrectRallyFlipsPoint(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	for _, side := range []models.Side{models.Side1, models.Side1, models.Side2} {
		_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: side})
		require.NoError(t, err)
	}

	view, err := f.service.CorrectRally(ctx, testMatchID, CorrectRallyInput{
		Seq:           2,
		CorrectedSide: models.Side2,
		Actor:         "chief-referee",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, view.CurrentSetScore1)
	assert.Equal(t, 2, view.CurrentSetScore2)
	assert.Equal(t, 4, f.store.rallyCount(testMatchID), "компенсация дописывается, а не правит историю")

	logs := f.store.logs[testMatchID]
	assert.Equal(t, models.MatchLogActionCorrected, logs[len(logs)-1].Action)
	assert.Equal(t, "chief-referee", logs[len(logs)-1].Actor)

	// Производное состояние после компенсации сходится с повторным чтением.
	reread, err := f.service.GetMatchView(ctx, testMatchID)
	require.NoError(t, err)
	assert.Equal(t, view.CurrentSetScore1, reread.CurrentSetScore1)
	assert.Equal(t, view.CurrentSetScore2, reread.CurrentSetScore2)
}

func TestCorrectRallyOnDecidedSetFails(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.winSet(t, testMatchID, models.Side1)
	_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side2})
	require.NoError(t, err)

	_, err = f.service.CorrectRally(ctx, testMatchID, CorrectRallyInput{Seq: 3, CorrectedSide: models.Side2})
	assert.ErrorIs(t, err, scoring.ErrSetAlreadyDecided)
}

func TestCorrectRallyBeforeFirstRallyFails(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.CorrectRally(context.Background(), testMatchID, CorrectRallyInput{Seq: 1, CorrectedSide: models.Side2})
	assert.ErrorIs(t, err, ErrMatchOutOfOrder)
}

func TestCorrectRallyCanCompleteMatch(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.winSet(t, testMatchID, models.Side1)
	// Второй сет: 10:0, затем очко ошибочно записано второй стороне.
	for i := 0; i < 10; i++ {
		_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side1})
		require.NoError(t, err)
	}
	_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side2})
	require.NoError(t, err)

	view, err := f.service.CorrectRally(ctx, testMatchID, CorrectRallyInput{Seq: 22, CorrectedSide: models.Side1})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusCompleted, view.Status)
	assert.Equal(t, models.Side1, view.WinnerSide)
	require.Len(t, f.recorder.matches, 1, "завершение компенсацией тоже начисляет результат")
}

func TestCancelMatchIsIdempotent(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.CancelMatch(ctx, testMatchID, "rain", ""))
	require.NoError(t, f.service.CancelMatch(ctx, testMatchID, "rain", ""))

	stored := f.store.matchSnapshot(testMatchID)
	assert.Equal(t, models.MatchStatusCanceled, stored.Status)

	// Повторная отмена не плодит записей журнала.
	logs := f.store.logs[testMatchID]
	require.Len(t, logs, 1)
	assert.Equal(t, models.MatchLogActionCanceled, logs[0].Action)
	require.NotNil(t, logs[0].Details)
	assert.Equal(t, "rain", *logs[0].Details)
}

func TestCancelCompletedMatchFails(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.winSet(t, testMatchID, models.Side1)
	f.winSet(t, testMatchID, models.Side1)

	err := f.service.CancelMatch(ctx, testMatchID, "late", "admin")
	assert.ErrorIs(t, err, scoring.ErrMatchCompleted)
}

func TestGetMatchViewMatchesLedgerReplay(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	for _, side := range []models.Side{models.Side1, models.Side2, models.Side2, models.Side1, models.Side1} {
		_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: side})
		require.NoError(t, err)
	}

	view, err := f.service.GetMatchView(ctx, testMatchID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.CurrentSetScore1)
	assert.Equal(t, 2, view.CurrentSetScore2)
	assert.Equal(t, 5, view.RallyCount)
	assert.Equal(t, models.Side1, view.ServerSide)
}

func TestGetMatchViewWaitsForInFlightSubmission(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	// Проекция задерживается посреди транзакции: розыгрыш уже в журнале,
	// запись матча ещё старая. Читатель не должен увидеть эту смесь.
	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.projectionEntered = entered
	f.store.projectionRelease = release

	submitDone := make(chan error, 1)
	go func() {
		_, err := f.service.SubmitRally(ctx, testMatchID, SubmitRallyInput{WinnerSide: models.Side1})
		submitDone <- err
	}()
	<-entered

	type viewResult struct {
		view *models.MatchView
		err  error
	}
	viewCh := make(chan viewResult, 1)
	go func() {
		view, err := f.service.GetMatchView(ctx, testMatchID)
		viewCh <- viewResult{view: view, err: err}
	}()

	select {
	case <-viewCh:
		t.Fatal("view returned mid-submission")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-submitDone)

	res := <-viewCh
	require.NoError(t, res.err)
	assert.Equal(t, models.MatchStatusInProgress, res.view.Status)
	assert.Equal(t, 1, res.view.RallyCount)
	assert.Equal(t, 1, res.view.CurrentSetScore1)
	assert.Equal(t, 0, res.view.CurrentSetScore2)
}
