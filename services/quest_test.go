package services

import (
	"testing"
	"time"

	"hunter-fitness/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestQuestProgressAndCanComplete(t *testing.T) {
	tpl := &models.QuestTemplate{TargetReps: 30, TargetSets: 3}
	a := &models.QuestAssignment{CurrentReps: 45, CurrentSets: 1}

	assert.InDelta(t, (100.0+100.0/3)/2, QuestProgress(tpl, a), 0.001)
	assert.False(t, CanComplete(tpl, a))

	a.CurrentSets = 3
	assert.InDelta(t, 100.0, QuestProgress(tpl, a), 0.001)
	assert.True(t, CanComplete(tpl, a))
}

func TestEstimatedQuestSeconds(t *testing.T) {
	assert.Equal(t, 300.0, EstimatedQuestSeconds(&models.QuestTemplate{EstimatedMinutes: 5}))
	// 60 + 20*3*3 + 1000*0.36
	assert.InDelta(t, 60.0+180.0+360.0, EstimatedQuestSeconds(&models.QuestTemplate{
		TargetDuration: 60, TargetReps: 20, TargetSets: 3, TargetDistance: 1000,
	}), 0.001)
	// sets default to 1
	assert.Equal(t, 60.0, EstimatedQuestSeconds(&models.QuestTemplate{TargetReps: 20}))
}

func TestGenerateDailyQuests(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	today := env.clock.Now().Format(DateLayout)

	first, err := env.quests.GenerateDailyQuests(env.ctx, h.ID, today, false)
	require.NoError(t, err)
	require.Len(t, first, DailyQuestCount)

	seen := map[string]bool{}
	difficulties := map[models.Difficulty]bool{}
	for _, a := range first {
		assert.False(t, seen[a.QuestTemplateID], "template handed out twice")
		seen[a.QuestTemplateID] = true
		assert.Equal(t, models.QuestStatusAssigned, a.Status)
		assert.Equal(t, today, a.QuestDate)

		tpl := env.catalogQuest(t, a.QuestTemplateID)
		assert.LessOrEqual(t, tpl.MinLevel, 1)
		difficulties[tpl.Difficulty] = true
	}
	assert.True(t, difficulties[models.DifficultyEasy])
	assert.True(t, difficulties[models.DifficultyMedium])

	// Same day, no regenerate: unchanged
	again, err := env.quests.GenerateDailyQuests(env.ctx, h.ID, today, false)
	require.NoError(t, err)
	require.Len(t, again, DailyQuestCount)
	for _, a := range again {
		assert.True(t, seen[a.QuestTemplateID])
	}
	assert.ElementsMatch(t, assignmentIDs(first), assignmentIDs(again))
}

func assignmentIDs(list []models.QuestAssignment) []string {
	ids := make([]string, len(list))
	for i, a := range list {
		ids[i] = a.ID
	}
	return ids
}

func (e *testEnv) catalogQuest(t *testing.T, id string) *models.QuestTemplate {
	t.Helper()
	tpl, err := e.catalog.QuestTemplate(e.db, id)
	require.NoError(t, err)
	return tpl
}

func TestGenerateDailyQuestsRespectsGates(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	env.setLevel(t, h.ID, 8)

	list, err := env.quests.GenerateDailyQuests(env.ctx, h.ID, "2025-03-10", false)
	require.NoError(t, err)
	require.Len(t, list, DailyQuestCount)

	var hard int
	for _, a := range list {
		tpl := env.catalogQuest(t, a.QuestTemplateID)
		assert.LessOrEqual(t, tpl.MinLevel, 8)
		assert.Equal(t, models.RankE, tpl.MinRank)
		if tpl.Difficulty == models.DifficultyHard {
			hard++
		}
	}
	assert.Equal(t, 1, hard)
}

func TestRegenerateKeepsCompleted(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	today := env.clock.Now().Format(DateLayout)

	first, err := env.quests.GenerateDailyQuests(env.ctx, h.ID, today, false)
	require.NoError(t, err)

	done := first[0]
	tpl := env.catalogQuest(t, done.QuestTemplateID)
	_, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, done.ID, QuestProgressUpdate{
		Reps: intp(tpl.TargetReps), Sets: intp(tpl.TargetSets),
		Duration: intp(tpl.TargetDuration), Distance: intp(tpl.TargetDistance),
	})
	require.NoError(t, err)

	regen, err := env.quests.GenerateDailyQuests(env.ctx, h.ID, today, true)
	require.NoError(t, err)
	require.Len(t, regen, DailyQuestCount)

	ids := map[string]bool{}
	for _, a := range regen {
		ids[a.ID] = true
	}
	assert.True(t, ids[done.ID], "completed assignment must survive regeneration")
	assert.False(t, ids[first[1].ID])
	assert.False(t, ids[first[2].ID])

	daily, err := env.quests.DailyQuests(env.ctx, h.ID, today)
	require.NoError(t, err)
	assert.Len(t, daily, DailyQuestCount)
}

func TestRegenerateFailsWhenKeptTemplateIsGone(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	today := env.clock.Now().Format(DateLayout)

	first, err := env.quests.GenerateDailyQuests(env.ctx, h.ID, today, false)
	require.NoError(t, err)
	done := first[0]
	tpl := env.catalogQuest(t, done.QuestTemplateID)
	_, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, done.ID, QuestProgressUpdate{
		Reps: intp(tpl.TargetReps), Sets: intp(tpl.TargetSets),
		Duration: intp(tpl.TargetDuration), Distance: intp(tpl.TargetDistance),
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Unscoped().Delete(&models.QuestTemplate{}, "id = ?", tpl.ID).Error)
	env.catalog.Purge()

	_, err = env.quests.GenerateDailyQuests(env.ctx, h.ID, today, true)
	requireKind(t, err, KindNotFound, CodeQuestNotFound)

	// rolled back: the open assignments are still there
	var open int64
	require.NoError(t, env.db.Model(&models.QuestAssignment{}).
		Where("hunter_id = ? AND status <> ?", h.ID, models.QuestStatusCompleted).Count(&open).Error)
	assert.Equal(t, int64(DailyQuestCount-1), open)
}

func TestGenerateDailyQuestsRejectsBadDate(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	_, err := env.quests.GenerateDailyQuests(env.ctx, h.ID, "10/03/2025", false)
	requireKind(t, err, KindValidation, CodeInvalidInput)
}

func TestQuestAutoCompletesWhenTargetsMet(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	a := env.assign(t, h.ID, "push-up-initiation") // TargetReps 20, 50 XP, 5 minutes

	res, err := env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(25)})
	require.NoError(t, err)

	require.True(t, res.Completed)
	assert.Equal(t, models.QuestStatusCompleted, res.Assignment.Status)
	assert.Equal(t, 25, res.Assignment.CurrentReps)
	assert.Equal(t, 100.0, res.Assignment.Progress)
	assert.NotNil(t, res.Assignment.CompletedAt)
	// never started before this report, so no speed bonus
	assert.InDelta(t, 1.0, res.Assignment.BonusMultiplier, 0.0001)
	assert.Equal(t, int64(53), res.Assignment.XPEarned)

	got := env.reload(t, h.ID)
	assert.Equal(t, 1, got.TotalWorkouts)
	assert.Equal(t, 1, got.DailyStreak)
	assert.Equal(t, 11, got.Strength)
	assert.Equal(t, env.clock.Now().Format(DateLayout), got.LastWorkoutDate)
	// 53 from the quest, 50 from first-steps
	assert.Equal(t, int64(103), got.TotalXP)

	first := env.progressRow(t, h.ID, "first-steps")
	require.NotNil(t, first)
	assert.True(t, first.IsUnlocked)

	var history []models.QuestHistory
	require.NoError(t, env.db.Where("hunter_id = ?", h.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].AssignmentID)
	assert.JSONEq(t, `{"reps":25,"sets":0,"duration":0,"distance":0}`, string(history[0].Metadata))
}

func TestSpeedBonusNeedsEarlierStart(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")

	started := env.assign(t, h.ID, "push-up-initiation")
	_, err := env.quests.StartQuest(env.ctx, h.ID, started.ID)
	require.NoError(t, err)
	env.clock.Advance(2 * time.Minute)
	res, err := env.quests.UpdateQuestProgress(env.ctx, h.ID, started.ID, QuestProgressUpdate{Reps: intp(20)})
	require.NoError(t, err)
	require.True(t, res.Completed)
	assert.InDelta(t, 1.25, res.Assignment.BonusMultiplier, 0.0001)
	assert.Equal(t, int64(66), res.Assignment.XPEarned)

	// An assigned quest handed in by one report has no measured time.
	cold := env.assign(t, h.ID, "plank-hold")
	res, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, cold.ID, QuestProgressUpdate{Duration: intp(60)})
	require.NoError(t, err)
	require.True(t, res.Completed)
	assert.InDelta(t, 1.0, res.Assignment.BonusMultiplier, 0.0001)
}

func TestQuestProgressIsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	a := env.assign(t, h.ID, "push-up-initiation")

	res, err := env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(10)})
	require.NoError(t, err)
	assert.Equal(t, models.QuestStatusInProgress, res.Assignment.Status)
	assert.NotNil(t, res.Assignment.StartedAt)
	assert.InDelta(t, 50.0, res.Assignment.Progress, 0.001)

	res, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(5)})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Assignment.CurrentReps)
	assert.InDelta(t, 50.0, res.Assignment.Progress, 0.001)
	assert.False(t, res.Completed)
}

func TestQuestProgressValidation(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	a := env.assign(t, h.ID, "push-up-initiation")

	_, err := env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(-1)})
	requireKind(t, err, KindValidation, CodeInvalidInput)

	_, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, "missing", QuestProgressUpdate{Reps: intp(1)})
	requireKind(t, err, KindNotFound, CodeAssignmentNotFound)

	other := env.newHunter(t, "Thief")
	_, err = env.quests.UpdateQuestProgress(env.ctx, other.ID, a.ID, QuestProgressUpdate{Reps: intp(1)})
	requireKind(t, err, KindNotFound, CodeAssignmentNotFound)
}

func TestQuestStateMachine(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	a := env.assign(t, h.ID, "squat-circuit") // 30 reps x 3 sets

	started, err := env.quests.StartQuest(env.ctx, h.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestStatusInProgress, started.Status)

	_, err = env.quests.StartQuest(env.ctx, h.ID, a.ID)
	requireKind(t, err, KindInvalidState, CodeQuestAlreadyStarted)

	_, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(30)})
	require.NoError(t, err)
	_, err = env.quests.CompleteQuest(env.ctx, h.ID, a.ID, false)
	requireKind(t, err, KindInvalidState, CodeQuestTargetsNotMet)

	_, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Sets: intp(3)})
	require.NoError(t, err)

	_, err = env.quests.StartQuest(env.ctx, h.ID, a.ID)
	requireKind(t, err, KindInvalidState, CodeQuestCompleted)
	_, err = env.quests.CompleteQuest(env.ctx, h.ID, a.ID, true)
	requireKind(t, err, KindInvalidState, CodeQuestCompleted)
	_, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(40)})
	requireKind(t, err, KindInvalidState, CodeQuestCompleted)
}

func TestCompleteQuestBonusMultiplier(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")

	// Slow and perfect: 1.0 + 0.15
	a := env.assign(t, h.ID, "squat-circuit")
	_, err := env.quests.StartQuest(env.ctx, h.ID, a.ID)
	require.NoError(t, err)
	_, err = env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(30), Sets: intp(2)})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	// hand in the last set through the state directly so the explicit completion path runs
	require.NoError(t, env.db.Model(&models.QuestAssignment{}).Where("id = ?", a.ID).Update("current_sets", 3).Error)

	level := env.reload(t, h.ID).Level
	res, err := env.quests.CompleteQuest(env.ctx, h.ID, a.ID, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.15, res.Assignment.BonusMultiplier, 0.0001)
	assert.Equal(t, QuestXP(90, level, 1.15), res.Assignment.XPEarned)

	var history models.QuestHistory
	require.NoError(t, env.db.Where("assignment_id = ?", a.ID).First(&history).Error)
	assert.True(t, history.PerfectExecution)
	assert.Equal(t, 3600, history.DurationSeconds)
}

func TestQuestXPFormula(t *testing.T) {
	assert.Equal(t, int64(66), QuestXP(50, 1, 1.25))
	assert.Equal(t, int64(150), QuestXP(100, 10, 1.0))
	assert.Equal(t, int64(300), QuestXP(100, 10, 2.0))
}

func TestStreakAcrossDays(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")

	finish := func() {
		a := env.assign(t, h.ID, "push-up-initiation")
		_, err := env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(20)})
		require.NoError(t, err)
	}

	finish()
	finish() // same day
	assert.Equal(t, 1, env.reload(t, h.ID).DailyStreak)

	env.clock.Advance(24 * time.Hour)
	finish()
	assert.Equal(t, 2, env.reload(t, h.ID).DailyStreak)

	env.clock.Advance(72 * time.Hour)
	finish()
	got := env.reload(t, h.ID)
	assert.Equal(t, 1, got.DailyStreak)
	assert.Equal(t, 2, got.LongestStreak)
	assert.Equal(t, 4, got.TotalWorkouts)
}

func TestQuestHistoryPagination(t *testing.T) {
	env := newTestEnv(t)
	h := env.newHunter(t, "Jinwoo")
	for i := 0; i < 3; i++ {
		a := env.assign(t, h.ID, "push-up-initiation")
		_, err := env.quests.UpdateQuestProgress(env.ctx, h.ID, a.ID, QuestProgressUpdate{Reps: intp(20)})
		require.NoError(t, err)
		env.clock.Advance(time.Minute)
	}

	page, total, err := env.quests.QuestHistory(env.ctx, h.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CompletedAt.After(page[1].CompletedAt))

	page, _, err = env.quests.QuestHistory(env.ctx, h.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
