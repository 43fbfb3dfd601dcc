package services

import "hunter-fitness/models"

type EventType string

const (
	EventWorkoutCompleted  EventType = "workout_completed"
	EventDungeonCompleted  EventType = "dungeon_completed"
	EventDungeonFailed     EventType = "dungeon_failed"
	EventLevelUp           EventType = "level_up"
	EventRankUp            EventType = "rank_up"
	EventStreakUpdated     EventType = "streak_updated"
	EventEquipmentUnlocked EventType = "equipment_unlocked"
)

// eventCategories decides which achievement categories an event can advance.
var eventCategories = map[EventType][]models.AchievementCategory{
	EventWorkoutCompleted:  {models.CategoryConsistency, models.CategoryMilestone},
	EventDungeonCompleted:  {models.CategoryMilestone, models.CategorySpecial},
	EventDungeonFailed:     nil,
	EventLevelUp:           {models.CategoryProgression},
	EventRankUp:            {models.CategoryRank},
	EventStreakUpdated:     {models.CategoryConsistency},
	EventEquipmentUnlocked: {models.CategoryCollection},
}

func (e EventType) Known() bool {
	_, ok := eventCategories[e]
	return ok
}

// DomainEvent is what one engine operation reports to the achievement engine.
// Each operation collects its events and hands them over exactly once.
type DomainEvent struct {
	Type      EventType `json:"type"`
	Increment int       `json:"increment"`
	SourceID  string    `json:"source_id,omitempty"` // assignment, raid or equipment id
}

func QuestCompleted(assignmentID string) DomainEvent {
	return DomainEvent{Type: EventWorkoutCompleted, Increment: 1, SourceID: assignmentID}
}

func RaidCompleted(raidID string) DomainEvent {
	return DomainEvent{Type: EventDungeonCompleted, Increment: 1, SourceID: raidID}
}

func RaidFailed(raidID string) DomainEvent {
	return DomainEvent{Type: EventDungeonFailed, Increment: 1, SourceID: raidID}
}

func LeveledUp(levels int) DomainEvent {
	return DomainEvent{Type: EventLevelUp, Increment: levels}
}

func RankedUp(ranks int) DomainEvent {
	return DomainEvent{Type: EventRankUp, Increment: ranks}
}

// StreakUpdated only advances Streak achievements, which read the hunter's DailyStreak
// directly.
func StreakUpdated() DomainEvent {
	return DomainEvent{Type: EventStreakUpdated, Increment: 1}
}

func EquipmentUnlocked(equipmentID string) DomainEvent {
	return DomainEvent{Type: EventEquipmentUnlocked, Increment: 1, SourceID: equipmentID}
}
