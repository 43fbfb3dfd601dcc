package services

import (
	"context"
	"fmt"

	"hunter-fitness/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// DefaultQuests is the starter quest catalog.
var DefaultQuests = []models.QuestTemplate{
	{Name: "Push-up Initiation", QuestType: models.QuestTypeStrength, Difficulty: models.DifficultyEasy, TargetReps: 20, BaseXP: 50, StrengthBonus: 1, EstimatedMinutes: 5},
	{Name: "Morning Jog", QuestType: models.QuestTypeEndurance, Difficulty: models.DifficultyEasy, TargetDistance: 1000, BaseXP: 50, EnduranceBonus: 1, EstimatedMinutes: 8},
	{Name: "Plank Hold", QuestType: models.QuestTypeVitality, Difficulty: models.DifficultyEasy, TargetDuration: 60, BaseXP: 40, VitalityBonus: 1, EstimatedMinutes: 3},
	{Name: "Squat Circuit", QuestType: models.QuestTypeStrength, Difficulty: models.DifficultyMedium, TargetReps: 30, TargetSets: 3, BaseXP: 90, StrengthBonus: 1, EnduranceBonus: 1, EstimatedMinutes: 12},
	{Name: "Shadow Sprints", QuestType: models.QuestTypeAgility, Difficulty: models.DifficultyMedium, TargetDistance: 800, TargetSets: 4, BaseXP: 100, AgilityBonus: 2, EstimatedMinutes: 15},
	{Name: "Burpee Gauntlet", QuestType: models.QuestTypeMixed, Difficulty: models.DifficultyHard, TargetReps: 50, TargetSets: 5, BaseXP: 160, StrengthBonus: 1, AgilityBonus: 1, EnduranceBonus: 1, EstimatedMinutes: 20, MinLevel: 5},
	{Name: "Long Road", QuestType: models.QuestTypeEndurance, Difficulty: models.DifficultyHard, TargetDistance: 5000, TargetDuration: 1800, BaseXP: 180, EnduranceBonus: 2, VitalityBonus: 1, EstimatedMinutes: 35, MinLevel: 8},
	{Name: "Monarch's Regimen", QuestType: models.QuestTypeMixed, Difficulty: models.DifficultyExtreme, TargetReps: 100, TargetSets: 10, TargetDistance: 10000, BaseXP: 400, StrengthBonus: 2, AgilityBonus: 2, VitalityBonus: 2, EnduranceBonus: 2, EstimatedMinutes: 90, MinLevel: 36, MinRank: models.RankB},
}

// DefaultDungeons is the starter dungeon catalog.
var DefaultDungeons = []struct {
	models.DungeonTemplate
	Steps []models.DungeonExercise
}{
	{
		DungeonTemplate: models.DungeonTemplate{Name: "Goblin Warren", Difficulty: models.DifficultyEasy, MinLevel: 1, EnergyCost: 10, CooldownHours: 24, BaseXP: 200, BonusXP: 50, EstimatedMinutes: 20},
		Steps: []models.DungeonExercise{
			{Name: "Jumping Jacks", Reps: 50},
			{Name: "Push-ups", Reps: 15, Sets: 2},
			{Name: "Plank", DurationSeconds: 45},
		},
	},
	{
		DungeonTemplate: models.DungeonTemplate{Name: "Red Gate", Difficulty: models.DifficultyMedium, MinLevel: 11, MinRank: models.RankD, EnergyCost: 20, CooldownHours: 48, BaseXP: 500, BonusXP: 150, EstimatedMinutes: 40},
		Steps: []models.DungeonExercise{
			{Name: "Burpees", Reps: 20, Sets: 3},
			{Name: "Lunges", Reps: 20, Sets: 3},
			{Name: "Sprint Intervals", DurationSeconds: 600},
		},
	},
	{
		DungeonTemplate: models.DungeonTemplate{Name: "Demon Castle", Difficulty: models.DifficultyHard, MinLevel: 36, MinRank: models.RankB, EnergyCost: 40, CooldownHours: 72, BaseXP: 1500, BonusXP: 500, EstimatedMinutes: 75},
		Steps: []models.DungeonExercise{
			{Name: "Pull-ups", Reps: 10, Sets: 5},
			{Name: "Pistol Squats", Reps: 10, Sets: 4},
			{Name: "Hill Run", DurationSeconds: 1800},
		},
	},
}

// DefaultEquipment is the starter equipment catalog.
var DefaultEquipment = []models.EquipmentTemplate{
	{Name: "Training Dagger", ItemType: models.ItemTypeWeapon, Rarity: models.RarityCommon, StrengthBonus: 2, XPMultiplier: 1.0, UnlockLevel: 1},
	{Name: "Knight Killer", ItemType: models.ItemTypeWeapon, Rarity: models.RarityEpic, StrengthBonus: 8, AgilityBonus: 4, XPMultiplier: 1.10, UnlockLevel: 25, UnlockRank: models.RankC},
	{Name: "Kasaka's Venom Fang", ItemType: models.ItemTypeWeapon, Rarity: models.RarityRare, StrengthBonus: 5, AgilityBonus: 2, XPMultiplier: 1.05, UnlockLevel: 12, UnlockRank: models.RankD},
	{Name: "Leather Vest", ItemType: models.ItemTypeArmor, Rarity: models.RarityCommon, VitalityBonus: 2, XPMultiplier: 1.0, UnlockLevel: 1},
	{Name: "High Orc Plate", ItemType: models.ItemTypeArmor, Rarity: models.RarityLegendary, VitalityBonus: 10, EnduranceBonus: 6, XPMultiplier: 1.15, UnlockLevel: 51, UnlockRank: models.RankA},
	{Name: "Runner's Band", ItemType: models.ItemTypeAccessory, Rarity: models.RarityRare, AgilityBonus: 3, EnduranceBonus: 2, XPMultiplier: 1.05, UnlockLevel: 5},
	{Name: "Monarch's Ring", ItemType: models.ItemTypeAccessory, Rarity: models.RarityMythic, StrengthBonus: 10, AgilityBonus: 10, VitalityBonus: 10, EnduranceBonus: 10, XPMultiplier: 1.5, UnlockLevel: 96, UnlockRank: models.RankSSS},
}

// DefaultAchievements is the starter achievement catalog.
var DefaultAchievements = []models.AchievementTemplate{
	{Name: "First Steps", Description: "Finish your first workout", Category: models.CategoryMilestone, Type: models.AchievementCounter, TargetValue: intPtr(1), XPReward: 50},
	{Name: "Dedicated Hunter", Description: "Finish 10 workouts", Category: models.CategoryMilestone, Type: models.AchievementCounter, TargetValue: intPtr(10), XPReward: 200},
	{Name: "Centurion", Description: "Finish 100 workouts", Category: models.CategoryMilestone, Type: models.AchievementCounter, TargetValue: intPtr(100), XPReward: 1000, TitleReward: strPtr("Centurion")},
	{Name: "Week Warrior", Description: "Keep a 7 day streak", Category: models.CategoryConsistency, Type: models.AchievementStreak, TargetValue: intPtr(7), XPReward: 300, TitleReward: strPtr("Unbroken")},
	{Name: "Iron Will", Description: "Keep a 30 day streak", Category: models.CategoryConsistency, Type: models.AchievementStreak, TargetValue: intPtr(30), XPReward: 1500, IsHidden: true},
	{Name: "Dungeon Breaker", Description: "Clear your first dungeon", Category: models.CategorySpecial, Type: models.AchievementSingle, XPReward: 250, TitleReward: strPtr("Dungeon Breaker")},
	{Name: "Raid Veteran", Description: "Clear 10 dungeons", Category: models.CategorySpecial, Type: models.AchievementCounter, TargetValue: intPtr(10), XPReward: 800},
	{Name: "Rising Power", Description: "Gain 5 levels", Category: models.CategoryProgression, Type: models.AchievementProgressive, TargetValue: intPtr(5), XPReward: 150},
	{Name: "Ascendant", Description: "Gain 20 levels", Category: models.CategoryProgression, Type: models.AchievementProgressive, TargetValue: intPtr(20), XPReward: 600},
	{Name: "Rank Climber", Description: "Advance a rank", Category: models.CategoryRank, Type: models.AchievementCounter, TargetValue: intPtr(1), XPReward: 200},
	{Name: "Elite Hunter", Description: "Advance four ranks", Category: models.CategoryRank, Type: models.AchievementCounter, TargetValue: intPtr(4), XPReward: 2000, TitleReward: strPtr("Elite")},
	{Name: "Collector", Description: "Unlock 3 pieces of equipment", Category: models.CategoryCollection, Type: models.AchievementCounter, TargetValue: intPtr(3), XPReward: 150},
	{Name: "Armory", Description: "Unlock every piece of equipment", Category: models.CategoryCollection, Type: models.AchievementCounter, TargetValue: intPtr(7), XPReward: 1000, IsHidden: true},
}

// SeedDefaults inserts the default catalog. Rows are keyed by slug code, so running
// it again leaves existing entries untouched.
func (c *Catalog) SeedDefaults(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, q := range DefaultQuests {
			q.ID = uuid.NewString()
			q.Code = slug.Make(q.Name)
			q.IsActive = true
			if q.MinLevel == 0 {
				q.MinLevel = 1
			}
			if err := tx.Where("code = ?", q.Code).FirstOrCreate(&q).Error; err != nil {
				return fmt.Errorf("seed quest %s: %w", q.Code, err)
			}
		}
		for _, d := range DefaultDungeons {
			tpl := d.DungeonTemplate
			tpl.ID = uuid.NewString()
			tpl.Code = slug.Make(tpl.Name)
			tpl.IsActive = true
			if err := tpl.SetExercises(d.Steps); err != nil {
				return fmt.Errorf("encode dungeon %s steps: %w", tpl.Code, err)
			}
			if err := tx.Where("code = ?", tpl.Code).FirstOrCreate(&tpl).Error; err != nil {
				return fmt.Errorf("seed dungeon %s: %w", tpl.Code, err)
			}
		}
		for _, e := range DefaultEquipment {
			e.ID = uuid.NewString()
			e.Code = slug.Make(e.Name)
			if err := tx.Where("code = ?", e.Code).FirstOrCreate(&e).Error; err != nil {
				return fmt.Errorf("seed equipment %s: %w", e.Code, err)
			}
		}
		for _, a := range DefaultAchievements {
			a.ID = uuid.NewString()
			a.Code = slug.Make(a.Name)
			if err := tx.Where("code = ?", a.Code).FirstOrCreate(&a).Error; err != nil {
				return fmt.Errorf("seed achievement %s: %w", a.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.Purge()
	return nil
}
