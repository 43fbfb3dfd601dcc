package services

import (
	"errors"
	"fmt"
	"time"

	"hunter-fitness/models"
)

// ErrorKind classifies business-rule rejections. None of them are retryable.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindInvalidState     ErrorKind = "invalid_state"
	KindIneligibleAccess ErrorKind = "ineligible_access"
	KindValidation       ErrorKind = "validation"
)

// DomainError is returned by every engine operation that rejects a request.
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`

	// Set on ineligible access so the caller can render the gate.
	RequiredLevel int          `json:"required_level,omitempty"`
	RequiredRank  *models.Rank `json:"required_rank,omitempty"`

	// Set on cooldown rejections.
	AvailableAt *time.Time `json:"available_at,omitempty"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func notFound(code, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidState(code, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindInvalidState, Code: code, Message: fmt.Sprintf(format, args...)}
}

func validation(code, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func ineligible(code string, level int, rank models.Rank, format string, args ...any) *DomainError {
	r := rank
	return &DomainError{
		Kind:          KindIneligibleAccess,
		Code:          code,
		Message:       fmt.Sprintf(format, args...),
		RequiredLevel: level,
		RequiredRank:  &r,
	}
}

// Error codes
const (
	CodeHunterNotFound       = "HUNTER_NOT_FOUND"
	CodeAssignmentNotFound   = "QUEST_ASSIGNMENT_NOT_FOUND"
	CodeQuestNotFound        = "QUEST_TEMPLATE_NOT_FOUND"
	CodeQuestAlreadyStarted  = "QUEST_ALREADY_STARTED"
	CodeQuestCompleted       = "QUEST_ALREADY_COMPLETED"
	CodeQuestTargetsNotMet   = "QUEST_TARGETS_NOT_MET"
	CodeDungeonNotFound      = "DUNGEON_NOT_FOUND"
	CodeRaidNotFound         = "RAID_NOT_FOUND"
	CodeRaidAlreadyActive    = "RAID_ALREADY_ACTIVE"
	CodeRaidOnCooldown       = "RAID_ON_COOLDOWN"
	CodeRaidInvalidState     = "RAID_INVALID_STATE"
	CodeDungeonLocked        = "DUNGEON_LOCKED"
	CodeEquipmentNotFound    = "EQUIPMENT_NOT_FOUND"
	CodeEquipmentNotOwned    = "EQUIPMENT_NOT_OWNED"
	CodeEquipmentEquipped    = "EQUIPMENT_ALREADY_EQUIPPED"
	CodeEquipmentNotEquipped = "EQUIPMENT_NOT_EQUIPPED"
	CodeEquipmentLocked      = "EQUIPMENT_LOCKED"
	CodeUnknownEvent         = "UNKNOWN_EVENT_TYPE"
	CodeNegativeXP           = "NEGATIVE_XP"
	CodeInvalidInput         = "INVALID_INPUT"
)

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Kind == kind
}
