package services

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"discoverly/models"
)

const msgNoFields = "No fields to update"

// FeedbackPatch is a partial update of a feedback entry. Builder fields and
// author fields are filtered by the caller's role before anything is written.
type FeedbackPatch struct {
	BuilderResponse *string `json:"builder_response"`
	IsResolved      *bool   `json:"is_resolved"`

	Title       *string   `json:"title"`
	Content     *string   `json:"content"`
	Rating      *int      `json:"rating" validate:"omitempty,min=1,max=5"`
	Screenshots *[]string `json:"screenshots"`
}

func (p FeedbackPatch) columns(asBuilder, asAuthor bool, now time.Time) (map[string]interface{}, error) {
	if err := validateInput(p); err != nil {
		return nil, err
	}

	cols := map[string]interface{}{}
	if asBuilder {
		if p.BuilderResponse != nil {
			cols["builder_response"] = *p.BuilderResponse
			cols["responded_at"] = now
		}
		if p.IsResolved != nil {
			cols["is_resolved"] = *p.IsResolved
		}
	}
	if asAuthor {
		if p.Title != nil {
			cols["title"] = *p.Title
		}
		if p.Content != nil {
			if strings.TrimSpace(*p.Content) == "" {
				return nil, InvalidInput("content cannot be empty")
			}
			cols["content"] = *p.Content
		}
		if p.Rating != nil {
			cols["rating"] = *p.Rating
		}
		if p.Screenshots != nil {
			cols["screenshots"] = jsonList(*p.Screenshots)
		}
	}

	if len(cols) == 0 {
		return nil, InvalidInput(msgNoFields)
	}
	return cols, nil
}

// FeaturePatch is a partial update of a feature request.
type FeaturePatch struct {
	Status        *string    `json:"status"`
	Priority      *string    `json:"priority"`
	BuilderNotes  *string    `json:"builder_notes"`
	EstimatedDate *time.Time `json:"estimated_date"`
	ShippedDate   *time.Time `json:"shipped_date"`

	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Category    *string `json:"category" validate:"omitempty,max=50"`
}

func (p FeaturePatch) columns(asBuilder, asCreator bool) (map[string]interface{}, error) {
	if err := validateInput(p); err != nil {
		return nil, err
	}

	cols := map[string]interface{}{}
	if asBuilder {
		if p.Status != nil {
			if !models.ValidFeatureStatus(*p.Status) {
				return nil, InvalidInput("invalid feature status")
			}
			cols["status"] = *p.Status
		}
		if p.Priority != nil {
			if !models.ValidPriority(*p.Priority) {
				return nil, InvalidInput("invalid priority")
			}
			cols["priority"] = *p.Priority
		}
		if p.BuilderNotes != nil {
			cols["builder_notes"] = *p.BuilderNotes
		}
		if p.EstimatedDate != nil {
			cols["estimated_date"] = *p.EstimatedDate
		}
		if p.ShippedDate != nil {
			cols["shipped_date"] = *p.ShippedDate
		}
	}
	if asCreator {
		if p.Title != nil {
			if strings.TrimSpace(*p.Title) == "" {
				return nil, InvalidInput("title cannot be empty")
			}
			cols["title"] = *p.Title
		}
		if p.Description != nil {
			cols["description"] = *p.Description
		}
		if p.Category != nil {
			cols["category"] = *p.Category
		}
	}

	if len(cols) == 0 {
		return nil, InvalidInput(msgNoFields)
	}
	return cols, nil
}

// ProgramPatch lists the program fields its builder may change.
type ProgramPatch struct {
	Title        *string        `json:"title" validate:"omitempty,min=3,max=200"`
	Description  *string        `json:"description"`
	Requirements *string        `json:"requirements"`
	Category     *string        `json:"category"`
	AccessType   *string        `json:"access_type"`
	MaxTesters   *int           `json:"max_testers" validate:"omitempty,min=1"`
	RewardType   *string        `json:"reward_type"`
	RewardValue  datatypes.JSON `json:"reward_value"`
	Status       *string        `json:"status"`
	StartDate    *time.Time     `json:"start_date"`
	EndDate      *time.Time     `json:"end_date"`
}

func (p ProgramPatch) columns(current *models.BetaProgram) (map[string]interface{}, error) {
	if err := validateInput(p); err != nil {
		return nil, err
	}

	cols := map[string]interface{}{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Requirements != nil {
		cols["requirements"] = *p.Requirements
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.AccessType != nil {
		if !models.ValidAccessType(*p.AccessType) {
			return nil, InvalidInput("access_type must be one of: open, approval")
		}
		cols["access_type"] = *p.AccessType
	}
	if p.MaxTesters != nil {
		cols["max_testers"] = *p.MaxTesters
	}
	if p.RewardType != nil {
		cols["reward_type"] = *p.RewardType
	}
	if len(p.RewardValue) > 0 {
		cols["reward_value"] = p.RewardValue
	}
	if p.Status != nil {
		if !models.ValidProgramStatus(*p.Status) {
			return nil, InvalidInput("invalid program status")
		}
		cols["status"] = *p.Status
	}

	start, end := current.StartDate, current.EndDate
	if p.StartDate != nil {
		start = *p.StartDate
		cols["start_date"] = start
	}
	if p.EndDate != nil {
		end = *p.EndDate
		cols["end_date"] = end
	}
	if !end.After(start) {
		return nil, InvalidInput("end_date must be after start_date")
	}

	if len(cols) == 0 {
		return nil, InvalidInput(msgNoFields)
	}
	return cols, nil
}
