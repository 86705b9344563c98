package services

import "discoverly/models"

type Action int

const (
	// ActBuilderManage covers writes reserved to the program's builder:
	// approving testers, responding to feedback, triaging features.
	ActBuilderManage Action = iota
	// ActAuthorEdit covers writes reserved to whoever created the row.
	ActAuthorEdit
	ActIssueReward
	ActCreateProgram
)

// Ownership names who owns a resource. Zero means nobody in that role.
type Ownership struct {
	BuilderID uint
	AuthorID  uint
}

// CanMutate is the single authorization check run before every write.
func CanMutate(caller *models.User, res Ownership, action Action) bool {
	if caller == nil || caller.ID == 0 {
		return false
	}

	switch action {
	case ActBuilderManage:
		return caller.IsAdmin() || (res.BuilderID != 0 && res.BuilderID == caller.ID)
	case ActAuthorEdit:
		return res.AuthorID != 0 && res.AuthorID == caller.ID
	case ActIssueReward:
		if caller.IsAdmin() {
			return true
		}
		return caller.Role == models.RoleBuilder && res.BuilderID == caller.ID
	case ActCreateProgram:
		return caller.IsBuilder()
	}
	return false
}
