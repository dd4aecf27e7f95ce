package models

import "time"

type UserType string

const (
	UserGuest      UserType = "guest"
	UserMember     UserType = "member"
	UserUploader   UserType = "uploader"
	UserAdmin      UserType = "admin"
	UserSuperadmin UserType = "superadmin"
)

var userTypeRank = map[UserType]int{
	UserGuest:      0,
	UserMember:     1,
	UserUploader:   2,
	UserAdmin:      3,
	UserSuperadmin: 4,
}

func (t UserType) Valid() bool {
	_, ok := userTypeRank[t]
	return ok
}

// Rank orders user types; unknown types rank below Guest.
func (t UserType) Rank() int {
	if r, ok := userTypeRank[t]; ok {
		return r
	}
	return -1
}

type Permissions struct {
	CanPostArt             bool `json:"can_post_art"`
	CanModifyOthersContent bool `json:"can_modify_others_content"`
	CanPromoteToAdmin      bool `json:"can_promote_to_admin"`
	CanModifyUsers         bool `json:"can_modify_users"`
}

func (t UserType) Permissions() Permissions {
	switch t {
	case UserUploader:
		return Permissions{CanPostArt: true}
	case UserAdmin, UserSuperadmin:
		return Permissions{
			CanPostArt:             true,
			CanModifyOthersContent: true,
			CanPromoteToAdmin:      true,
			CanModifyUsers:         true,
		}
	default:
		return Permissions{}
	}
}

type User struct {
	ID                int32     `json:"id" db:"id"`
	DisplayName       string    `json:"display_name" db:"display_name"`
	UserType          UserType  `json:"user_type" db:"user_type"`
	ProfilePictureKey *string   `json:"profile_picture_key,omitempty" db:"profile_picture_key"`
	CreatorName       *string   `json:"creator_name,omitempty" db:"creator_name"`
	CreationDate      time.Time `json:"creation_date" db:"creation_date"`
}

func (u *User) Permissions() Permissions {
	if u == nil {
		return UserGuest.Permissions()
	}
	return u.UserType.Permissions()
}

// CanEdit reports whether u may edit a post owned by ownerID.
func (u *User) CanEdit(ownerID *int32) bool {
	if u == nil {
		return false
	}
	if ownerID != nil && *ownerID == u.ID {
		return true
	}
	return u.Permissions().CanModifyOthersContent
}

const SessionTTL = 30 * 24 * time.Hour

type Session struct {
	ID        string    `db:"id"`
	UserID    int32     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.CreatedAt.Add(SessionTTL).After(now)
}

// ModifiableUserInfo is the body of a profile change.
type ModifiableUserInfo struct {
	DisplayName *string   `json:"display_name,omitempty" validate:"omitempty,max=64"`
	PfpTempKey  *string   `json:"pfp_temp_key,omitempty"`
	UserType    *UserType `json:"user_type,omitempty"`
	CreatorName *string   `json:"creator_name,omitempty" validate:"omitempty,max=64"`
}
