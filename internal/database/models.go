package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
// Username 在注册时生成，之后不可修改。
// gorm.Model 的 Delete 是软删除，Profile 的外键级联只在 Unscoped 硬删除时生效；
// 图片行没有指向 Profile 的外键，硬删除前需要先清理图片和对象存储。
type User struct {
	gorm.Model
	Email              string   `gorm:"uniqueIndex;size:254;not null"`
	Fullname           string   `gorm:"size:255"`
	Username           string   `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash       string   `gorm:"size:255"`
	IsVerified         bool     `gorm:"default:false"`
	IsStaff            bool     `gorm:"default:false"`
	IsSuperuser        bool     `gorm:"default:false"`
	IsActive           bool     `gorm:"default:true;not null"`
	MustChangePassword bool     `gorm:"default:false"`
	Profile            *Profile `gorm:"constraint:OnDelete:CASCADE"`
}

// IsAdmin reports whether the account may use the administrator surface.
func (u User) IsAdmin() bool {
	return u.IsActive && (u.IsStaff || u.IsSuperuser)
}

// Profile 表示用户的个人资料，与 User 一对一。
// Sections 以单个 JSON 列保存，整体读写。
type Profile struct {
	ID         uint                         `gorm:"primaryKey"`
	UserID     uint                         `gorm:"uniqueIndex;not null"`
	ImageKey   string                       `gorm:"size:512"`
	Bio        string                       `gorm:"size:500"`
	Location   string                       `gorm:"size:100"`
	Website    string                       `gorm:"size:200"`
	JoinedDate *time.Time                   `gorm:"type:date"`
	Sections   datatypes.JSONSlice[Section] `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Section 是嵌入在 Profile.Sections 中的一段用户内容。
type Section struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Images    []SectionImageRef `json:"images"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// SectionImageRef is the legacy embedded image descriptor. New uploads go to SectionImage rows.
type SectionImageRef struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// SectionImage 保存某个 section 下的一张图片。
// SectionID 只是查找键，没有外键约束。
type SectionImage struct {
	ID          uint   `gorm:"primaryKey"`
	ProfileID   uint   `gorm:"index:idx_section_images_profile_section;not null"`
	SectionID   string `gorm:"index:idx_section_images_profile_section;size:64;not null"`
	ObjectKey   string `gorm:"size:512;not null"`
	ContentType string `gorm:"size:128"`
	Size        int64
	Width       int
	Height      int
	Caption     string `gorm:"size:255"`
	CreatedAt   time.Time
}

// ProfileImage 是直接挂在 Profile 上的图片（childhood images）。
type ProfileImage struct {
	ID          uint   `gorm:"primaryKey"`
	ProfileID   uint   `gorm:"index;not null"`
	ObjectKey   string `gorm:"size:512;not null"`
	ContentType string `gorm:"size:128"`
	Size        int64
	Width       int
	Height      int
	Caption     string `gorm:"size:255"`
	CreatedAt   time.Time
}

// PasswordResetToken 是一次性的密码重置令牌。签发新令牌时，旧的未用令牌全部作废。
type PasswordResetToken struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Token     string `gorm:"uniqueIndex;size:36;not null"`
	ExpiresAt time.Time
	Used      bool `gorm:"default:false;not null"`
	CreatedAt time.Time
}

// Blog statuses and content sources.
const (
	BlogStatusDraft  = "draft"
	BlogStatusPublic = "public"

	ContentSourceUserWritten = "user_written"
	ContentSourceAIGenerated = "ai_generated"
	ContentSourceAIRewritten = "ai_rewritten"
)

// Blog 表示一篇博客文章。
type Blog struct {
	gorm.Model
	AuthorID      uint   `gorm:"index;not null"`
	Author        User   `gorm:"constraint:OnDelete:CASCADE"`
	Title         string `gorm:"size:200;not null"`
	Content       string `gorm:"type:text"`
	Status        string `gorm:"size:10;default:draft;index"`
	ContentSource string `gorm:"size:20;default:user_written"`
	AIPrompt      string `gorm:"type:text"`
	Slug          string `gorm:"uniqueIndex;size:200;not null"`
	Excerpt       string `gorm:"type:text"`
	Tags          string `gorm:"size:500"`
	PublishedAt   *time.Time
}

// AllModels lists every model handled by AutoMigrate.
func AllModels() []any {
	return []any{&User{}, &Profile{}, &SectionImage{}, &ProfileImage{}, &PasswordResetToken{}, &Blog{}}
}
