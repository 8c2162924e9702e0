package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Object key layout, all under profiles/{profileID}/:
//
//	avatar/{uuid}.{ext}
//	childhood/{uuid}.{ext}
//	sections/{sectionID}/{uuid}.{ext}

// DisplayImageKey returns a fresh key for a profile display image.
func DisplayImageKey(profileID uint, ext string) string {
	return fmt.Sprintf("profiles/%d/avatar/%s.%s", profileID, uuid.NewString(), normalizeExt(ext))
}

// ProfileImageKey returns a fresh key for a profile-level (childhood) image.
func ProfileImageKey(profileID uint, ext string) string {
	return fmt.Sprintf("profiles/%d/childhood/%s.%s", profileID, uuid.NewString(), normalizeExt(ext))
}

// SectionImageKey returns a fresh key for an image attached to a section.
func SectionImageKey(profileID uint, sectionID, ext string) string {
	return fmt.Sprintf("profiles/%d/sections/%s/%s.%s", profileID, sanitizeSegment(sectionID), uuid.NewString(), normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return "bin"
	}
	return ext
}

// section id 来自用户输入（ReplaceAll 可以自带 id），不能让它带出路径分隔符。
func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
