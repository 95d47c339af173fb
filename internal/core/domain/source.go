package domain

import "strings"

// Chapter is a chapter of a manuscript.
type Chapter struct {
	ID        string
	ProjectID string
	Order     int
	Title     string
	Content   string
	Summary   string
}

// Character is a character profile.
type Character struct {
	ID          string
	ProjectID   string
	Name        string
	Role        string
	Description string
	Traits      []string
}

// Summary renders the compact text indexed for this character.
func (c *Character) Summary() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.Role != "" {
		b.WriteString("（" + c.Role + "）")
	}
	if c.Description != "" {
		b.WriteString("：" + strings.TrimSpace(c.Description))
	}
	if len(c.Traits) > 0 {
		b.WriteString(" 特征：" + strings.Join(c.Traits, "、"))
	}
	return b.String()
}

// WikiEntry is a world-building entry (place, item, faction, rule).
type WikiEntry struct {
	ID          string
	ProjectID   string
	Name        string
	Aliases     []string
	Category    string
	Description string
}

// Summary renders the compact text indexed for this entry.
func (w *WikiEntry) Summary() string {
	var b strings.Builder
	b.WriteString(w.Name)
	if len(w.Aliases) > 0 {
		b.WriteString("（又名：" + strings.Join(w.Aliases, "、") + "）")
	}
	if w.Category != "" {
		b.WriteString("[" + w.Category + "]")
	}
	if w.Description != "" {
		b.WriteString("：" + strings.TrimSpace(w.Description))
	}
	return b.String()
}

// StyleSample is a reference passage whose prose style should be imitated.
type StyleSample struct {
	ID        string
	ProjectID string
	Title     string
	Content   string
}
