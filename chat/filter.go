package chat

import "strings"

// Category narrows the conversation list.
type Category string

const (
	CategoryAll    Category = "all"
	CategoryUnread Category = "unread"
	CategoryGroups Category = "groups"
)

// ParseCategory maps a user supplied category to a Category. The empty
// string means CategoryAll.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CategoryAll, nil
	case CategoryAll, CategoryUnread, CategoryGroups:
		return c, nil
	default:
		return "", invalid("category", "must be one of: all unread groups")
	}
}

func (c Category) matches(s *Summary) bool {
	switch c {
	case CategoryUnread:
		return s.UnreadCount > 0
	case CategoryGroups:
		return s.Kind == Group
	default:
		return true
	}
}

// FilterConversations returns the entries of list whose display name
// contains query, ignoring case, and that belong to category. The order of
// list is preserved. An empty query matches every entry.
func FilterConversations(list []Summary, query string, category Category) []Summary {
	q := strings.ToLower(query)
	out := make([]Summary, 0, len(list))
	for i := range list {
		s := &list[i]
		if !category.matches(s) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(s.DisplayName), q) {
			continue
		}
		out = append(out, *s)
	}
	return out
}

// Filter applies FilterConversations to the current conversation list.
func (e *Engine) Filter(query string, category Category) ([]Summary, error) {
	c, err := ParseCategory(string(category))
	if err != nil {
		return nil, err
	}
	return FilterConversations(e.Conversations(), query, c), nil
}
