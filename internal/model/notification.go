package model

import "time"

// Notification либо адресное (Recipient задан), либо глобальное (Recipient nil).
// У глобальных уведомлений нет состояния прочтения по получателю.
type Notification struct {
	ID        string     `json:"id"`
	Recipient *Recipient `json:"recipient,omitempty"`
	Type      string     `json:"type"`
	Content   string     `json:"content"`
	Link      string     `json:"link,omitempty"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

func (n *Notification) IsGlobal() bool { return n.Recipient == nil }

type NotificationFilter string

const (
	FilterAll    NotificationFilter = "all"
	FilterUnread NotificationFilter = "unread"
	FilterRead   NotificationFilter = "read"
)

type NotificationSort string

const (
	SortNewest NotificationSort = "newest"
	SortOldest NotificationSort = "oldest"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NotificationQuery - параметры постраничного списка уведомлений.
type NotificationQuery struct {
	Page     int
	PageSize int
	Filter   NotificationFilter
	Category string
	Sort     NotificationSort
}

// Normalize подставляет значения по умолчанию и отбрасывает неизвестные фильтры.
func (q *NotificationQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	switch q.Filter {
	case FilterUnread, FilterRead:
	default:
		q.Filter = FilterAll
	}
	if q.Sort != SortOldest {
		q.Sort = SortNewest
	}
}

// Offset - смещение для текущей страницы.
func (q NotificationQuery) Offset() int { return (q.Page - 1) * q.PageSize }

// TotalPages считает число страниц; пустой список - ноль страниц.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

type NotificationPage struct {
	Items      []Notification `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
}
