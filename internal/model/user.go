package model

// UserPublic - отображаемые поля собеседника (профили ведёт внешний сервис пользователей).
type UserPublic struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}
