package model

// EventType - имя события в real-time канале и в потоке уведомлений.
type EventType string

const (
	// клиент -> сервер
	EventJoin        EventType = "join"
	EventLeave       EventType = "leave"
	EventSendMessage EventType = "send_message"
	EventPing        EventType = "ping"

	// сервер -> клиент
	EventNewMessage        EventType = "new_message"
	EventMessageSent       EventType = "message_sent"
	EventNotification      EventType = "notification"
	EventNotificationCount EventType = "notification_count"
	EventJoined            EventType = "joined"
	EventLeft              EventType = "left"
	EventPong              EventType = "pong"
	EventError             EventType = "error"
)
