package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
	NotificationTypeBusinessUpdate     NotificationType = "business_update"
)

var notificationTypes = set[NotificationType]{NotificationTypeSystemAnnouncement, NotificationTypeBusinessUpdate}

func (n NotificationType) String() string { return string(n) }

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse("notification type", value)
}
