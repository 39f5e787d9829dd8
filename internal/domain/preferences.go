package domain

type PushTokenID string

type Preferences struct {
	DeviceID             string
	NotificationsEnabled bool
	PushTokenID          PushTokenID
}

type PushRegistration struct {
	DeviceToken string
	Platform    string
	DeviceInfo  string
}
