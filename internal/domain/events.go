package domain

import "time"

// ForegroundEvent is the raw signal from the OS collaborator: some app
// came to the foreground on a device.
type ForegroundEvent struct {
	DeviceID    string
	PackageName string
	Timestamp   time.Time

	// ForceEntry bypasses quit/wake suppression. Set when the signal is a
	// deliberate re-entry (for example the user tapped through from an
	// expired-intention checkpoint) rather than an organic app switch.
	ForceEntry bool
}

// WakeReason tells the presentation layer which screen to show first.
type WakeReason string

const (
	WakeMonitoredAppForeground WakeReason = "MONITORED_APP_FOREGROUND"
	WakeQuickTaskExpired       WakeReason = "QUICK_TASK_EXPIRED"
	WakeIntentionExpired       WakeReason = "INTENTION_EXPIRED"
	WakePostQuickTaskChoice    WakeReason = "POST_QUICK_TASK_CHOICE"
)

// Surface is the launch instruction pushed to the presentation layer.
type Surface struct {
	WakeReason    WakeReason `json:"wake_reason"`
	TriggeringApp string     `json:"triggering_app"`

	// Offering parameters for quick-task prompts. QuotaRemaining is the
	// allowance left after any grant that produced this surface.
	QuotaRemaining uint `json:"quota_remaining"`
}

// SurfacePublisher pushes launch instructions to a device's presentation
// clients. Implementations must not block arbitration on slow consumers.
type SurfacePublisher interface {
	Publish(deviceID string, surface Surface)
}
