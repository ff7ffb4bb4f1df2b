package domain

// Channel names a topic on the notification bus.
type Channel string

const (
	ChannelPaymentCompleted   Channel = "payment-completed"
	ChannelReservationChanged Channel = "reservation-changed"
	ChannelRefreshAll         Channel = "refresh-all"
	ChannelVehicleLogChanged  Channel = "vehicle-log-changed"
	ChannelSlotChanged        Channel = "slot-changed"
	ChannelUserChanged        Channel = "user-changed"
	ChannelSessionExpired     Channel = "session-expired"
	ChannelSessionChanged     Channel = "session-changed" // login or logout
)

// Channels lists every bus channel in a stable order.
func Channels() []Channel {
	return []Channel{
		ChannelPaymentCompleted,
		ChannelReservationChanged,
		ChannelRefreshAll,
		ChannelVehicleLogChanged,
		ChannelSlotChanged,
		ChannelUserChanged,
		ChannelSessionExpired,
		ChannelSessionChanged,
	}
}

func (c Channel) Valid() bool {
	for _, known := range Channels() {
		if c == known {
			return true
		}
	}
	return false
}
