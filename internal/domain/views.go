package domain

type ViewName string

const (
	ViewLoading        ViewName = "loading"
	ViewLogin          ViewName = "login"
	ViewDashboard      ViewName = "dashboard"
	ViewProfile        ViewName = "profile"
	ViewSlotMap        ViewName = "slot-map"
	ViewUsers          ViewName = "users"
	ViewSlots          ViewName = "slots"
	ViewVehicleEntry   ViewName = "vehicle-entry"
	ViewVehicleLogs    ViewName = "vehicle-logs"
	ViewReservations   ViewName = "reservations"
	ViewBilling        ViewName = "billing"
	ViewAvailableSlots ViewName = "available-slots"
	ViewMyReservations ViewName = "my-reservations"
	ViewMyVehicles     ViewName = "my-vehicles"
	ViewMyBills        ViewName = "my-bills"
)

type Action string

const (
	ActionUpdateProfile     Action = "update-profile"
	ActionManageUsers       Action = "manage-users"
	ActionManageSlots       Action = "manage-slots"
	ActionToggleOccupancy   Action = "toggle-occupancy"
	ActionRecordEntry       Action = "record-entry"
	ActionRecordExit        Action = "record-exit"
	ActionReserve           Action = "reserve"
	ActionEditReservation   Action = "edit-reservation"
	ActionCancelReservation Action = "cancel-reservation"
	ActionTriggerCompletion Action = "trigger-completion"
	ActionPayInvoice        Action = "pay-invoice"
	ActionCancelInvoice     Action = "cancel-invoice"
	ActionRefreshAll        Action = "refresh-all"
)
