// Package router decides which view is on screen and who may see it.
package router

import (
	"vpms_console/internal/domain"
)

type MenuItem struct {
	View  domain.ViewName `json:"view"`
	Label string          `json:"label"`
}

// Capability is everything one role may open or do.
type Capability struct {
	Menu    []MenuItem
	Views   map[domain.ViewName]bool
	Actions map[domain.Action]bool
}

type Capabilities map[domain.Role]Capability

func capability(menu []MenuItem, extraViews []domain.ViewName, actions ...domain.Action) Capability {
	c := Capability{Menu: menu, Views: map[domain.ViewName]bool{}, Actions: map[domain.Action]bool{}}
	for _, m := range menu {
		c.Views[m.View] = true
	}
	for _, v := range extraViews {
		c.Views[v] = true
	}
	for _, a := range actions {
		c.Actions[a] = true
	}
	return c
}

var (
	dashboardItem = MenuItem{View: domain.ViewDashboard, Label: "Dashboard"}
	profileItem   = MenuItem{View: domain.ViewProfile, Label: "Profile"}
	slotMapItem   = MenuItem{View: domain.ViewSlotMap, Label: "Parking Slot Map"}
	slotsItem     = MenuItem{View: domain.ViewSlots, Label: "Slot Management"}
	vehicleLogs   = MenuItem{View: domain.ViewVehicleLogs, Label: "Vehicle Logs"}
	billingItem   = MenuItem{View: domain.ViewBilling, Label: "Billing"}
)

// DefaultCapabilities is the role table every navigation and action check uses.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		domain.RoleAdmin: capability([]MenuItem{
			dashboardItem, profileItem, slotMapItem,
			{View: domain.ViewUsers, Label: "User Management"},
			slotsItem, vehicleLogs,
			{View: domain.ViewReservations, Label: "Reservations"},
			billingItem,
		}, nil,
			domain.ActionUpdateProfile, domain.ActionManageUsers, domain.ActionManageSlots,
			domain.ActionToggleOccupancy, domain.ActionEditReservation, domain.ActionCancelReservation,
			domain.ActionTriggerCompletion, domain.ActionPayInvoice, domain.ActionCancelInvoice,
			domain.ActionRefreshAll,
		),
		domain.RoleStaff: capability([]MenuItem{
			dashboardItem, profileItem, slotMapItem, slotsItem,
			{View: domain.ViewVehicleEntry, Label: "Vehicle Entry/Exit"},
			vehicleLogs, billingItem,
		}, nil,
			domain.ActionUpdateProfile, domain.ActionManageSlots, domain.ActionToggleOccupancy,
			domain.ActionRecordEntry, domain.ActionRecordExit, domain.ActionPayInvoice,
			domain.ActionCancelInvoice, domain.ActionRefreshAll,
		),
		// my-vehicles is reachable from the dashboard but has no menu entry
		domain.RoleCustomer: capability([]MenuItem{
			dashboardItem, profileItem, slotMapItem,
			{View: domain.ViewAvailableSlots, Label: "Available Slots"},
			{View: domain.ViewMyReservations, Label: "My Reservations"},
			{View: domain.ViewMyBills, Label: "My Bills"},
		}, []domain.ViewName{domain.ViewMyVehicles},
			domain.ActionUpdateProfile, domain.ActionReserve, domain.ActionCancelReservation,
			domain.ActionPayInvoice, domain.ActionRefreshAll,
		),
	}
}

func (c Capabilities) CanView(role domain.Role, v domain.ViewName) bool {
	return c[role].Views[v]
}

func (c Capabilities) CanDo(role domain.Role, a domain.Action) bool {
	return c[role].Actions[a]
}

func (c Capabilities) Menu(role domain.Role) []MenuItem {
	return append([]MenuItem(nil), c[role].Menu...)
}
