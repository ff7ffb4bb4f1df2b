package domain

import (
	"gopkg.in/guregu/null.v4"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentUPI  PaymentMethod = "UPI"
	PaymentCard PaymentMethod = "CARD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentUPI, PaymentCard:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "UNPAID"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

type Invoice struct {
	InvoiceID     int64         `json:"invoiceId"`
	UserID        int64         `json:"userId"`
	Amount        float64       `json:"amount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Status        InvoiceStatus `json:"status"`
	Timestamp     LocalTime     `json:"timestamp"`
	Type          SlotType      `json:"type"`
	ReservationID null.Int      `json:"reservationId"`
	LogID         null.Int      `json:"logId"`
}

// CreateInvoiceDTO references exactly one of a reservation or a vehicle log.
// The billing API reads the slot type from a capitalised "Type" field.
type CreateInvoiceDTO struct {
	UserID        int64         `json:"userId" validate:"required"`
	ReservationID null.Int      `json:"reservationId"`
	LogID         null.Int      `json:"logId"`
	Type          SlotType      `json:"Type,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=CASH UPI CARD"`
}

type BillingSummary struct {
	Total       int     `json:"total"`
	Paid        int     `json:"paid"`
	Unpaid      int     `json:"unpaid"`
	Cancelled   int     `json:"cancelled"`
	Revenue     float64 `json:"revenue"`
	Outstanding float64 `json:"outstanding"`
}

func SummarizeInvoices(list []Invoice) BillingSummary {
	s := BillingSummary{Total: len(list)}
	for _, inv := range list {
		switch inv.Status {
		case InvoicePaid:
			s.Paid++
			s.Revenue += inv.Amount
		case InvoiceUnpaid:
			s.Unpaid++
			s.Outstanding += inv.Amount
		case InvoiceCancelled:
			s.Cancelled++
		}
	}
	return s
}

// InvoicesByReservation indexes invoices by their reservation id.
func InvoicesByReservation(list []Invoice) map[int64]Invoice {
	out := make(map[int64]Invoice)
	for _, inv := range list {
		if inv.ReservationID.Valid {
			out[inv.ReservationID.Int64] = inv
		}
	}
	return out
}
