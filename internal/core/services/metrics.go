package services

import "seryvo/internal/core/domain"

// Metrics receives domain-level counters. The zero value used by tests is the
// no-op implementation.
type Metrics interface {
	RecordBookingTransition(from, to domain.BookingStatus)
	RecordOfferDispatched(driverCount int)
}

type nopMetrics struct{}

func (nopMetrics) RecordBookingTransition(domain.BookingStatus, domain.BookingStatus) {}
func (nopMetrics) RecordOfferDispatched(int)                                          {}
