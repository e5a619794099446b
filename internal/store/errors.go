package store

import "errors"

var (
	ErrShopNotFound    = errors.New("shop not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrBarberNotFound  = errors.New("barber not found")
	ErrServiceNotFound = errors.New("service not found")
)
