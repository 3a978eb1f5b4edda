package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
	ErrAuth             = fmt.Errorf("no authenticated identity on connection")
	ErrMalformedEvent   = fmt.Errorf("malformed event")
	ErrStore            = fmt.Errorf("message persistence failed")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrQueueFull        = fmt.Errorf("queue full")
)
