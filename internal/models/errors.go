package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData  = errors.New("insufficient data")
	ErrSymbolUnavailable = errors.New("symbol unavailable")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrPositionNotFound  = errors.New("position not found")
	ErrCapacityFull      = errors.New("capacity full")
)

// NetworkError: временная ошибка сети/биржи, можно повторить.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// PositionWatchError: поток цен умер посреди сопровождения позиции.
type PositionWatchError struct {
	Symbol string
	Err    error
}

func (e *PositionWatchError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Symbol, e.Err)
}
func (e *PositionWatchError) Unwrap() error { return e.Err }

// FatalScanError: всё неожиданное в цикле сканера.
type FatalScanError struct {
	Err error
}

func (e *FatalScanError) Error() string { return fmt.Sprintf("fatal scan error: %v", e.Err) }
func (e *FatalScanError) Unwrap() error { return e.Err }

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
