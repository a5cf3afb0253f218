package network

import "github.com/godbus/dbus/v5"

// Statistics holds the last two readings of a device's byte counters.
// Times are Unix seconds.
type Statistics struct {
	Device dbus.ObjectPath

	PrevRx, Rx         uint64
	PrevRxTime, RxTime int64
	PrevTx, Tx         uint64
	PrevTxTime, TxTime int64
}

// NewStatistics seeds both readings with the same sample, so speeds start at 0.
func NewStatistics(device dbus.ObjectPath, rx, tx uint64, now int64) Statistics {
	return Statistics{
		Device: device,
		PrevRx: rx, Rx: rx, PrevRxTime: now, RxTime: now,
		PrevTx: tx, Tx: tx, PrevTxTime: now, TxTime: now,
	}
}

// RxSpeed is the receive rate in bytes per second.
func (s Statistics) RxSpeed() float64 {
	return rate(s.PrevRx, s.Rx, s.PrevRxTime, s.RxTime)
}

// TxSpeed is the transmit rate in bytes per second.
func (s Statistics) TxSpeed() float64 {
	return rate(s.PrevTx, s.Tx, s.PrevTxTime, s.TxTime)
}

// ObserveRx shifts the current receive reading to previous and records a new one.
func (s *Statistics) ObserveRx(bytes uint64, now int64) {
	s.PrevRx, s.PrevRxTime = s.Rx, s.RxTime
	s.Rx, s.RxTime = bytes, now
}

// ObserveTx shifts the current transmit reading to previous and records a new one.
func (s *Statistics) ObserveTx(bytes uint64, now int64) {
	s.PrevTx, s.PrevTxTime = s.Tx, s.TxTime
	s.Tx, s.TxTime = bytes, now
}

// rate never divides by zero and never goes negative: no elapsed time or
// a counter reset both read as 0.
func rate(prev, cur uint64, prevTime, curTime int64) float64 {
	elapsed := curTime - prevTime
	if elapsed <= 0 || cur < prev {
		return 0
	}
	return float64(cur-prev) / float64(elapsed)
}
