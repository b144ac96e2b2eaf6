package schema

// Side describes order direction.
type Side uint16

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// String returns the wire name of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other trading side.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideUnknown
	}
}

// OrderEventType is the closed set of order journal event kinds.
type OrderEventType uint16

const (
	OrderEventUnknown OrderEventType = iota
	OrderEventNew
	OrderEventAck
	OrderEventCxl
	OrderEventCxlAck
	OrderEventCxlRej
	OrderEventRej
)

// String returns the journal name of the event type.
func (e OrderEventType) String() string {
	switch e {
	case OrderEventNew:
		return "OE_NEW"
	case OrderEventAck:
		return "OE_ACK"
	case OrderEventCxl:
		return "OE_CXL"
	case OrderEventCxlAck:
		return "OE_CXL_ACK"
	case OrderEventCxlRej:
		return "OE_CXL_REJ"
	case OrderEventRej:
		return "OE_REJ"
	default:
		return "OE_UNKNOWN"
	}
}

// OrderStatus tracks the lifecycle of an order snapshot.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusUnacked
	OrderStatusAcked
	OrderStatusCxlUnacked
	OrderStatusFilled
	OrderStatusOverFilled
	OrderStatusDod
)

// String returns the journal name of the order status.
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusUnacked:
		return "OE_UNACK"
	case OrderStatusAcked:
		return "OE_ACKED"
	case OrderStatusCxlUnacked:
		return "OE_CXL_UNACK"
	case OrderStatusFilled:
		return "OE_FILLED"
	case OrderStatusOverFilled:
		return "OE_OVER_FILLED"
	case OrderStatusDod:
		return "OE_DOD"
	default:
		return "OE_UNKNOWN"
	}
}

// IsTerminal reports whether the status absorbs further cancel handling.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusOverFilled, OrderStatusDod:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the order still carries open quantity.
func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderStatusUnacked, OrderStatusAcked, OrderStatusCxlUnacked:
		return true
	default:
		return false
	}
}

// StratState is the pair strat lifecycle state machine.
type StratState uint16

const (
	StratStateUnknown StratState = iota
	StratStateReady
	StratStateActive
	StratStatePaused
	StratStateError
	StratStateSnoozed
	StratStateDone
)

// String returns the display name of the strat state.
func (s StratState) String() string {
	switch s {
	case StratStateReady:
		return "StratState_READY"
	case StratStateActive:
		return "StratState_ACTIVE"
	case StratStatePaused:
		return "StratState_PAUSED"
	case StratStateError:
		return "StratState_ERROR"
	case StratStateSnoozed:
		return "StratState_SNOOZED"
	case StratStateDone:
		return "StratState_DONE"
	default:
		return "StratState_UNSPECIFIED"
	}
}

// IsOngoing reports whether the strategy occupies its (symbol, side) pairs.
func (s StratState) IsOngoing() bool {
	switch s {
	case StratStateActive, StratStatePaused, StratStateError:
		return true
	default:
		return false
	}
}

// Severity grades alerts for operator attention.
type Severity uint16

const (
	SeverityUnknown Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the display name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Severity_INFO"
	case SeverityWarning:
		return "Severity_WARNING"
	case SeverityError:
		return "Severity_ERROR"
	case SeverityCritical:
		return "Severity_CRITICAL"
	default:
		return "Severity_UNSPECIFIED"
	}
}
