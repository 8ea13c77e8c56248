package log

const (
	// FldFile is the name of the log field for storing file name information
	FldFile = "file"
	// FldPath is the name of the log field for storing path name information
	FldPath = "path"
	// FldTransport is the name of the log field for storing a transport name
	FldTransport = "transport"
	// FldVersion is the version number of the application
	FldVersion = "ver"
	// FldHost is the ID of the host identity the request is made by
	FldHost = "host"
	// FldEvent is the ID of an event used in the log entry
	FldEvent = "event"
	// FldMessage is the ID of a message used in the log entry - never the message content
	FldMessage = "message"
	// FldCode is a string code used in a lookup
	FldCode = "code"
	// FldDriver is the name of the storage driver in use
	FldDriver = "driver"
	// FldBroker is the name of the feed broker in use
	FldBroker = "broker"
	// FldSubscription is the number of a live feed subscription
	FldSubscription = "sub"
	// FldAddr is a network address the application listens at or connects to
	FldAddr = "addr"
)
