package models

// WOLConfig holds Wake-on-LAN configuration for the host of a server.
type WOLConfig struct {
	MACAddress  string
	BroadcastIP string
}

// WOLResult holds the result of a Wake-on-LAN operation.
type WOLResult struct {
	PacketSent bool
	Error      error
}
