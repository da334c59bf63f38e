package timer

// ResolveOffset computes the signed correction that translates a
// server-relative instant into the reporting client's local clock. Both
// instants are Unix milliseconds. The offset is only valid for the exchange
// that produced it; client clocks may drift between exchanges.
func ResolveOffset(clientReported, serverReceive int64) int64 {
	return clientReported - serverReceive
}
