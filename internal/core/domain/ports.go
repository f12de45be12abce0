package domain

// =============================================================================
// Port Resolution
// =============================================================================

// PortMapping records how one declared host port was resolved. Every
// resolved port produces a mapping, including ports that kept their
// declared value (Reassigned false, ActualPort == OriginalPort).
type PortMapping struct {
	Service      string `json:"service"`
	OriginalPort int    `json:"originalPort"`
	ActualPort   int    `json:"actualPort"`
	Reassigned   bool   `json:"reassigned"`
}
