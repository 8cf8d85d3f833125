package word

// AddressBook holds this station's self address, known stations, and net
// memberships, and implements ALE wildcard address matching (spec.md §4.5).
type AddressBook struct {
	self     string
	stations map[string]string // address -> friendly name
	nets     map[string]string // address -> description
}

// NewAddressBook creates an empty address book.
func NewAddressBook() *AddressBook {
	return &AddressBook{
		stations: make(map[string]string),
		nets:     make(map[string]string),
	}
}

// SetSelfAddress sets this station's own address.
func (ab *AddressBook) SetSelfAddress(addr string) {
	ab.self = addr
}

// SelfAddress returns this station's own address.
func (ab *AddressBook) SelfAddress() string {
	return ab.self
}

// AddStation records a known station and an optional friendly name.
func (ab *AddressBook) AddStation(addr, name string) {
	ab.stations[addr] = name
}

// AddNet records a net membership and an optional description.
func (ab *AddressBook) AddNet(addr, desc string) {
	ab.nets[addr] = desc
}

// IsForMe reports whether a received address identifies this station,
// directly, as a net it belongs to, or via wildcard match against either
// (spec.md §3 AddressBook invariant).
func (ab *AddressBook) IsForMe(addr string) bool {
	if addr == ab.self {
		return true
	}
	if _, ok := ab.nets[addr]; ok {
		return true
	}
	if MatchWildcard(addr, ab.self) {
		return true
	}
	for net := range ab.nets {
		if MatchWildcard(addr, net) {
			return true
		}
	}
	return false
}

// MatchWildcard matches addr against pattern, where '@' and '?' each match
// exactly one character and '*' matches a run of zero or more characters
// (spec.md §3: '@' is the legacy single-char wildcard, '*'/'?' appear in
// higher-level address patterns).
func MatchWildcard(pattern, addr string) bool {
	return matchWildcard([]byte(pattern), []byte(addr))
}

func matchWildcard(pattern, addr []byte) bool {
	if len(pattern) == 0 {
		return len(addr) == 0
	}
	switch pattern[0] {
	case '*':
		// Zero-or-more: try every split point.
		for i := 0; i <= len(addr); i++ {
			if matchWildcard(pattern[1:], addr[i:]) {
				return true
			}
		}
		return false
	case '@', '?':
		if len(addr) == 0 {
			return false
		}
		return matchWildcard(pattern[1:], addr[1:])
	default:
		if len(addr) == 0 || pattern[0] != addr[0] {
			return false
		}
		return matchWildcard(pattern[1:], addr[1:])
	}
}
