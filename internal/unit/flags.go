package unit

// Flags is the per-unit bitset named in spec §3/§6.
type Flags uint32

const (
	FlagDebug Flags = 1 << iota
	FlagCompAC
	FlagCompProt
	FlagCompTCP
	FlagNoTCPCCID
	FlagRejCompTCP
	FlagCCPOpen
	FlagCCPUp
	FlagCompRun
	FlagDecompRun
	FlagDCError
	FlagDCFError
	FlagVJReset
	FlagLogInPkt
	FlagLogOutPkt
	FlagTBusy
)

// WritableMask (SC_MASK in if_ppp.c) is the subset SET-FLAGS may write;
// the rest are control-only, driven by the core itself (spec §6).
const WritableMask = FlagDebug | FlagCompAC | FlagNoTCPCCID | FlagRejCompTCP |
	FlagCompTCP | FlagCompProt | FlagCCPOpen | FlagLogInPkt | FlagLogOutPkt

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }
