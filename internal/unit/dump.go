package unit

import (
	"encoding/hex"

	"github.com/anphsw/ppp/internal/logx"
)

// DumpFrame logs a hex dump of b when the DEBUG flag is set, the
// pppdumpm-equivalent debug aid if_ppp.c calls unconditionally from both
// its output and input paths (SPEC_FULL.md's supplemented-features
// list); gated here on FlagDebug so it costs nothing when off.
func (u *Unit) DumpFrame(tag string, b []byte) {
	if !u.Has(FlagDebug) {
		return
	}
	logx.Attach(u.Index, "%s %d bytes: %s", tag, len(b), hex.EncodeToString(b))
}
