package cfg

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint hashes the shape of the graph: block IDs in BlockOrder, the
// entry, and the de-duplicated edges in order. Statements and line numbers do
// not contribute, so two CFGs with the same topology share a fingerprint.
func Fingerprint(info *CFGInfo) string {
	h := sha256.New()
	io.WriteString(h, "entry:"+info.EntryBlockID+"\n")

	succs := info.Successors()
	for _, id := range info.BlockOrder() {
		io.WriteString(h, "block:"+id)
		for _, s := range succs[id] {
			io.WriteString(h, " "+s)
		}
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil))
}
