package document

import (
	"fmt"

	"github.com/google/uuid"
)

// idNamespaceSeed is the literal string the fixed DNS-namespaced UUID is
// derived from. It must never change: every implementation of this system,
// regardless of language, derives the same namespace from it, which is what
// makes chunk ids stable across re-implementations.
const idNamespaceSeed = "vectra-js"

var idNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(idNamespaceSeed))

// NewChunkID deterministically derives a Document id from a source file's
// SHA-256 digest and a chunk index. For a given (fileSHA256, chunkIndex)
// pair the id is always identical, which is what makes content-addressed
// upsert idempotent.
func NewChunkID(fileSHA256 string, chunkIndex int) string {
	name := fmt.Sprintf("%s:%d", fileSHA256, chunkIndex)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
