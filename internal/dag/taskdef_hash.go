package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"

	"pipeweaver/internal/core"
)

// fieldWriter writes length-prefixed fields so that adjacent fields can never
// be confused with each other.
type fieldWriter struct{ h hash.Hash }

func (w fieldWriter) write(data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	w.h.Write(length[:])
	w.h.Write(data)
}

func (w fieldWriter) writeString(s string) { w.write([]byte(s)) }

func (w fieldWriter) writeInt(n int) { w.writeString(strconv.Itoa(n)) }

// computeTaskDefHash hashes the declarative fields of a definition: name,
// dependencies, purity and parameter bindings.
//
// Determinism rules:
//   - Dependencies are a set for identity and thus sorted.
//   - Parameters keep declaration order; it is part of the task signature.
//   - Selector functions cannot be hashed, only their presence is recorded.
func computeTaskDefHash(def core.TaskDef) TaskDefHash {
	w := fieldWriter{h: sha256.New()}

	w.writeString(def.Name)

	deps := append([]string(nil), def.DependsOn...)
	sort.Strings(deps)
	w.writeInt(len(deps))
	for _, d := range deps {
		w.writeString(d)
	}

	w.writeString(strconv.FormatBool(def.Pure))

	w.writeInt(len(def.Params))
	for _, p := range def.Params {
		w.writeString(p.Name)
		w.writeString(p.Kind.String())
		switch {
		case p.Result != nil:
			w.writeString(p.Result.String())
		case p.Selector != nil:
			w.writeString("selector")
		default:
			w.writeString("")
		}
	}

	return TaskDefHash(hex.EncodeToString(w.h.Sum(nil)))
}
