package corpus

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/ir"
)

// snapshotVersion is the leading byte of every export_state payload (spec.md
// §6: "implementations must produce stable, version-tagged output"). Bump
// on any incompatible change to snapshotEntry.
const snapshotVersion = 1

// snapshotEntry is the gob-serializable projection of a CorpusEntry. Hash is
// recomputed from Program on import rather than trusted from the wire, the
// same way Program.Hash() is always derived rather than cached across a
// process boundary.
type snapshotEntry struct {
	Program      *ir.Program
	Age          uint32
	LastOutcome  executor.Outcome
	LastCoverage []aspects.EdgeId
}

// ExportState implements spec.md §4.1's export_state: a version-tagged,
// deterministic snapshot of every entry's program and bookkeeping, not the
// scheduler strategy's internal state (which is deliberately excluded: a
// bandit's weights or a Markov queue are reconstructed on ImportState via
// re-Add, the same way the teacher's corpus rebuilds choiceTable weights
// rather than serializing them).
func (c *Corpus) ExportState() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]snapshotEntry, len(c.entries))
	for i, e := range c.entries {
		entries[i] = snapshotEntry{
			Program:      e.Program,
			Age:          e.Age,
			LastOutcome:  e.LastOutcome,
			LastCoverage: e.LastCoverage,
		}
	}

	var buf bytes.Buffer
	buf.WriteByte(snapshotVersion)
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return nil, fmt.Errorf("corpus: export_state encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportState implements spec.md §4.1's import_state: replaces the corpus's
// contents with the snapshot's, re-registering every entry with the
// configured strategy exactly as Add would. Entries whose content hash
// repeats an earlier one in the snapshot are skipped, as Add skips
// duplicates.
func (c *Corpus) ImportState(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("corpus: import_state: empty snapshot")
	}
	version, payload := data[0], data[1:]
	if version != snapshotVersion {
		return fmt.Errorf("corpus: import_state: unsupported snapshot version %d", version)
	}

	var entries []snapshotEntry
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&entries); err != nil {
		return fmt.Errorf("corpus: import_state decode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	c.byHash = map[[32]byte]*CorpusEntry{}
	for _, se := range entries {
		hash := se.Program.Hash()
		if _, dup := c.byHash[hash]; dup {
			continue
		}
		entry := &CorpusEntry{
			Program:      se.Program,
			Age:          se.Age,
			Hash:         hash,
			LastOutcome:  se.LastOutcome,
			LastCoverage: se.LastCoverage,
		}
		c.entries = append(c.entries, entry)
		c.byHash[hash] = entry
		if c.strategy != nil {
			c.strategy.Added(c, entry, &aspects.ProgramAspects{NewEdges: se.LastCoverage, Outcome: se.LastOutcome})
		}
	}
	c.metrics.size.Set(float64(len(c.entries)))
	return nil
}
