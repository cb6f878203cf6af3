package distributor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

// AppendCracked appends each record as one JSON object per line to the
// cracked-log at path, creating it if absent. This must be called before
// the sequencer marks the owning attack complete in the state document, so
// an interruption between the two yields at worst a duplicated append on
// resume, never a lost cracked plaintext.
func AppendCracked(path string, records []models.CrackedRecord) error {
	if len(records) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return failure.New(failure.WriteIO, fmt.Errorf("opening cracked log %s: %w", path, err))
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return failure.New(failure.WriteIO, fmt.Errorf("appending to cracked log %s: %w", path, err))
		}
	}
	return f.Sync()
}
