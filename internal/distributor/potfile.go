// Package distributor implements the Result Distributor: splitting a
// completed chunk's potfile back out into per-batch cracked (PEARLS) and
// uncracked (SAND) partitions without ever violating conservation.
package distributor

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/rawblock/gravelpit/pkg/models"
)

const hexPrefix = "$HEX["
const hexSuffix = "]"

// ParsePotfile reads the hashcat potfile grammar, `<40-hex>:<plaintext>`
// per line, CRLF tolerant. The split is fixed at the 41st byte (40 hex
// chars + the colon) so a plaintext containing colons is parsed correctly.
// `$HEX[...]` plaintexts are hex-decoded to raw bytes. Malformed lines are
// skipped and counted rather than failing the whole parse.
func ParsePotfile(r io.Reader) (map[models.Hash]string, int, error) {
	result := make(map[models.Hash]string)
	malformed := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if len(line) < 42 || line[40] != ':' {
			malformed++
			continue
		}
		h, ok := models.ParseHash(line[:40])
		if !ok {
			malformed++
			continue
		}
		plain, err := decodePlaintext(line[41:])
		if err != nil {
			malformed++
			continue
		}
		result[h] = plain
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed, fmt.Errorf("reading potfile: %w", err)
	}
	return result, malformed, nil
}

func decodePlaintext(field string) (string, error) {
	if strings.HasPrefix(field, hexPrefix) && strings.HasSuffix(field, hexSuffix) {
		encoded := field[len(hexPrefix) : len(field)-len(hexSuffix)]
		decoded, err := hex.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("decoding $HEX plaintext %q: %w", field, err)
		}
		return string(decoded), nil
	}
	return field, nil
}
