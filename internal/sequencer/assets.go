package sequencer

import (
	"fmt"
	"strings"

	"github.com/rawblock/gravelpit/pkg/models"
)

// AssetMap resolves the asset name literals referenced by a recipe's
// assetIds into absolute remote paths. It is a static configuration table,
// not discovered at runtime.
type AssetMap map[string]string

// Translate substitutes the hashlist token, the output token, and every
// asset-id literal in template with their resolved paths. Asset tokens are
// matched as literal substrings of the asset's own name, e.g. a recipe
// referencing asset id "rockyou.txt" expects that exact token to appear in
// commandTemplate.
func Translate(template, hashlistPath, outputPath string, assetIDs []string, assets AssetMap) (string, error) {
	cmd := strings.ReplaceAll(template, models.HashlistToken, hashlistPath)
	cmd = strings.ReplaceAll(cmd, models.OutputToken, outputPath)
	for _, id := range assetIDs {
		remotePath, ok := assets[id]
		if !ok {
			return "", fmt.Errorf("asset %q has no remote path in the asset map", id)
		}
		if !strings.Contains(cmd, id) {
			return "", fmt.Errorf("command template does not reference asset token %q", id)
		}
		cmd = strings.ReplaceAll(cmd, id, remotePath)
	}
	return cmd, nil
}
