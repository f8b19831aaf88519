// Package statepaths maps channel state onto files under the state dir.
package statepaths

import (
	"os"
	"path/filepath"
)

const historyPrefix = "chat_history_"

func HistoryFile(stateDir, channelID string) string {
	return filepath.Join(stateDir, historyPrefix+channelID+".json")
}

// PurgeHistoryFiles removes every persisted channel history under
// stateDir and returns how many files were deleted.
func PurgeHistoryFiles(stateDir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(stateDir, historyPrefix+"*.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
