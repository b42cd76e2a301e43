package cuestore

import (
	"encoding/json"
	"fmt"

	"github.com/forPelevin/lipsync/internal/types"
)

func encode(cues []types.MouthCue) ([]byte, error) {
	if cues == nil {
		cues = []types.MouthCue{}
	}
	b, err := json.Marshal(cues)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal cues: %v", types.ErrCacheWrite, err)
	}
	return b, nil
}

func decode(b []byte) ([]types.MouthCue, error) {
	cues := []types.MouthCue{}
	if err := json.Unmarshal(b, &cues); err != nil {
		return nil, fmt.Errorf("%w: corrupt entry: %v", types.ErrCacheUnreachable, err)
	}
	return cues, nil
}
