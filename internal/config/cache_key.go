package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PhaseAnchorKey returns the key holding the countdown start of one phase
// for one examination identifier.
func (r *CacheKeyStruct) PhaseAnchorKey(examinationID string, phase int) string {
	return fmt.Sprintf("exam:%s:phase:%d:anchor", examinationID, phase)
}

var CacheKey = NewCacheKeyStruct()
