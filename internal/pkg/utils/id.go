package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns unique time based ID with prefix
func NewID(prefix string) string {
	u := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	res := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), u)
	if prefix == "" {
		return res
	}
	return prefix + "-" + res
}
