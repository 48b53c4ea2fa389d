package routing

import (
	"strconv"
	"strings"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func atoiSafe(s string) (int, error) {
	return strconv.Atoi(s)
}
