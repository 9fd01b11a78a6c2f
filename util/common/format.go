package common

import (
	"fmt"
)

// FormatBytes renders a byte count with a human readable unit, used when
// reporting upload and export sizes.
func FormatBytes(sizeBytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	unitIndex := 0
	size := float64(sizeBytes)

	for size >= 1024 && unitIndex < len(units)-1 {
		size /= 1024
		unitIndex++
	}
	return fmt.Sprintf("%.2f%s", size, units[unitIndex])
}
