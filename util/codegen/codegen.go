// Package codegen builds the human-readable codes stamped on tickets
// and copy barcodes: LM-<timestamp base36>-<random>, uppercased.
// Uniqueness is ultimately guaranteed by DB unique constraints; callers
// retry on collision.
package codegen

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

func TicketCode() string {
	return newCode()
}

func Barcode() string {
	return newCode()
}

func newCode() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	rand := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return strings.ToUpper("LM-" + ts + "-" + rand)
}
