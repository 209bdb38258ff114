package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns an identifier of the form PREFIX-<uuid v7>. Version 7 ids are
// time ordered, so ids sort in creation order.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%d-%s", strings.ToUpper(prefix), time.Now().UnixNano(), uuid.NewString())
	}
	return fmt.Sprintf("%s-%s", strings.ToUpper(prefix), id.String())
}
