package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func ResultKey(uploadID uuid.UUID) string {
	return fmt.Sprintf("result:%s", uploadID)
}
