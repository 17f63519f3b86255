package services

import (
	"fmt"

	"github.com/google/uuid"
)

// Redis key layout shared by the vote coordinator and the aggregation
// reader. All keys carry the poll id so invalidation can match them with a
// single pattern.
func optionCountKey(pollID, optionID uuid.UUID) string {
	return fmt.Sprintf("vote:option:%s:%s", pollID, optionID)
}

func totalCountKey(pollID uuid.UUID) string {
	return fmt.Sprintf("vote:total:%s", pollID)
}

func lastUpdatedKey(pollID uuid.UUID) string {
	return fmt.Sprintf("vote:updated:%s", pollID)
}

func voterMarkerKey(pollID, userID uuid.UUID) string {
	return fmt.Sprintf("vote:user:%s:%s", pollID, userID)
}

func pollCachePattern(pollID uuid.UUID) string {
	return fmt.Sprintf("vote:*:%s*", pollID)
}
