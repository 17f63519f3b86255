package kafka

import "github.com/everypoll/everypoll/internal/core/domain"

const (
	VoteEventsTopic = "vote-events"
	PollEventsTopic = "poll-events"
	UserEventsTopic = "user-events"
)

func topicFor(eventType string) string {
	switch eventType {
	case domain.FactVoteCreated, domain.FactVoteCancelled:
		return VoteEventsTopic
	case domain.FactPollDeleted:
		return PollEventsTopic
	default:
		return UserEventsTopic
	}
}
