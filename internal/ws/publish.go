package ws

// Publisher is the narrow surface the Publish* helpers need. The engines'
// status-change callbacks (wired in cmd/maproulette) and internal/api's
// handlers pass the Hub through it.
type Publisher interface {
	Publish(Event) error
}

// PublishTaskClaimed fans out a task-claimed event to the task's own topic,
// its challenge's topic, and global, per §4.8.
func PublishTaskClaimed(p Publisher, taskID, challengeID, userID int64) {
	publishTaskEvent(p, EventTaskClaimed, taskID, challengeID, userID)
}

// PublishTaskReleased mirrors PublishTaskClaimed for a released lock.
func PublishTaskReleased(p Publisher, taskID, challengeID, userID int64) {
	publishTaskEvent(p, EventTaskReleased, taskID, challengeID, userID)
}

// PublishTaskCompleted mirrors PublishTaskClaimed for a status set.
func PublishTaskCompleted(p Publisher, taskID, challengeID, userID int64) {
	publishTaskEvent(p, EventTaskCompleted, taskID, challengeID, userID)
}

func publishTaskEvent(p Publisher, eventType string, taskID, challengeID, userID int64) {
	payload := map[string]int64{"taskId": taskID, "challengeId": challengeID, "userId": userID}
	for _, t := range []string{TaskTopic(taskID), ChallengeTopic(challengeID), GlobalTopic} {
		p.Publish(Event{Topic: t, Type: eventType, Payload: payload})
	}
}

// PublishReviewRequested fans out to the task, the reviewer's user topic
// (so a reviewer's queue view updates live), and global.
func PublishReviewRequested(p Publisher, taskID, challengeID int64, reviewerID *int64) {
	publishReviewEvent(p, EventReviewRequested, taskID, challengeID, reviewerID)
}

// PublishReviewCompleted mirrors PublishReviewRequested for a decided review.
func PublishReviewCompleted(p Publisher, taskID, challengeID int64, reviewerID *int64) {
	publishReviewEvent(p, EventReviewCompleted, taskID, challengeID, reviewerID)
}

func publishReviewEvent(p Publisher, eventType string, taskID, challengeID int64, reviewerID *int64) {
	payload := map[string]any{"taskId": taskID, "challengeId": challengeID}
	topics := []string{TaskTopic(taskID), ChallengeTopic(challengeID), GlobalTopic}
	if reviewerID != nil {
		payload["reviewerId"] = *reviewerID
		topics = append(topics, UserTopic(*reviewerID))
	}
	for _, t := range topics {
		p.Publish(Event{Topic: t, Type: eventType, Payload: payload})
	}
}

// PublishNotificationCreated fans out to the recipient's own user topic
// only; notifications are not challenge- or task-scoped fan-out.
func PublishNotificationCreated(p Publisher, userID, notificationID int64) {
	p.Publish(Event{
		Topic:   UserTopic(userID),
		Type:    EventNotificationCreated,
		Payload: map[string]int64{"notificationId": notificationID, "userId": userID},
	})
}
