package model

// All lists every table owned by the pipeline, in migration order.
func All() []any {
	return []any{
		&Edition{},
		&Item{},
		&Feedback{},
		&EditionRevision{},
		&AgentRun{},
		&ChangeRecord{},
		&FeedCheckpoint{},
	}
}
