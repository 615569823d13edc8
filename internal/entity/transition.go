package entity

// ValidateItemChange rejects writes that would move an item backwards.
func ValidateItemChange(current, next *Item) error {
	if current.Status == next.Status {
		return nil
	}
	if !current.Status.CanAdvanceTo(next.Status) {
		return &IllegalTransitionError{DocumentType: DocumentTypeItem, From: string(current.Status), To: string(next.Status)}
	}
	return nil
}

func ValidateEditionChange(current, next *Edition) error {
	if !current.Status.CanAdvanceTo(next.Status) {
		return &IllegalTransitionError{DocumentType: DocumentTypeEdition, From: string(current.Status), To: string(next.Status)}
	}
	return nil
}

func ValidateFeedbackChange(current, next *Feedback) error {
	if current.Resolved && !next.Resolved {
		return &IllegalTransitionError{DocumentType: DocumentTypeFeedback, From: FeedbackStatusResolved, To: FeedbackStatusUnresolved}
	}
	return nil
}
