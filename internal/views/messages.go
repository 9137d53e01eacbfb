package views

import "raharpa/internal/models"

// mergeConfirmed folds a backend-confirmed message into a thread's local
// list. A message whose server id is already present updates in place, so a
// confirmation arriving over both the HTTP response and the push event lands
// exactly once. Otherwise the oldest optimistic entry with the same sender
// and text is reconciled; only a message matching neither is appended. The
// pending set is mutated when an entry is reconciled.
func mergeConfirmed(messages []models.Message, pending map[string]struct{}, confirmed models.Message) []models.Message {
	for i := range messages {
		if messages[i].ID == confirmed.ID {
			messages[i] = confirmed
			return messages
		}
	}

	for i := range messages {
		if _, ok := pending[messages[i].ID]; !ok {
			continue
		}
		if messages[i].Sender == confirmed.Sender && messages[i].Text == confirmed.Text {
			delete(pending, messages[i].ID)
			messages[i] = confirmed
			return messages
		}
	}

	return append(messages, confirmed)
}

// reconcile resolves a send's HTTP confirmation against the optimistic
// entry created for it. When the push event won the race and already
// reconciled the entry, the merge below degrades to an in-place update.
func reconcile(messages []models.Message, pending map[string]struct{}, localID string, confirmed models.Message) []models.Message {
	for i := range messages {
		if messages[i].ID == localID {
			delete(pending, localID)
			messages[i] = confirmed
			return messages
		}
	}
	return mergeConfirmed(messages, pending, confirmed)
}
