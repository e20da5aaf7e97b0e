package inbox

// DedupeContacts collapses duplicate contact records by ID, keeping first
// appearance order but the last-seen record's fields. Search endpoints can
// return the same contact through several match paths (name, email, phone);
// the caller wants each person once, with the freshest data.
func DedupeContacts(contacts []Contact) []Contact {
	if len(contacts) == 0 {
		return contacts
	}
	index := make(map[string]int, len(contacts))
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if i, ok := index[c.ID]; ok {
			out[i] = c
			continue
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}
