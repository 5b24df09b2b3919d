package policy

// Resolve picks the target policy. A direct lookup is its own answer; a name
// search returns the first record whose name matches exactly. Duplicate
// names are not reported.
func Resolve(records []Record, c Criteria, direct bool) (Record, error) {
	if len(records) == 0 {
		return Record{}, ErrNoPoliciesFound
	}
	if direct {
		return records[0], nil
	}
	for i := range records {
		if records[i].Name == c.Name {
			return records[i], nil
		}
	}
	return Record{}, &NotFoundError{Name: c.Name}
}
