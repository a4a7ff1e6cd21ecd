package domain

// Match returns the first zone, in the order given, whose radius covers
// position. The bool is false when no zone qualifies, including when zones
// is empty. Invalid coordinates are rejected with ErrInvalidInput rather
// than compared as NaN.
func Match(position Position, zones []Zone) (Zone, bool, error) {
	if err := position.Validate(); err != nil {
		return Zone{}, false, err
	}
	for _, z := range zones {
		if z.Contains(position) {
			return z, true, nil
		}
	}
	return Zone{}, false, nil
}
