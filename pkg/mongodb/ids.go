package mongodb

import "github.com/google/uuid"

// ParseID decodes a stored string id; malformed values decode to uuid.Nil.
func ParseID(value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ParseOptionalID decodes an optional stored id.
func ParseOptionalID(value *string) *uuid.UUID {
	if value == nil || *value == "" {
		return nil
	}
	id := ParseID(*value)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// OptionalID encodes an optional id for storage.
func OptionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// IDStrings encodes ids for $in queries.
func IDStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
