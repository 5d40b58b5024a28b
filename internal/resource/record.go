// Package resource implements the console's generic Resource Manager: the
// query state, the cached page of remote records and the mutation
// coordinator that every entity list view is built from.
//
// A Manager is owned by exactly one view. Managers never share state; two
// views showing the same record converge only by refetching.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a server-defined object with a stable identifier. The core never
// looks at anything else.
type Record interface {
	RecordID() string
}

// ID is a record identifier. Backends return ids as JSON strings or numbers;
// both decode into the same string form.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// Decimal is a numeric field that backends may send as a JSON number or as a
// decimal string such as "40.00".
type Decimal float64

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		b = []byte(s)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decimal must be a number: %w", err)
	}
	*d = Decimal(f)
	return nil
}
