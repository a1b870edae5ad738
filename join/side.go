package join

import (
	"encoding/csv"
	"io"
)

// side is a one-record lookahead buffer over a CSV input, mirroring
// reader.Reader's pull-based Next/Record shape narrowed to exactly the
// peek depth the join's tie-break needs: the active record and the key
// of the record that would follow it.
type side struct {
	r      *csv.Reader
	keyIdx []int

	cur    []string
	curKey []string

	peeked    []string
	peekedKey []string
}

func newSide(r *csv.Reader, keyIdx []int) (*side, error) {
	s := &side{r: r, keyIdx: keyIdx}
	if err := s.readInto(&s.peeked, &s.peekedKey); err != nil {
		return nil, err
	}
	if err := s.advance(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *side) readInto(rec *[]string, key *[]string) error {
	row, err := s.r.Read()
	if err == io.EOF {
		*rec, *key = nil, nil
		return nil
	}
	if err != nil {
		return err
	}
	*rec = row
	*key = pick(row, s.keyIdx)
	return nil
}

// ok reports whether there is a current record.
func (s *side) ok() bool { return s.cur != nil }

// key returns the current record's key tuple.
func (s *side) key() []string { return s.curKey }

// record returns the current raw record.
func (s *side) record() []string { return s.cur }

// nextKeyEqualsCurrent reports whether the record that would become
// current on the next advance shares today's key (§4.8's "current
// buffer's lookahead key equals its own key").
func (s *side) nextKeyEqualsCurrent() bool {
	if s.peeked == nil {
		return false
	}
	return compareKey(s.peekedKey, s.curKey) == 0
}

// advance promotes the peeked record to current and reads one more
// record to refill the peek slot.
func (s *side) advance() error {
	s.cur, s.curKey = s.peeked, s.peekedKey
	return s.readInto(&s.peeked, &s.peekedKey)
}
