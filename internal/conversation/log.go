package conversation

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var turnsBucket = []byte("turns")

// record is the persisted form of one appended turn. tokensUsed captures
// the counter value at append time so replay reproduces it exactly.
type record struct {
	Seq        int   `json:"seq"`
	Turn       Turn  `json:"turn"`
	TokensUsed int64 `json:"tokensUsed"`
}

// Log persists the conversation as an append-only sequenced turn log in a
// BoltDB file. It implements Sink.
type Log struct {
	db *bolt.DB
}

// OpenLog opens (or creates) the turn log at path.
func OpenLog(path string) (*Log, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening turn log %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(turnsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

// AppendTurn writes one sequenced record. A record for seq must not
// already exist; the log never overwrites.
func (l *Log) AppendTurn(seq int, turn Turn, tokensUsed int64) error {
	raw, err := json.Marshal(record{Seq: seq, Turn: turn, TokensUsed: tokensUsed})
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(turnsBucket)
		key := seqKey(seq)
		if bkt.Get(key) != nil {
			return fmt.Errorf("turn log already holds sequence %d", seq)
		}
		return bkt.Put(key, raw)
	})
}

// Replay loads the persisted history into state, restoring the exact turn
// order and token counter. Returns the number of turns replayed.
func (l *Log) Replay(state *State) (int, error) {
	var turns []Turn
	var tokens int64

	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(turnsBucket).Cursor()
		want := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding turn log record: %w", err)
			}
			if rec.Seq != want {
				return fmt.Errorf("turn log gap: expected sequence %d, found %d", want, rec.Seq)
			}
			turns = append(turns, rec.Turn)
			tokens = rec.TokensUsed
			want++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	state.restore(turns, tokens)
	return len(turns), nil
}

// Close releases the BoltDB file handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// seqKey encodes a sequence number so BoltDB's byte order matches append
// order.
func seqKey(seq int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(seq))
	return key
}
