package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// RoomRepo provides access to the rooms table and the per-room
// availability ledger stored in room_blocked_dates.  The ledger is never
// patched marker by marker: PutLedgerTx replaces the full set and bumps
// rooms.version so that a writer holding a stale version is rejected.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `id, name, price_per_night_cents, version, created_at, updated_at`

// InsertTx creates a room with an empty ledger and populates the generated
// ID, version and timestamps on the provided record.
func (r *RoomRepo) InsertTx(ctx context.Context, tx *sql.Tx, room *model.Room) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, price_per_night_cents) VALUES (?, ?)`,
		room.Name, room.PricePerNightCents)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetTx(ctx, tx, uint64(id), false)
	if err != nil {
		return err
	}
	*room = stored
	return nil
}

// GetTx loads a room and its blocked-date markers.  When forUpdate is true
// the room row is locked with SELECT ... FOR UPDATE until the transaction
// ends, which serializes concurrent ledger writers for the same room.
func (r *RoomRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var room model.Room
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.Name, &room.PricePerNightCents, &room.Version, &room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Room{}, ErrNotFound
		}
		return model.Room{}, classify(err)
	}
	markers, err := r.markersTx(ctx, tx, []uint64{id})
	if err != nil {
		return model.Room{}, err
	}
	room.Unavailable = markers[id]
	if room.Unavailable == nil {
		room.Unavailable = []string{}
	}
	return room, nil
}

// ListTx returns all rooms with their ledgers, optionally ordered by price.
func (r *RoomRepo) ListTx(ctx context.Context, tx *sql.Tx, order RoomOrder) ([]model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms`
	switch order {
	case RoomOrderPriceAsc:
		q += ` ORDER BY price_per_night_cents ASC, id ASC`
	case RoomOrderPriceDesc:
		q += ` ORDER BY price_per_night_cents DESC, id ASC`
	default:
		q += ` ORDER BY id ASC`
	}
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	rooms := make([]model.Room, 0)
	ids := make([]uint64, 0)
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.PricePerNightCents, &room.Version, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
		ids = append(ids, room.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return rooms, nil
	}
	markers, err := r.markersTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].Unavailable = markers[rooms[i].ID]
		if rooms[i].Unavailable == nil {
			rooms[i].Unavailable = []string{}
		}
	}
	return rooms, nil
}

// PutLedgerTx replaces a room's blocked-date markers.  The version bump is
// conditional on expectVersion; zero affected rows means another writer got
// there first and ErrConflict is returned.  The DSN enables clientFoundRows
// so an UPDATE that matches reports one affected row.
func (r *RoomRepo) PutLedgerTx(ctx context.Context, tx *sql.Tx, roomID, expectVersion uint64, markers []string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET version = version + 1 WHERE id = ? AND version = ?`,
		roomID, expectVersion)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_blocked_dates WHERE room_id = ?`, roomID); err != nil {
		return classify(err)
	}
	if len(markers) == 0 {
		return nil
	}
	for start := 0; start < len(markers); start += ledgerBatch {
		end := start + ledgerBatch
		if end > len(markers) {
			end = len(markers)
		}
		if err := insertMarkers(ctx, tx, roomID, markers[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// ledgerBatch bounds the rows per INSERT so a long ledger stays well under
// the server's placeholder limit.
const ledgerBatch = 500

func insertMarkers(ctx context.Context, tx *sql.Tx, roomID uint64, markers []string) error {
	args := make([]interface{}, 0, len(markers)*2)
	for _, m := range markers {
		args = append(args, roomID, m)
	}
	_, err := tx.ExecContext(ctx, markerInsertQuery(len(markers)), args...)
	return classify(err)
}

// markerInsertQuery builds a multi-row INSERT for n markers.
func markerInsertQuery(n int) string {
	var b strings.Builder
	b.WriteString(`INSERT INTO room_blocked_dates (room_id, marker) VALUES `)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?, ?)")
	}
	return b.String()
}

// markersTx loads the blocked-date markers of several rooms in one query.
func (r *RoomRepo) markersTx(ctx context.Context, tx *sql.Tx, roomIDs []uint64) (map[uint64][]string, error) {
	args := make([]interface{}, 0, len(roomIDs))
	placeholders := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		args = append(args, id)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT room_id, marker FROM room_blocked_dates
	      WHERE room_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY room_id, marker`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make(map[uint64][]string, len(roomIDs))
	for rows.Next() {
		var id uint64
		var marker string
		if err := rows.Scan(&id, &marker); err != nil {
			return nil, err
		}
		out[id] = append(out[id], marker)
	}
	return out, rows.Err()
}
